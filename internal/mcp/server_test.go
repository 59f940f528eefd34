package mcp

import (
	"testing"

	"winui-mcp-server/internal/config"
)

func TestNewServer(t *testing.T) {
	cfg := config.DefaultConfig()
	srv, err := NewServer(cfg, testDriver(), nil, nil, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	t.Run("core tools are registered", func(t *testing.T) {
		for _, name := range []string{
			"launch-app", "attach-window", "close-window", "list-windows",
			"snapshot", "activate", "append-text", "replace-text", "scroll",
		} {
			if _, ok := srv.tools[name]; !ok {
				t.Errorf("expected tool %q to be registered", name)
			}
		}
	})

	t.Run("fact tools are skipped without an engine", func(t *testing.T) {
		if _, ok := srv.tools["read-facts"]; ok {
			t.Error("expected no read-facts tool without an engine")
		}
	})

	t.Run("webview tool follows config", func(t *testing.T) {
		if _, ok := srv.tools["webview-snapshot"]; !ok {
			t.Error("expected webview-snapshot registered by default")
		}

		off := false
		disabled := cfg
		disabled.WebView.Enabled = &off
		srv2, err := NewServer(disabled, testDriver(), nil, nil, nil)
		if err != nil {
			t.Fatalf("new server: %v", err)
		}
		if _, ok := srv2.tools["webview-snapshot"]; ok {
			t.Error("expected webview-snapshot skipped when disabled")
		}
	})

	t.Run("unknown tool execution fails", func(t *testing.T) {
		if _, err := srv.ExecuteTool("no-such-tool", nil); err == nil {
			t.Error("expected an error for an unknown tool")
		}
	})
}
