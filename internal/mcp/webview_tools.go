package mcp

import (
	"context"

	"winui-mcp-server/internal/webview"
)

// WebViewSnapshotTool renders the DOM outline of embedded WebView2
// content, which the accessibility tree reports as an opaque pane.
type WebViewSnapshotTool struct {
	bridge *webview.Bridge
}

func (t *WebViewSnapshotTool) Name() string { return "webview-snapshot" }

func (t *WebViewSnapshotTool) Description() string {
	return "Render the DOM outline of a WebView2 pane via its remote-debugging endpoint. Lines carry CSS-path hints, not element references."
}

func (t *WebViewSnapshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"debugger_url": map[string]interface{}{
				"type":        "string",
				"description": "CDP endpoint, e.g. ws://localhost:9222 or localhost:9222 (default from config)",
			},
			"max_depth": map[string]interface{}{
				"type":        "number",
				"description": "DOM depth limit (default 8)",
			},
		},
	}
}

func (t *WebViewSnapshotTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	outline, err := t.bridge.Snapshot(ctx, getStringArg(args, "debugger_url"), getIntArg(args, "max_depth", 8))
	if err != nil {
		return map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		}, nil
	}
	return map[string]interface{}{
		"success": true,
		"outline": outline,
	}, nil
}
