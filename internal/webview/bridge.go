// Package webview reads embedded WebView2 content over the Chrome
// DevTools Protocol. Hybrid targets host web content the accessibility
// provider reports as a single opaque pane; the bridge attaches to the
// runtime's remote-debugging endpoint and renders the page outline in
// the same shape as a window snapshot.
package webview

import (
	"context"
	"fmt"
	"strings"

	"winui-mcp-server/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Bridge attaches to WebView2 debugging endpoints on demand. Each call
// opens and closes its own connection; the bridge holds no state between
// calls so a recycled WebView process cannot strand it.
type Bridge struct {
	cfg config.WebViewConfig
}

func NewBridge(cfg config.WebViewConfig) *Bridge {
	return &Bridge{cfg: cfg}
}

// domOutlineJS walks the DOM breadth-limited by depth and renders one
// line per element of interest, mirroring the window snapshot format.
// WebView content has no reference table; lines carry a CSS-path hint
// instead of a reference token.
const domOutlineJS = `(maxDepth) => {
	const actionable = new Set(["a", "button", "input", "select", "textarea", "option", "summary"]);
	const structural = new Set(["nav", "main", "header", "footer", "form", "table", "ul", "ol", "section", "aside", "dialog"]);
	const lines = [];
	const walk = (el, depth, path) => {
		if (depth > maxDepth || !el.tagName) return;
		const tag = el.tagName.toLowerCase();
		const role = el.getAttribute && el.getAttribute("role") || tag;
		let name = "";
		if (el.getAttribute) {
			name = el.getAttribute("aria-label") || el.getAttribute("title") || "";
		}
		if (!name && el.childElementCount === 0) {
			name = (el.textContent || "").trim().slice(0, 50);
		}
		if (!name && tag === "input") {
			name = el.getAttribute("placeholder") || el.getAttribute("name") || "";
		}
		const include = name !== "" || actionable.has(tag) || structural.has(tag);
		if (include) {
			let line = "  ".repeat(depth) + "- " + role;
			if (name) line += " \"" + name.replace(/"/g, "'") + "\"";
			line += " {" + path + "}";
			lines.push(line);
		}
		let i = 0;
		for (const child of el.children) {
			walk(child, depth + 1, path + ">" + child.tagName.toLowerCase() + ":" + i);
			i++;
		}
	};
	walk(document.body, 0, "body");
	return lines.join("\n");
}`

// Snapshot renders the DOM outline of the page behind a WebView2
// debugging endpoint. An empty debuggerURL falls back to the configured
// default.
func (b *Bridge) Snapshot(ctx context.Context, debuggerURL string, maxDepth int) (string, error) {
	if debuggerURL == "" {
		debuggerURL = b.cfg.DebuggerURL
	}
	if debuggerURL == "" {
		return "", fmt.Errorf("no debugger url given and none configured; start the target with --remote-debugging-port and pass its endpoint")
	}
	if maxDepth < 1 {
		maxDepth = 1
	}

	attachCtx, cancel := context.WithTimeout(ctx, b.cfg.GetAttachTimeout())
	defer cancel()

	controlURL, err := resolveControlURL(debuggerURL)
	if err != nil {
		return "", err
	}

	browser := rod.New().ControlURL(controlURL).Context(attachCtx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("attach to webview endpoint %s: %w", debuggerURL, err)
	}
	defer browser.Close()

	pages, err := browser.Pages()
	if err != nil {
		return "", fmt.Errorf("enumerate webview pages: %w", err)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("webview endpoint %s reports no pages", debuggerURL)
	}
	page := pages[0]

	res, err := page.Context(attachCtx).Evaluate(&rod.EvalOptions{
		ByValue: true,
		JS:      domOutlineJS,
		JSArgs:  []interface{}{maxDepth},
	})
	if err != nil {
		return "", fmt.Errorf("walk webview dom: %w", err)
	}

	out := res.Value.Str()
	if out == "" {
		return "(webview page reported an empty body)", nil
	}
	return out, nil
}

// resolveControlURL accepts a ws:// URL directly and resolves host:port
// forms through the endpoint's /json/version handshake.
func resolveControlURL(debuggerURL string) (string, error) {
	if strings.HasPrefix(debuggerURL, "ws://") || strings.HasPrefix(debuggerURL, "wss://") {
		return debuggerURL, nil
	}
	hostPort := strings.TrimPrefix(strings.TrimPrefix(debuggerURL, "http://"), "https://")
	u, err := launcher.ResolveURL(hostPort)
	if err != nil {
		return "", fmt.Errorf("resolve debugger url %s: %w", debuggerURL, err)
	}
	return u, nil
}
