package mcp

import (
	"context"
	"fmt"

	"winui-mcp-server/internal/screenshot"
	"winui-mcp-server/internal/uia"
)

// ScreenshotTool captures the active window's pixels to a file.
type ScreenshotTool struct {
	driver *uia.Driver
	shots  *screenshot.Store
}

func (t *ScreenshotTool) Name() string { return "screenshot" }

func (t *ScreenshotTool) Description() string {
	return "Capture the active window to a PNG file and return its path."
}

func (t *ScreenshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"label": map[string]interface{}{
				"type":        "string",
				"description": "File name prefix (default: window)",
			},
		},
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	h := t.driver.Active()
	if h == nil {
		return nil, fmt.Errorf("no active window; launch or attach first")
	}

	path, err := t.shots.Capture(h.Native, getStringArg(args, "label"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":    true,
		"path":       path,
		"generation": h.Generation,
	}, nil
}

// ScreenshotDiffTool compares two previously captured PNGs.
type ScreenshotDiffTool struct{}

func (t *ScreenshotDiffTool) Name() string { return "screenshot-diff" }

func (t *ScreenshotDiffTool) Description() string {
	return "Compare two captured PNG files pixel by pixel and report how much changed."
}

func (t *ScreenshotDiffTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path_a": map[string]interface{}{
				"type":        "string",
				"description": "First capture path",
			},
			"path_b": map[string]interface{}{
				"type":        "string",
				"description": "Second capture path",
			},
		},
		"required": []string{"path_a", "path_b"},
	}
}

func (t *ScreenshotDiffTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	pathA := getStringArg(args, "path_a")
	pathB := getStringArg(args, "path_b")
	if pathA == "" || pathB == "" {
		return nil, fmt.Errorf("path_a and path_b are required")
	}

	res, err := screenshot.Diff(pathA, pathB)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"diff":    res,
	}, nil
}
