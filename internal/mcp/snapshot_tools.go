package mcp

import (
	"context"

	"winui-mcp-server/internal/uia"
)

// SnapshotTool renders the active window's accessibility tree with fresh
// element references.
type SnapshotTool struct {
	driver *uia.Driver
}

func (t *SnapshotTool) Name() string { return "snapshot" }

func (t *SnapshotTool) Description() string {
	return "Render the active window's accessibility tree, one line per element with a reference token like w3e12. Every call invalidates all previous references."
}

func (t *SnapshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"max_depth": map[string]interface{}{
				"type":        "number",
				"description": "Tree depth limit, 1-10 (default 5)",
			},
			"include_bounds": map[string]interface{}{
				"type":        "boolean",
				"description": "Append each element's screen rectangle",
			},
		},
	}
}

func (t *SnapshotTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	maxDepth := getIntArg(args, "max_depth", 5)
	includeBounds := getBoolArg(args, "include_bounds", false)

	tree, err := t.driver.Snapshot(ctx, maxDepth, includeBounds)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"success": true,
		"tree":    tree,
	}
	if h := t.driver.Active(); h != nil {
		out["generation"] = h.Generation
		out["window"] = h.Title
	}
	return out, nil
}
