package mcp

import (
	"context"
	"fmt"

	"winui-mcp-server/internal/uia"
)

// ActivateTool performs an element's primary action through the
// capability chain.
type ActivateTool struct {
	driver *uia.Driver
}

func (t *ActivateTool) Name() string { return "activate" }

func (t *ActivateTool) Description() string {
	return "Press, toggle, or select the referenced element, falling back to a synthetic click when no capability applies. Reports which mechanism fired."
}

func (t *ActivateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ref": map[string]interface{}{
				"type":        "string",
				"description": "Element reference from the latest snapshot, e.g. w3e12",
			},
		},
		"required": []string{"ref"},
	}
}

func (t *ActivateTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref := getStringArg(args, "ref")
	if ref == "" {
		return nil, fmt.Errorf("ref is required")
	}

	result, err := t.driver.Activate(ctx, ref)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"result":  result,
	}, nil
}

// AppendTextTool types text into the referenced element.
type AppendTextTool struct {
	driver *uia.Driver
}

func (t *AppendTextTool) Name() string { return "append-text" }

func (t *AppendTextTool) Description() string {
	return "Focus the referenced element and type the given text after it, optionally pressing enter to submit."
}

func (t *AppendTextTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ref": map[string]interface{}{
				"type":        "string",
				"description": "Element reference from the latest snapshot",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text to type literally",
			},
			"submit": map[string]interface{}{
				"type":        "boolean",
				"description": "Press enter after typing",
			},
		},
		"required": []string{"ref", "text"},
	}
}

func (t *AppendTextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref := getStringArg(args, "ref")
	if ref == "" {
		return nil, fmt.Errorf("ref is required")
	}

	result, err := t.driver.AppendText(ctx, ref, getStringArg(args, "text"), getBoolArg(args, "submit", false))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"result":  result,
	}, nil
}

// ReplaceTextTool overwrites the referenced element's value.
type ReplaceTextTool struct {
	driver *uia.Driver
}

func (t *ReplaceTextTool) Name() string { return "replace-text" }

func (t *ReplaceTextTool) Description() string {
	return "Replace the referenced element's text, atomically via its value capability when possible, else by select-all and retype."
}

func (t *ReplaceTextTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ref": map[string]interface{}{
				"type":        "string",
				"description": "Element reference from the latest snapshot",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text",
			},
		},
		"required": []string{"ref", "value"},
	}
}

func (t *ReplaceTextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref := getStringArg(args, "ref")
	if ref == "" {
		return nil, fmt.Errorf("ref is required")
	}

	result, err := t.driver.ReplaceText(ctx, ref, getStringArg(args, "value"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"result":  result,
	}, nil
}

// ScrollTool scrolls the nearest scrollable container of the referenced
// element.
type ScrollTool struct {
	driver *uia.Driver
}

func (t *ScrollTool) Name() string { return "scroll" }

func (t *ScrollTool) Description() string {
	return "Scroll the nearest scrollable ancestor of the referenced element by a number of discrete increments."
}

func (t *ScrollTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ref": map[string]interface{}{
				"type":        "string",
				"description": "Element reference from the latest snapshot",
			},
			"direction": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"up", "down", "left", "right"},
				"description": "Scroll direction",
			},
			"amount": map[string]interface{}{
				"type":        "number",
				"description": "Number of increments (default 1)",
			},
		},
		"required": []string{"ref", "direction"},
	}
}

func (t *ScrollTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref := getStringArg(args, "ref")
	if ref == "" {
		return nil, fmt.Errorf("ref is required")
	}

	result, err := t.driver.Scroll(ctx, ref, uia.ScrollDirection(getStringArg(args, "direction")), getIntArg(args, "amount", 1))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"result":  result,
	}, nil
}
