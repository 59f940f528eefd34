package mcp

import (
	"context"
	"errors"
	"fmt"

	"winui-mcp-server/internal/uia"
)

// LaunchAppTool starts (or adopts) a target application by path or
// installed package id and acquires its main window.
type LaunchAppTool struct {
	driver *uia.Driver
}

func (t *LaunchAppTool) Name() string { return "launch-app" }

func (t *LaunchAppTool) Description() string {
	return "Launch a desktop application by executable path, package manifest/bundle path, or installed package id, and acquire its main window. Returns the window handle with its generation id."
}

func (t *LaunchAppTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Executable path (.exe), package descriptor path (.appxmanifest/.msix/...), or installed package id",
			},
			"working_dir": map[string]interface{}{
				"type":        "string",
				"description": "Working directory for executable launches",
			},
			"force_restart": map[string]interface{}{
				"type":        "boolean",
				"description": "Terminate a running package instance and relaunch instead of reusing it",
			},
		},
		"required": []string{"path"},
	}
}

func (t *LaunchAppTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	path := getStringArg(args, "path")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	res, err := t.driver.AcquireByPath(ctx, path, getStringArg(args, "working_dir"), getBoolArg(args, "force_restart", false))
	if err != nil {
		return acquireFailure(err), nil
	}
	return acquireSuccess(res), nil
}

// AttachWindowTool acquires an already-running window by locator.
type AttachWindowTool struct {
	driver *uia.Driver
}

func (t *AttachWindowTool) Name() string { return "attach-window" }

func (t *AttachWindowTool) Description() string {
	return "Attach to an already-running application's window by title, title regex, process name, or pid. Exact matches outrank partial ones; ties report alternates."
}

func (t *AttachWindowTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"type":        "string",
				"description": "Window title, matched exactly first and as a substring second",
			},
			"title_regex": map[string]interface{}{
				"type":        "string",
				"description": "Regular expression matched against window titles",
			},
			"process": map[string]interface{}{
				"type":        "string",
				"description": "Process name, with or without .exe",
			},
			"pid": map[string]interface{}{
				"type":        "number",
				"description": "Exact process id, overrides all other fields",
			},
		},
	}
}

func (t *AttachWindowTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	loc := uia.Locator{
		Title:       getStringArg(args, "title"),
		TitleRegex:  getStringArg(args, "title_regex"),
		ProcessName: getStringArg(args, "process"),
		PID:         getIntArg(args, "pid", 0),
	}

	res, err := t.driver.AcquireByLocator(ctx, loc)
	if err != nil {
		return acquireFailure(err), nil
	}
	return acquireSuccess(res), nil
}

// CloseWindowTool drops the active window and invalidates all references.
type CloseWindowTool struct {
	driver *uia.Driver
}

func (t *CloseWindowTool) Name() string { return "close-window" }

func (t *CloseWindowTool) Description() string {
	return "Release the active window. All element references become invalid; the target process keeps running."
}

func (t *CloseWindowTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *CloseWindowTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	gen, had := t.driver.CloseWindow(ctx)
	if !had {
		return map[string]interface{}{
			"success": false,
			"error":   "no active window",
		}, nil
	}
	return map[string]interface{}{
		"success":           true,
		"closed_generation": gen,
	}, nil
}

// ListWindowsTool enumerates all top-level windows without attaching.
type ListWindowsTool struct {
	driver *uia.Driver
}

func (t *ListWindowsTool) Name() string { return "list-windows" }

func (t *ListWindowsTool) Description() string {
	return "List all top-level windows with title, pid, and process name. Does not change the active window."
}

func (t *ListWindowsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ListWindowsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	infos, err := t.driver.ListWindows()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"count":   len(infos),
		"windows": infos,
	}, nil
}

func acquireSuccess(res *uia.AcquireResult) map[string]interface{} {
	out := map[string]interface{}{
		"success":  true,
		"window":   res.Handle,
		"trace_id": res.TraceID,
	}
	if res.Note != "" {
		out["note"] = res.Note
	}
	if len(res.Alternates) > 0 {
		out["alternates"] = res.Alternates
	}
	return out
}

// acquireFailure keeps acquisition diagnoses as structured results so the
// caller can branch on the kind instead of parsing prose.
func acquireFailure(err error) map[string]interface{} {
	out := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
	var ae *uia.AcquireError
	if errors.As(err, &ae) {
		out["kind"] = string(ae.Kind)
	}
	return out
}
