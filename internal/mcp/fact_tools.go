package mcp

import (
	"context"
	"fmt"
	"time"

	"winui-mcp-server/internal/facts"
)

// ReadFactsTool dumps buffered facts, optionally filtered by predicate or
// time window.
type ReadFactsTool struct {
	engine *facts.Engine
}

func (t *ReadFactsTool) Name() string { return "read-facts" }

func (t *ReadFactsTool) Description() string {
	return "Read recorded automation facts (window_acquired, ui_element, ui_action, app_log, ...), optionally filtered by predicate and time window."
}

func (t *ReadFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"predicate": map[string]interface{}{
				"type":        "string",
				"description": "Only facts with this predicate",
			},
			"since_seconds": map[string]interface{}{
				"type":        "number",
				"description": "Only facts from the last N seconds",
			},
			"limit": map[string]interface{}{
				"type":        "number",
				"description": "Maximum facts to return (default 100)",
			},
		},
	}
}

func (t *ReadFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	predicate := getStringArg(args, "predicate")
	limit := getIntArg(args, "limit", 100)
	sinceSeconds := getIntArg(args, "since_seconds", 0)

	var out []facts.Fact
	switch {
	case sinceSeconds > 0 && predicate != "":
		after := time.Now().Add(-time.Duration(sinceSeconds) * time.Second)
		out = t.engine.QueryTemporal(predicate, after, time.Now())
	case predicate != "":
		out = t.engine.FactsByPredicate(predicate)
	default:
		out = t.engine.Facts()
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return map[string]interface{}{
		"success": true,
		"count":   len(out),
		"facts":   out,
	}, nil
}

// QueryFactsTool runs a Datalog query against the fact store.
type QueryFactsTool struct {
	engine *facts.Engine
}

func (t *QueryFactsTool) Name() string { return "query-facts" }

func (t *QueryFactsTool) Description() string {
	return "Run a Datalog query over the recorded facts, e.g. ui_action(Gen, Ref, Action, Result). Variables start uppercase."
}

func (t *QueryFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Datalog query atom",
			},
		},
		"required": []string{"query"},
	}
}

func (t *QueryFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := getStringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	results, err := t.engine.Query(ctx, query)
	if err != nil {
		return map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		}, nil
	}
	return map[string]interface{}{
		"success": true,
		"count":   len(results),
		"results": results,
	}, nil
}

// SubmitRuleTool adds a derivation rule to the engine.
type SubmitRuleTool struct {
	engine *facts.Engine
}

func (t *SubmitRuleTool) Name() string { return "submit-rule" }

func (t *SubmitRuleTool) Description() string {
	return "Add a Datalog rule deriving new facts from the recorded ones, e.g. flaky(Ref) :- ui_action(_, Ref, _, \"failed\")."
}

func (t *SubmitRuleTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"rule": map[string]interface{}{
				"type":        "string",
				"description": "Datalog rule source",
			},
		},
		"required": []string{"rule"},
	}
}

func (t *SubmitRuleTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	rule := getStringArg(args, "rule")
	if rule == "" {
		return nil, fmt.Errorf("rule is required")
	}

	if err := t.engine.AddRule(rule); err != nil {
		return map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		}, nil
	}
	return map[string]interface{}{
		"success": true,
	}, nil
}
