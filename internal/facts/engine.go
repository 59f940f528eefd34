// Package facts embeds the Mangle deductive database and buffers the UI
// events emitted by the driver (window acquisitions, snapshot elements,
// dispatched actions, application logs) for Datalog queries.
package facts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"winui-mcp-server/internal/config"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Fact is one normalized event emitted by the driver.
//
// Predicates in use:
//
//	window_acquired(Gen, Title, Pid, TraceId)
//	window_closed(Gen)
//	ui_element(Gen, Ref, Role, Name)
//	ui_action(Gen, Ref, Action, Result)
//	app_log(Pid, Stream, Level, Tag, Line)
type Fact struct {
	Predicate string        `json:"predicate"`
	Args      []interface{} `json:"args"`
	Timestamp time.Time     `json:"timestamp"`
}

// QueryResult binds query variables to values.
type QueryResult map[string]interface{}

// Engine wraps the Mangle store with a bounded temporal fact buffer.
type Engine struct {
	cfg          config.FactsConfig
	mu           sync.RWMutex
	schemaLoaded bool

	programInfo *analysis.ProgramInfo
	store       factstore.FactStore

	facts []Fact
	// Predicate index into the buffer for O(m) lookup.
	index map[string][]int
}

func NewEngine(cfg config.FactsConfig) (*Engine, error) {
	e := &Engine{
		cfg:   cfg,
		facts: make([]Fact, 0, cfg.FactBufferLimit),
		index: make(map[string][]int),
		store: factstore.NewSimpleInMemoryStore(),
	}

	if cfg.Enable && cfg.SchemaPath != "" {
		if err := e.LoadSchema(cfg.SchemaPath); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// LoadSchema parses and analyzes a Mangle schema file so rules evaluate
// against incoming facts.
func (e *Engine) LoadSchema(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	sourceUnit, err := parse.Unit(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(sourceUnit, make(map[ast.PredicateSym]ast.Decl))
	if err != nil {
		return fmt.Errorf("analyze schema: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.programInfo = programInfo
	e.schemaLoaded = true
	return nil
}

// AddRule adds a Mangle rule at runtime.
func (e *Engine) AddRule(ruleSource string) error {
	if !e.cfg.Enable {
		return nil
	}

	sourceUnit, err := parse.Unit(bytes.NewReader([]byte(ruleSource)))
	if err != nil {
		return fmt.Errorf("parse rule: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existingDecls := make(map[ast.PredicateSym]ast.Decl)
	if e.programInfo != nil {
		for k, v := range e.programInfo.Decls {
			if v != nil {
				existingDecls[k] = *v
			}
		}
	}

	newProgramInfo, err := analysis.AnalyzeOneUnit(sourceUnit, existingDecls)
	if err != nil {
		return fmt.Errorf("analyze rule: %w", err)
	}

	if e.programInfo == nil {
		e.programInfo = newProgramInfo
	} else {
		for k, v := range newProgramInfo.Decls {
			e.programInfo.Decls[k] = v
		}
	}
	e.schemaLoaded = true
	return nil
}

// AddFacts appends facts to the temporal buffer and the Mangle store.
// The buffer is circular: oldest facts are trimmed past the limit.
func (e *Engine) AddFacts(ctx context.Context, incoming []Fact) error {
	if !e.cfg.Enable || len(incoming) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	baseIdx := len(e.facts)
	e.facts = append(e.facts, incoming...)
	if e.cfg.FactBufferLimit > 0 && len(e.facts) > e.cfg.FactBufferLimit {
		trim := len(e.facts) - e.cfg.FactBufferLimit
		e.facts = e.facts[trim:]
		e.rebuildIndex()
	} else {
		for i, f := range incoming {
			e.index[f.Predicate] = append(e.index[f.Predicate], baseIdx+i)
		}
	}

	for _, f := range incoming {
		e.store.Add(e.factToAtom(f))
	}

	if e.schemaLoaded && e.programInfo != nil {
		if err := engine.EvalProgram(e.programInfo, e.store); err != nil {
			return fmt.Errorf("eval program after fact insertion: %w", err)
		}
	}
	return nil
}

// Query evaluates a Mangle query and returns all satisfying variable
// bindings. Falls back to a direct buffer scan when the store yields
// nothing (arity-mismatch safety net).
func (e *Engine) Query(ctx context.Context, queryStr string) ([]QueryResult, error) {
	if !e.cfg.Enable {
		return nil, fmt.Errorf("fact engine disabled")
	}

	sourceUnit, err := parse.Unit(bytes.NewReader([]byte(queryStr)))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	if len(sourceUnit.Clauses) == 0 {
		return nil, fmt.Errorf("no query found")
	}
	queryAtom := sourceUnit.Clauses[0].Head

	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]QueryResult, 0)
	err = e.store.GetFacts(queryAtom, func(atom ast.Atom) error {
		result := make(QueryResult)
		for i, arg := range queryAtom.Args {
			if i >= len(atom.Args) {
				break
			}
			if varArg, ok := arg.(ast.Variable); ok {
				result[varArg.Symbol] = convertConstant(atom.Args[i])
			}
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query execution: %w", err)
	}

	if len(results) == 0 {
		results = append(results, e.queryBufferDirect(queryAtom.Predicate.Symbol, queryAtom.Args)...)
	}
	return results, nil
}

func (e *Engine) queryBufferDirect(predicate string, queryArgs []ast.BaseTerm) []QueryResult {
	results := make([]QueryResult, 0)
	for _, idx := range e.index[predicate] {
		if idx < 0 || idx >= len(e.facts) {
			continue
		}
		f := e.facts[idx]
		if len(queryArgs) > 0 && len(f.Args) < len(queryArgs) {
			continue
		}

		result := make(QueryResult)
		matches := true
		for i, qArg := range queryArgs {
			if i >= len(f.Args) {
				break
			}
			if varArg, ok := qArg.(ast.Variable); ok {
				result[varArg.Symbol] = f.Args[i]
			} else if constArg, ok := qArg.(ast.Constant); ok {
				if fmt.Sprintf("%v", f.Args[i]) != fmt.Sprintf("%v", convertConstant(constArg)) {
					matches = false
					break
				}
			}
		}
		if matches {
			results = append(results, result)
		}
	}
	return results
}

// QueryTemporal returns buffered facts for a predicate within a time window.
func (e *Engine) QueryTemporal(predicate string, after, before time.Time) []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]Fact, 0)
	for _, idx := range e.index[predicate] {
		if idx < 0 || idx >= len(e.facts) {
			continue
		}
		f := e.facts[idx]
		if (after.IsZero() || f.Timestamp.After(after)) &&
			(before.IsZero() || f.Timestamp.Before(before)) {
			results = append(results, f)
		}
	}
	return results
}

// FactsByPredicate returns buffered facts for one predicate.
func (e *Engine) FactsByPredicate(predicate string) []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()

	indices := e.index[predicate]
	results := make([]Fact, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(e.facts) {
			results = append(results, e.facts[idx])
		}
	}
	return results
}

// Facts returns a shallow copy of the buffer for debugging.
func (e *Engine) Facts() []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Fact, len(e.facts))
	copy(out, e.facts)
	return out
}

// Ready reports whether the engine will accept queries.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Enable
}

func (e *Engine) factToAtom(f Fact) ast.Atom {
	args := make([]ast.BaseTerm, len(f.Args))
	for i, arg := range f.Args {
		args[i] = toConstant(arg)
	}
	return ast.Atom{
		Predicate: ast.PredicateSym{Symbol: f.Predicate, Arity: len(f.Args)},
		Args:      args,
	}
}

func toConstant(v interface{}) ast.Constant {
	switch val := v.(type) {
	case string:
		return ast.String(val)
	case int:
		return ast.Number(int64(val))
	case int64:
		return ast.Number(val)
	case float64:
		return ast.Float64(val)
	case bool:
		if val {
			return ast.String("true")
		}
		return ast.String("false")
	default:
		return ast.String(fmt.Sprintf("%v", v))
	}
}

func convertConstant(c ast.BaseTerm) interface{} {
	if c == nil {
		return nil
	}
	switch term := c.(type) {
	case ast.Constant:
		if term.Type == ast.StringType {
			val, _ := term.StringValue()
			return val
		} else if term.Type == ast.NumberType {
			return term.NumberValue
		} else if term.Type == ast.Float64Type {
			if val, err := term.Float64Value(); err == nil {
				return val
			}
		}
		return term.String()
	case ast.Variable:
		return term.Symbol
	default:
		return fmt.Sprintf("%v", c)
	}
}

func (e *Engine) rebuildIndex() {
	e.index = make(map[string][]int)
	for i, f := range e.facts {
		e.index[f.Predicate] = append(e.index[f.Predicate], i)
	}
}
