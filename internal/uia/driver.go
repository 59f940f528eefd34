package uia

import (
	"context"
	"strings"
	"sync"
	"time"

	"winui-mcp-server/internal/config"
	"winui-mcp-server/internal/facts"
)

// FactSink is the minimal interface the driver needs from the fact layer.
type FactSink interface {
	AddFacts(ctx context.Context, fs []facts.Fact) error
}

// Driver owns the single automation session: one active window, one
// reference table, one generation counter. Acquisition, snapshot, and
// dispatch are serialized by one mutex so a generation transition is
// atomic even with concurrent callers.
type Driver struct {
	mu       sync.Mutex
	cfg      config.AutomationConfig
	col      Collaborators
	state    *State
	sink     FactSink
	denylist map[string]bool
}

// defaultHostDenylist holds process names that fuzzy window matching must
// never pick: shells, editors, and IDE hosts that happen to show the
// target's name in a title or path. Exact matches bypass this list.
var defaultHostDenylist = []string{
	"cmd",
	"conhost",
	"powershell",
	"pwsh",
	"windowsterminal",
	"wt",
	"explorer",
	"devenv",
	"code",
	"rider64",
	"idea64",
	"studio64",
	"taskmgr",
}

func NewDriver(cfg config.AutomationConfig, col Collaborators, sink FactSink) *Driver {
	names := cfg.HostDenylist
	if len(names) == 0 {
		names = defaultHostDenylist
	}
	denylist := make(map[string]bool, len(names))
	for _, n := range names {
		denylist[normalizeProcessName(n)] = true
	}

	return &Driver{
		cfg:      cfg,
		col:      col,
		state:    NewState(),
		sink:     sink,
		denylist: denylist,
	}
}

// State exposes the session record (used by tools for diagnostics).
func (d *Driver) State() *State {
	return d.state
}

// Active returns the current window handle, or nil.
func (d *Driver) Active() *WindowHandle {
	return d.state.Active()
}

// CloseWindow resets the session: the active window handle and every
// reference become invalid. The target process keeps running.
func (d *Driver) CloseWindow(ctx context.Context) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	gen, had := d.state.Close()
	if had {
		d.emit(ctx, facts.Fact{Predicate: "window_closed", Args: []interface{}{gen}, Timestamp: time.Now()})
	}
	return gen, had
}

// WindowInfo describes one top-level window for enumeration output.
type WindowInfo struct {
	Title   string `json:"title"`
	PID     int    `json:"pid"`
	Process string `json:"process"`
	Native  uint64 `json:"native_handle"`
}

type windowEntry struct {
	WindowInfo
	el Element
}

// ListWindows enumerates top-level windows without touching session state.
func (d *Driver) ListWindows() ([]WindowInfo, error) {
	entries, err := d.enumerate()
	if err != nil {
		return nil, err
	}
	infos := make([]WindowInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.WindowInfo)
	}
	return infos, nil
}

// enumerate lists top-level windows with their properties. Windows whose
// properties cannot be read (mid-teardown) are skipped.
func (d *Driver) enumerate() ([]windowEntry, error) {
	if d.col.Provider == nil {
		return nil, &ErrUnavailable{What: "automation provider"}
	}

	roots, err := d.col.Provider.TopLevelWindows()
	if err != nil {
		return nil, err
	}

	entries := make([]windowEntry, 0, len(roots))
	for _, el := range roots {
		props, err := d.col.Provider.Props(el)
		if err != nil {
			continue
		}
		procName := ""
		if d.col.Process != nil {
			procName, _ = d.col.Process.NameOf(props.PID)
		}
		entries = append(entries, windowEntry{
			WindowInfo: WindowInfo{
				Title:   props.Name,
				PID:     props.PID,
				Process: procName,
				Native:  props.NativeHandle,
			},
			el: el,
		})
	}
	return entries, nil
}

func (d *Driver) isHostProcess(name string) bool {
	return d.denylist[normalizeProcessName(name)]
}

// normalizeProcessName lower-cases and strips the .exe suffix so
// "Notepad.EXE" and "notepad" compare equal.
func normalizeProcessName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

func (d *Driver) emit(ctx context.Context, fs ...facts.Fact) {
	if d.sink == nil {
		return
	}
	_ = d.sink.AddFacts(ctx, fs)
}
