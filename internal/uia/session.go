package uia

import (
	"fmt"
	"sync"
)

// WindowHandle identifies one acquired window for the lifetime of its
// generation. A new acquisition or an explicit close invalidates it.
type WindowHandle struct {
	Generation string `json:"generation"`
	Title      string `json:"title"`
	PID        int    `json:"pid"`
	Native     uint64 `json:"native_handle"`

	element Element
}

// State is the single session record: one active window, one generation
// counter, one reference table. References are valid only against the
// generation that produced them; the token embeds the generation so a
// stale token can never resolve against a newer table.
type State struct {
	mu         sync.Mutex
	active     *WindowHandle
	genCounter int
	refs       map[string]Element
	refCounter int
}

func NewState() *State {
	return &State{refs: make(map[string]Element)}
}

// SetActive installs a freshly acquired window, invalidating the prior
// one: the reference table is cleared, the counter reset, and the next
// generation id allotted. Generation ids are monotonic and never reused.
func (s *State) SetActive(title string, pid int, native uint64, el Element) *WindowHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genCounter++
	s.active = &WindowHandle{
		Generation: fmt.Sprintf("w%d", s.genCounter),
		Title:      title,
		PID:        pid,
		Native:     native,
		element:    el,
	}
	s.refs = make(map[string]Element)
	s.refCounter = 0
	return s.active
}

// Close drops the active window and all its references. Returns the
// closed generation id, or false when nothing was active.
func (s *State) Close() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return "", false
	}
	gen := s.active.Generation
	s.active = nil
	s.refs = make(map[string]Element)
	s.refCounter = 0
	return gen, true
}

// Active returns the current window handle, or nil.
func (s *State) Active() *WindowHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActiveElement returns the active window's root element.
func (s *State) ActiveElement() (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, false
	}
	return s.active.element, true
}

// BeginSnapshot clears the reference table for the current generation.
// Every snapshot repopulates from scratch: references from the previous
// walk are invalid even when the tree has not changed. The counter keeps
// running within the generation so a cleared token string is never
// reissued by a later snapshot.
func (s *State) BeginSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return fmt.Errorf("no active window; launch or attach first")
	}
	s.refs = make(map[string]Element)
	return nil
}

// AllocRef records an element under the next sequential reference token
// for the current generation, e.g. "w3e12".
func (s *State) AllocRef(el Element) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refCounter++
	ref := fmt.Sprintf("%se%d", s.active.Generation, s.refCounter)
	s.refs[ref] = el
	return ref
}

// Resolve maps a reference token back to its element. Tokens from an
// older generation, or issued before the latest snapshot, fail here.
func (s *State) Resolve(ref string) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, fmt.Errorf("no active window; launch or attach first")
	}
	el, ok := s.refs[ref]
	if !ok {
		return nil, fmt.Errorf("unknown reference %q; run snapshot again and use a fresh reference", ref)
	}
	return el, nil
}

// RefCount returns the number of live references (diagnostics).
func (s *State) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}
