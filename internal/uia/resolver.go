package uia

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"winui-mcp-server/internal/facts"

	"github.com/google/uuid"
)

// Locator selects a window for attach. PID is exact and wins outright;
// otherwise Title (or TitleRegex) and ProcessName are scored against every
// top-level window.
type Locator struct {
	Title       string
	TitleRegex  string
	ProcessName string
	PID         int
}

// Candidate is one scored window from an ambiguous resolution, reported
// back to the caller so the next locator can be narrower.
type Candidate struct {
	Title   string `json:"title"`
	PID     int    `json:"pid"`
	Process string `json:"process"`
	Quality int    `json:"quality"`
	Reason  string `json:"reason"`
}

// AcquireResult reports a successful acquisition. Note and Alternates are
// populated when the pick was ambiguous.
type AcquireResult struct {
	Handle     *WindowHandle `json:"window"`
	TraceID    string        `json:"trace_id"`
	Note       string        `json:"note,omitempty"`
	Alternates []Candidate   `json:"alternates,omitempty"`
}

// AcquireErrorKind classifies acquisition failures. All are recoverable:
// session state is untouched and the caller retries with a narrower (or
// broader) locator.
type AcquireErrorKind string

const (
	AcquireNoneFound AcquireErrorKind = "none_found"
	AcquireUntitled  AcquireErrorKind = "untitled"
	AcquireTimeout   AcquireErrorKind = "timeout"
)

type AcquireError struct {
	Kind    AcquireErrorKind
	Message string
}

func (e *AcquireError) Error() string { return e.Message }

// matchRule scores one window against a locator. Rules are evaluated in
// order and the first hit wins, so the quality ranking is independent of
// window enumeration order.
type matchRule struct {
	quality int
	reason  string
	match   func(e windowEntry, loc Locator, re *regexp.Regexp, procQuery string) bool
}

var matchRules = []matchRule{
	{3, "regex title match", func(e windowEntry, loc Locator, re *regexp.Regexp, _ string) bool {
		return re != nil && re.MatchString(e.Title)
	}},
	{3, "exact title match", func(e windowEntry, loc Locator, re *regexp.Regexp, _ string) bool {
		return re == nil && loc.Title != "" && e.Title == loc.Title
	}},
	{2, "exact process-name match", func(e windowEntry, _ Locator, _ *regexp.Regexp, procQuery string) bool {
		return procQuery != "" && normalizeProcessName(e.Process) == normalizeProcessName(procQuery)
	}},
	{1, "partial title match", func(e windowEntry, loc Locator, re *regexp.Regexp, _ string) bool {
		return re == nil && loc.Title != "" &&
			strings.Contains(strings.ToLower(e.Title), strings.ToLower(loc.Title))
	}},
	{0, "partial process-name match", func(e windowEntry, _ Locator, _ *regexp.Regexp, procQuery string) bool {
		return procQuery != "" &&
			strings.Contains(normalizeProcessName(e.Process), normalizeProcessName(procQuery))
	}},
}

// scoreWindow returns the first rule hit for a window, or ok=false.
func scoreWindow(e windowEntry, loc Locator, re *regexp.Regexp, procQuery string) (quality int, reason string, ok bool) {
	for _, rule := range matchRules {
		if rule.match(e, loc, re, procQuery) {
			return rule.quality, rule.reason, true
		}
	}
	return 0, "", false
}

// AcquireByLocator resolves a locator to exactly one window and makes it
// the active window. Fuzzy matches (quality 0/1) owned by known host
// processes are excluded; exact matches never are. Ties on quality break
// to the shortest title, and surviving alternates are reported.
func (d *Driver) AcquireByLocator(ctx context.Context, loc Locator) (*AcquireResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := d.enumerate()
	if err != nil {
		return nil, err
	}

	if loc.PID != 0 {
		for _, e := range entries {
			if e.PID == loc.PID {
				return d.adopt(ctx, e, fmt.Sprintf("matched pid %d", loc.PID)), nil
			}
		}
		return nil, &AcquireError{
			Kind:    AcquireNoneFound,
			Message: fmt.Sprintf("no top-level window owned by pid %d; use list-windows to enumerate", loc.PID),
		}
	}

	var re *regexp.Regexp
	if loc.TitleRegex != "" {
		re, err = regexp.Compile(loc.TitleRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid title regex %q: %w", loc.TitleRegex, err)
		}
	}
	if loc.Title == "" && re == nil && loc.ProcessName == "" {
		return nil, fmt.Errorf("locator requires a title, title_regex, process, or pid")
	}

	// Process-name rules compare against the explicit filter when given,
	// else against the title query so attach("notepad") can hit the exe.
	procQuery := loc.ProcessName
	if procQuery == "" {
		procQuery = loc.Title
	}

	type scored struct {
		windowEntry
		quality int
		reason  string
	}
	var candidates []scored
	for _, e := range entries {
		quality, reason, ok := scoreWindow(e, loc, re, procQuery)
		if !ok {
			continue
		}
		// Host processes are only trusted for exact matches.
		if quality <= 1 && d.isHostProcess(e.Process) {
			continue
		}
		candidates = append(candidates, scored{windowEntry: e, quality: quality, reason: reason})
	}

	if len(candidates) == 0 {
		return nil, &AcquireError{
			Kind:    AcquireNoneFound,
			Message: fmt.Sprintf("no window matched %s; use list-windows, or broaden the locator", describeLocator(loc)),
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].quality != candidates[j].quality {
			return candidates[i].quality > candidates[j].quality
		}
		if len(candidates[i].Title) != len(candidates[j].Title) {
			return len(candidates[i].Title) < len(candidates[j].Title)
		}
		return candidates[i].Title < candidates[j].Title
	})

	winner := candidates[0]
	result := d.adopt(ctx, winner.windowEntry, winner.reason)

	for _, c := range candidates[1:] {
		if c.quality != winner.quality {
			break
		}
		result.Alternates = append(result.Alternates, Candidate{
			Title:   c.Title,
			PID:     c.PID,
			Process: c.Process,
			Quality: c.quality,
			Reason:  c.reason,
		})
	}
	if len(result.Alternates) > 0 {
		result.Note = fmt.Sprintf("%d windows matched at quality %d; picked %q (shortest title). Pass a pid or exact title to disambiguate.",
			len(result.Alternates)+1, winner.quality, winner.Title)
	}
	return result, nil
}

// AcquireByPath launches or adopts a target identified by a filesystem
// path (executable or package descriptor) or an installed package id, and
// makes its window the active window.
func (d *Driver) AcquireByPath(ctx context.Context, path, workingDir string, forceRestart bool) (*AcquireResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case isPackageDescriptor(path):
		return d.acquirePackageDescriptor(ctx, path)
	case isExecutablePath(path):
		return d.acquireExecutable(ctx, path, workingDir)
	default:
		return d.acquireInstalledPackage(ctx, path, forceRestart)
	}
}

func isPackageDescriptor(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".appxmanifest", ".appx", ".appxbundle", ".msix", ".msixbundle":
		return true
	}
	return false
}

func isExecutablePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".exe")
}

func (d *Driver) acquirePackageDescriptor(ctx context.Context, path string) (*AcquireResult, error) {
	if d.col.Deploy == nil {
		return nil, &ErrUnavailable{What: "package deployer"}
	}

	before, err := d.handleSet()
	if err != nil {
		return nil, err
	}
	if err := d.col.Deploy.RegisterPackage(path); err != nil {
		return nil, fmt.Errorf("register package %s: %w", path, err)
	}
	log.Printf("registered package %s, waiting for its window", path)

	entry, err := d.detectNewWindow(ctx, d.cfg.GetLaunchTimeout(), before)
	if err != nil {
		return nil, err
	}
	return d.adopt(ctx, entry, "new window after package registration"), nil
}

func (d *Driver) acquireExecutable(ctx context.Context, path, workingDir string) (*AcquireResult, error) {
	if d.col.Process == nil {
		return nil, &ErrUnavailable{What: "process layer"}
	}

	pid, err := d.col.Process.Start(path, workingDir)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	log.Printf("started %s as pid %d", path, pid)

	// Give the process a bounded settle window before polling; a timeout
	// here is not a failure, the window poll has its own deadline.
	_ = d.col.Process.WaitIdle(pid, int(d.cfg.GetIdleWait().Milliseconds()))

	entry, err := d.pollWindowByPID(ctx, pid, d.cfg.GetLaunchTimeout())
	if err != nil {
		return nil, err
	}
	return d.adopt(ctx, entry, fmt.Sprintf("window of launched pid %d", pid)), nil
}

func (d *Driver) acquireInstalledPackage(ctx context.Context, packageID string, forceRestart bool) (*AcquireResult, error) {
	if d.col.Deploy == nil {
		return nil, &ErrUnavailable{What: "package deployer"}
	}

	launchID, installPath, err := d.col.Deploy.ResolveInstalled(packageID)
	if err != nil {
		return nil, fmt.Errorf("resolve installed package %s: %w", packageID, err)
	}

	if existing, ok := d.findWindowByInstallPath(installPath); ok {
		if !forceRestart {
			return d.adopt(ctx, existing, "reused running package instance"), nil
		}
		if d.col.Process == nil {
			return nil, &ErrUnavailable{What: "process layer"}
		}
		if err := d.col.Process.Terminate(existing.PID); err != nil {
			return nil, fmt.Errorf("terminate pid %d for restart: %w", existing.PID, err)
		}
		log.Printf("terminated pid %d (%s) for forced restart", existing.PID, existing.Process)
	}

	before, err := d.handleSet()
	if err != nil {
		return nil, err
	}
	pid, err := d.col.Deploy.Launch(launchID)
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", launchID, err)
	}

	var entry windowEntry
	if pid > 0 {
		entry, err = d.pollWindowByPID(ctx, pid, d.cfg.GetLaunchTimeout())
	} else {
		entry, err = d.detectNewWindow(ctx, d.cfg.GetLaunchTimeout(), before)
	}
	if err != nil {
		return nil, err
	}
	return d.adopt(ctx, entry, "new window after package launch"), nil
}

// findWindowByInstallPath matches a running window whose process image
// lives under the package's install location.
func (d *Driver) findWindowByInstallPath(installPath string) (windowEntry, bool) {
	if installPath == "" || d.col.Process == nil {
		return windowEntry{}, false
	}
	entries, err := d.enumerate()
	if err != nil {
		return windowEntry{}, false
	}
	prefix := strings.ToLower(filepath.Clean(installPath))
	for _, e := range entries {
		exe, err := d.col.Process.ExecutablePath(e.PID)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(filepath.Clean(exe)), prefix) {
			return e, true
		}
	}
	return windowEntry{}, false
}

// handleSet snapshots the native handles of all current top-level windows
// for before/after comparison during new-window detection.
func (d *Driver) handleSet() (map[uint64]bool, error) {
	entries, err := d.enumerate()
	if err != nil {
		return nil, err
	}
	set := make(map[uint64]bool, len(entries))
	for _, e := range entries {
		set[e.Native] = true
	}
	return set, nil
}

// detectNewWindow polls until a top-level window appears whose handle was
// absent from the before set and whose process is not a known host, or
// the deadline passes. The wait is context-aware.
func (d *Driver) detectNewWindow(ctx context.Context, timeout time.Duration, before map[uint64]bool) (windowEntry, error) {
	ticker := time.NewTicker(d.cfg.GetPollInterval())
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	untitledSeen := false
	for {
		entries, err := d.enumerate()
		if err == nil {
			for _, e := range entries {
				if before[e.Native] || d.isHostProcess(e.Process) {
					continue
				}
				if e.Title == "" {
					// Keep polling, the window may still be titling itself.
					untitledSeen = true
					continue
				}
				return e, nil
			}
		}

		select {
		case <-ctx.Done():
			return windowEntry{}, ctx.Err()
		case <-deadline.C:
			if untitledSeen {
				return windowEntry{}, &AcquireError{
					Kind:    AcquireUntitled,
					Message: "a new window appeared but never reported a title; attach by pid from list-windows instead",
				}
			}
			return windowEntry{}, &AcquireError{
				Kind:    AcquireTimeout,
				Message: fmt.Sprintf("no new window within %s; use list-windows to attach manually", timeout),
			}
		case <-ticker.C:
		}
	}
}

// pollWindowByPID polls until a top-level window owned by pid appears or
// the deadline passes.
func (d *Driver) pollWindowByPID(ctx context.Context, pid int, timeout time.Duration) (windowEntry, error) {
	ticker := time.NewTicker(d.cfg.GetPollInterval())
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		entries, err := d.enumerate()
		if err == nil {
			for _, e := range entries {
				if e.PID == pid {
					return e, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return windowEntry{}, ctx.Err()
		case <-deadline.C:
			return windowEntry{}, &AcquireError{
				Kind:    AcquireTimeout,
				Message: fmt.Sprintf("pid %d showed no top-level window within %s; use list-windows to attach manually", pid, timeout),
			}
		case <-ticker.C:
		}
	}
}

// adopt installs a window as the active one, starting a new generation.
func (d *Driver) adopt(ctx context.Context, e windowEntry, reason string) *AcquireResult {
	handle := d.state.SetActive(e.Title, e.PID, e.Native, e.el)
	traceID := uuid.NewString()

	log.Printf("acquired window %q as %s (pid=%d, %s)", e.Title, handle.Generation, e.PID, reason)
	d.emit(ctx, facts.Fact{
		Predicate: "window_acquired",
		Args:      []interface{}{handle.Generation, e.Title, e.PID, traceID},
		Timestamp: time.Now(),
	})

	return &AcquireResult{Handle: handle, TraceID: traceID}
}

func describeLocator(loc Locator) string {
	var parts []string
	if loc.Title != "" {
		parts = append(parts, fmt.Sprintf("title %q", loc.Title))
	}
	if loc.TitleRegex != "" {
		parts = append(parts, fmt.Sprintf("regex %q", loc.TitleRegex))
	}
	if loc.ProcessName != "" {
		parts = append(parts, fmt.Sprintf("process %q", loc.ProcessName))
	}
	if len(parts) == 0 {
		return "empty locator"
	}
	return strings.Join(parts, ", ")
}
