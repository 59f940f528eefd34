// Package uia drives a desktop application through an external UI
// Automation provider. The provider, OS process layer, package deployer,
// and screen capturer are collaborators injected behind the interfaces in
// this file; the package itself owns window resolution, tree snapshots,
// and reference-indexed action dispatch.
package uia

import "fmt"

// ControlType identifies the provider-reported control class of an element.
type ControlType int

const (
	ControlUnknown ControlType = iota
	ControlButton
	ControlEdit
	ControlText
	ControlCheckBox
	ControlRadioButton
	ControlComboBox
	ControlList
	ControlListItem
	ControlMenu
	ControlMenuBar
	ControlMenuItem
	ControlTree
	ControlTreeItem
	ControlTab
	ControlTabItem
	ControlTable
	ControlDataItem
	ControlSlider
	ControlProgressBar
	ControlHyperlink
	ControlImage
	ControlGroup
	ControlPane
	ControlWindow
	ControlToolBar
	ControlDataGrid
)

// Element is an opaque handle owned by the provider. The core never
// inspects it; it only passes it back into provider calls.
type Element interface{}

// Props are the queryable properties of one element.
type Props struct {
	Name         string
	AutomationID string
	ControlType  ControlType
	PID          int
	NativeHandle uint64
	Disabled     bool
	Offscreen    bool
}

// ToggleState reports the current state of a toggleable element.
type ToggleState int

const (
	ToggleOff ToggleState = iota
	ToggleOn
	ToggleIndeterminate
)

func (t ToggleState) String() string {
	switch t {
	case ToggleOn:
		return "on"
	case ToggleIndeterminate:
		return "indeterminate"
	default:
		return "off"
	}
}

// ValueInfo describes an element's value capability.
type ValueInfo struct {
	ReadOnly bool
}

// Patterns enumerates the optional capabilities an element supports.
// Pointer fields are nil when the capability is absent; their value
// carries the current state when present.
type Patterns struct {
	Invoke   bool
	Toggle   *ToggleState
	Selected *bool
	Expanded *bool
	Value    *ValueInfo
	Scroll   bool
}

// Rect is an element's screen rectangle.
type Rect struct {
	X, Y, Width, Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// ScrollDirection selects the axis and sign of one scroll increment.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Provider is the external automation tree. All calls are synchronous and
// may fail transiently; callers treat errors as recoverable.
type Provider interface {
	// TopLevelWindows enumerates the desktop's top-level windows.
	TopLevelWindows() ([]Element, error)
	Props(el Element) (Props, error)
	Patterns(el Element) (Patterns, error)
	Children(el Element) ([]Element, error)
	// Parent returns nil, nil at the tree root.
	Parent(el Element) (Element, error)
	Bounds(el Element) (Rect, error)

	Invoke(el Element) error
	// Toggle flips the element and returns its resulting state.
	Toggle(el Element) (ToggleState, error)
	Select(el Element) error
	SetValue(el Element, value string) error
	Focus(el Element) error
	// TypeText injects literal keystrokes into the focused element.
	TypeText(text string) error
	// PressKey injects a named key or chord ("enter", "ctrl+a").
	PressKey(chord string) error
	// ClickablePoint returns the element's on-screen click target.
	ClickablePoint(el Element) (x, y int, err error)
	Click(x, y int) error
	// ScrollOnce issues one discrete scroll increment on the element.
	ScrollOnce(el Element, dir ScrollDirection) error
}

// ProcessAPI is the OS process layer.
type ProcessAPI interface {
	// Start launches an executable and returns its pid.
	Start(path, workingDir string) (int, error)
	Terminate(pid int) error
	// NameOf returns the executable name owning a pid.
	NameOf(pid int) (string, error)
	// ExecutablePath returns the full image path of a pid.
	ExecutablePath(pid int) (string, error)
	// WaitIdle blocks until the process is ready for input or the
	// deadline passes. Best effort; a timeout is not an error.
	WaitIdle(pid int, timeoutMs int) error
}

// Deployer is the package/deploy layer for packaged (MSIX/AppX) targets.
type Deployer interface {
	// RegisterPackage registers a package from its manifest or bundle path.
	RegisterPackage(path string) error
	// ResolveInstalled maps an installed package id to its launch id and
	// install location.
	ResolveInstalled(packageID string) (launchID, installPath string, err error)
	// Launch starts an installed package and returns the new pid when known.
	Launch(launchID string) (int, error)
}

// Capturer grabs window pixels through an external platform tool.
type Capturer interface {
	// CaptureWindow writes a PNG of the window to path.
	CaptureWindow(nativeHandle uint64, path string) error
}

// Collaborators bundles the injected platform services. Fields may be nil
// on platforms (or builds) where a collaborator is unavailable; every
// entry point checks and reports rather than panicking.
type Collaborators struct {
	Provider Provider
	Process  ProcessAPI
	Deploy   Deployer
	Capture  Capturer
}

// ErrUnavailable marks a collaborator missing from this build/platform.
type ErrUnavailable struct {
	What string
}

func (e *ErrUnavailable) Error() string {
	return e.What + " is not available on this platform"
}
