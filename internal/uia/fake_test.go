package uia

import (
	"fmt"

	"winui-mcp-server/internal/config"
)

// fakeNode is the element type used by the fake provider. Tests build
// small trees by hand and hand the roots to fakeProvider.
type fakeNode struct {
	props    Props
	pats     Patterns
	bounds   Rect
	children []*fakeNode
	parent   *fakeNode

	invokeErr error
	clickX    int
	clickY    int
	clickErr  error
}

func node(name string, ct ControlType, children ...*fakeNode) *fakeNode {
	n := &fakeNode{props: Props{Name: name, ControlType: ct}}
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// fakeProvider implements Provider over fakeNode trees and logs every
// mutating call so tests can assert call order and counts.
type fakeProvider struct {
	windows []*fakeNode
	calls   []string
	typed   []string
	keys    []string
}

func (p *fakeProvider) log(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakeProvider) TopLevelWindows() ([]Element, error) {
	els := make([]Element, len(p.windows))
	for i, w := range p.windows {
		els[i] = w
	}
	return els, nil
}

func (p *fakeProvider) Props(el Element) (Props, error) {
	return el.(*fakeNode).props, nil
}

func (p *fakeProvider) Patterns(el Element) (Patterns, error) {
	return el.(*fakeNode).pats, nil
}

func (p *fakeProvider) Children(el Element) ([]Element, error) {
	n := el.(*fakeNode)
	els := make([]Element, len(n.children))
	for i, c := range n.children {
		els[i] = c
	}
	return els, nil
}

func (p *fakeProvider) Parent(el Element) (Element, error) {
	parent := el.(*fakeNode).parent
	if parent == nil {
		return nil, nil
	}
	return parent, nil
}

func (p *fakeProvider) Bounds(el Element) (Rect, error) {
	return el.(*fakeNode).bounds, nil
}

func (p *fakeProvider) Invoke(el Element) error {
	n := el.(*fakeNode)
	if n.invokeErr != nil {
		return n.invokeErr
	}
	p.log("invoke %s", n.props.Name)
	return nil
}

func (p *fakeProvider) Toggle(el Element) (ToggleState, error) {
	n := el.(*fakeNode)
	p.log("toggle %s", n.props.Name)
	if n.pats.Toggle != nil && *n.pats.Toggle == ToggleOff {
		return ToggleOn, nil
	}
	return ToggleOff, nil
}

func (p *fakeProvider) Select(el Element) error {
	p.log("select %s", el.(*fakeNode).props.Name)
	return nil
}

func (p *fakeProvider) SetValue(el Element, value string) error {
	p.log("setvalue %s=%s", el.(*fakeNode).props.Name, value)
	return nil
}

func (p *fakeProvider) Focus(el Element) error {
	p.log("focus %s", el.(*fakeNode).props.Name)
	return nil
}

func (p *fakeProvider) TypeText(text string) error {
	p.typed = append(p.typed, text)
	p.log("type %s", text)
	return nil
}

func (p *fakeProvider) PressKey(chord string) error {
	p.keys = append(p.keys, chord)
	p.log("key %s", chord)
	return nil
}

func (p *fakeProvider) ClickablePoint(el Element) (int, int, error) {
	n := el.(*fakeNode)
	if n.clickErr != nil {
		return 0, 0, n.clickErr
	}
	return n.clickX, n.clickY, nil
}

func (p *fakeProvider) Click(x, y int) error {
	p.log("click %d,%d", x, y)
	return nil
}

func (p *fakeProvider) ScrollOnce(el Element, dir ScrollDirection) error {
	p.log("scroll %s %s", el.(*fakeNode).props.Name, dir)
	return nil
}

// fakeProcess implements ProcessAPI over static maps.
type fakeProcess struct {
	names      map[int]string
	exePaths   map[int]string
	started    []string
	startPID   int
	startErr   error
	terminated []int
}

func (p *fakeProcess) Start(path, workingDir string) (int, error) {
	if p.startErr != nil {
		return 0, p.startErr
	}
	p.started = append(p.started, path)
	return p.startPID, nil
}

func (p *fakeProcess) Terminate(pid int) error {
	p.terminated = append(p.terminated, pid)
	return nil
}

func (p *fakeProcess) NameOf(pid int) (string, error) {
	name, ok := p.names[pid]
	if !ok {
		return "", fmt.Errorf("no process %d", pid)
	}
	return name, nil
}

func (p *fakeProcess) ExecutablePath(pid int) (string, error) {
	path, ok := p.exePaths[pid]
	if !ok {
		return "", fmt.Errorf("no process %d", pid)
	}
	return path, nil
}

func (p *fakeProcess) WaitIdle(pid int, timeoutMs int) error { return nil }

// fakeDeployer implements Deployer. onRegister lets a test make a new
// window appear as a side effect of registration.
type fakeDeployer struct {
	registered  []string
	launchID    string
	installPath string
	launchPID   int
	launched    []string
	onRegister  func()
}

func (d *fakeDeployer) RegisterPackage(path string) error {
	d.registered = append(d.registered, path)
	if d.onRegister != nil {
		d.onRegister()
	}
	return nil
}

func (d *fakeDeployer) ResolveInstalled(packageID string) (string, string, error) {
	return d.launchID, d.installPath, nil
}

func (d *fakeDeployer) Launch(launchID string) (int, error) {
	d.launched = append(d.launched, launchID)
	return d.launchPID, nil
}

// fastConfig returns an automation config with short deadlines so polling
// tests finish quickly.
func fastConfig() config.AutomationConfig {
	return config.AutomationConfig{
		LaunchTimeout: "200ms",
		IdleWait:      "10ms",
		PollInterval:  "10ms",
		FocusSettle:   "1ms",
	}
}

// windowNode builds a top-level window node with a pid and native handle.
func windowNode(title string, pid int, native uint64) *fakeNode {
	return &fakeNode{props: Props{
		Name:         title,
		ControlType:  ControlWindow,
		PID:          pid,
		NativeHandle: native,
	}}
}

// newTestDriver wires a driver over the given fakes with fast deadlines.
func newTestDriver(prov *fakeProvider, proc *fakeProcess, dep *fakeDeployer) *Driver {
	return NewDriver(fastConfig(), Collaborators{
		Provider: prov,
		Process:  proc,
		Deploy:   dep,
	}, nil)
}
