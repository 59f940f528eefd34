package uia

import (
	"context"
	"errors"
	"testing"
)

func TestAcquireByLocatorQuality(t *testing.T) {
	prov := &fakeProvider{windows: []*fakeNode{
		windowNode("Editor — Settings", 201, 2),
		windowNode("Editor", 101, 1),
		windowNode("Some Editor Fork", 301, 3),
	}}
	proc := &fakeProcess{names: map[int]string{
		101: "editor.exe",
		201: "editor.exe",
		301: "fork.exe",
	}}
	d := newTestDriver(prov, proc, nil)

	t.Run("exact title outranks partial", func(t *testing.T) {
		res, err := d.AcquireByLocator(context.Background(), Locator{Title: "Editor"})
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.Title != "Editor" {
			t.Errorf("expected the exact match, got %q", res.Handle.Title)
		}
		if res.Handle.PID != 101 {
			t.Errorf("expected pid 101, got %d", res.Handle.PID)
		}
	})

	t.Run("regex counts as exact quality", func(t *testing.T) {
		res, err := d.AcquireByLocator(context.Background(), Locator{TitleRegex: `^Editor —`})
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.Title != "Editor — Settings" {
			t.Errorf("expected the regex match, got %q", res.Handle.Title)
		}
	})

	t.Run("process name matches without a title hit", func(t *testing.T) {
		res, err := d.AcquireByLocator(context.Background(), Locator{ProcessName: "fork"})
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.PID != 301 {
			t.Errorf("expected the fork window, got pid %d", res.Handle.PID)
		}
	})

	t.Run("no match reports none found", func(t *testing.T) {
		_, err := d.AcquireByLocator(context.Background(), Locator{Title: "Nothing Like This"})
		var ae *AcquireError
		if !errors.As(err, &ae) || ae.Kind != AcquireNoneFound {
			t.Fatalf("expected a none-found acquire error, got %v", err)
		}
	})

	t.Run("empty locator is rejected", func(t *testing.T) {
		if _, err := d.AcquireByLocator(context.Background(), Locator{}); err == nil {
			t.Error("expected an error for an empty locator")
		}
	})
}

func TestAcquireByLocatorTieBreak(t *testing.T) {
	// Two exact-quality regex matches; the shortest title wins and the
	// other survives as an alternate.
	prov := &fakeProvider{windows: []*fakeNode{
		windowNode("Notepad - long draft", 202, 2),
		windowNode("Notepad", 102, 1),
	}}
	proc := &fakeProcess{names: map[int]string{102: "notepad.exe", 202: "notepad.exe"}}
	d := newTestDriver(prov, proc, nil)

	res, err := d.AcquireByLocator(context.Background(), Locator{TitleRegex: `Notepad`})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if res.Handle.Title != "Notepad" {
		t.Errorf("expected the shortest title, got %q", res.Handle.Title)
	}
	if len(res.Alternates) != 1 || res.Alternates[0].Title != "Notepad - long draft" {
		t.Errorf("expected one alternate, got %+v", res.Alternates)
	}
	if res.Note == "" {
		t.Error("expected an ambiguity note")
	}
}

func TestAcquireByLocatorHostDenylist(t *testing.T) {
	prov := &fakeProvider{windows: []*fakeNode{
		windowNode("notepad - Visual Studio Code", 401, 4),
		windowNode("Untitled - Notepad", 102, 1),
	}}
	proc := &fakeProcess{names: map[int]string{401: "Code.exe", 102: "notepad.exe"}}
	d := newTestDriver(prov, proc, nil)

	t.Run("fuzzy match skips host processes", func(t *testing.T) {
		res, err := d.AcquireByLocator(context.Background(), Locator{Title: "notepad"})
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.PID != 102 {
			t.Errorf("expected the real notepad window, got pid %d (%q)", res.Handle.PID, res.Handle.Title)
		}
	})

	t.Run("exact match bypasses the denylist", func(t *testing.T) {
		res, err := d.AcquireByLocator(context.Background(), Locator{Title: "notepad - Visual Studio Code"})
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.PID != 401 {
			t.Errorf("expected the editor window via exact title, got pid %d", res.Handle.PID)
		}
	})
}

func TestAcquireByLocatorPID(t *testing.T) {
	prov := &fakeProvider{windows: []*fakeNode{
		windowNode("A", 10, 1),
		windowNode("B", 20, 2),
	}}
	proc := &fakeProcess{names: map[int]string{10: "a.exe", 20: "b.exe"}}
	d := newTestDriver(prov, proc, nil)

	t.Run("pid wins outright", func(t *testing.T) {
		res, err := d.AcquireByLocator(context.Background(), Locator{PID: 20, Title: "A"})
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.Title != "B" {
			t.Errorf("expected pid to override the title, got %q", res.Handle.Title)
		}
	})

	t.Run("unknown pid reports none found", func(t *testing.T) {
		_, err := d.AcquireByLocator(context.Background(), Locator{PID: 999})
		var ae *AcquireError
		if !errors.As(err, &ae) || ae.Kind != AcquireNoneFound {
			t.Fatalf("expected a none-found acquire error, got %v", err)
		}
	})
}

func TestAcquireByPathExecutable(t *testing.T) {
	prov := &fakeProvider{}
	proc := &fakeProcess{startPID: 555, names: map[int]string{555: "myapp.exe"}}
	d := newTestDriver(prov, proc, nil)

	t.Run("launch then adopt the pid's window", func(t *testing.T) {
		// The window appears while the driver is polling.
		prov.windows = []*fakeNode{windowNode("My App", 555, 9)}
		res, err := d.AcquireByPath(context.Background(), `C:\apps\myapp.exe`, "", false)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.PID != 555 {
			t.Errorf("expected the launched pid's window, got %d", res.Handle.PID)
		}
		if len(proc.started) != 1 {
			t.Errorf("expected one process start, got %d", len(proc.started))
		}
	})

	t.Run("timeout when no window appears", func(t *testing.T) {
		prov.windows = nil
		_, err := d.AcquireByPath(context.Background(), `C:\apps\myapp.exe`, "", false)
		var ae *AcquireError
		if !errors.As(err, &ae) || ae.Kind != AcquireTimeout {
			t.Fatalf("expected a timeout acquire error, got %v", err)
		}
	})
}

func TestAcquireByPathInstalledPackage(t *testing.T) {
	t.Run("reuses a running instance", func(t *testing.T) {
		prov := &fakeProvider{windows: []*fakeNode{windowNode("Packaged App", 700, 7)}}
		proc := &fakeProcess{
			names:    map[int]string{700: "packaged.exe"},
			exePaths: map[int]string{700: `C:\Program Files\WindowsApps\Pkg_1.0\packaged.exe`},
		}
		dep := &fakeDeployer{launchID: "Pkg!App", installPath: `C:\Program Files\WindowsApps\Pkg_1.0`}
		d := newTestDriver(prov, proc, dep)

		res, err := d.AcquireByPath(context.Background(), "Pkg", "", false)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Handle.PID != 700 {
			t.Errorf("expected the running instance, got pid %d", res.Handle.PID)
		}
		if len(dep.launched) != 0 {
			t.Errorf("expected no relaunch, got %v", dep.launched)
		}
	})

	t.Run("force restart terminates and relaunches", func(t *testing.T) {
		// Old and new instance windows both enumerable; the install-path
		// lookup only recognizes the old pid, the relaunch poll the new one.
		prov := &fakeProvider{windows: []*fakeNode{
			windowNode("Packaged App", 700, 7),
			windowNode("Packaged App", 701, 8),
		}}
		proc := &fakeProcess{
			names:    map[int]string{700: "packaged.exe", 701: "packaged.exe"},
			exePaths: map[int]string{700: `C:\Program Files\WindowsApps\Pkg_1.0\packaged.exe`},
		}
		dep := &fakeDeployer{launchID: "Pkg!App", installPath: `C:\Program Files\WindowsApps\Pkg_1.0`, launchPID: 701}
		d := newTestDriver(prov, proc, dep)

		res, err := d.AcquireByPath(context.Background(), "Pkg", "", true)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if len(proc.terminated) != 1 || proc.terminated[0] != 700 {
			t.Errorf("expected pid 700 terminated, got %v", proc.terminated)
		}
		if res.Handle.PID != 701 {
			t.Errorf("expected the relaunched pid's window, got %d", res.Handle.PID)
		}
	})
}

func TestAcquireByPathPackageDescriptor(t *testing.T) {
	w := windowNode("Fresh App", 800, 11)
	prov := &fakeProvider{}
	proc := &fakeProcess{names: map[int]string{800: "fresh.exe"}}
	dep := &fakeDeployer{}
	// Registration makes a window appear that was absent before it.
	dep.onRegister = func() {
		prov.windows = []*fakeNode{w}
	}
	d := newTestDriver(prov, proc, dep)

	res, err := d.AcquireByPath(context.Background(), `C:\src\App\Package.appxmanifest`, "", false)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(dep.registered) != 1 {
		t.Fatalf("expected one package registration, got %d", len(dep.registered))
	}
	if res.Handle.Title != "Fresh App" {
		t.Errorf("expected the new window, got %q", res.Handle.Title)
	}
}

func TestGenerationSequenceAcrossCloseAndLaunch(t *testing.T) {
	prov := &fakeProvider{windows: []*fakeNode{
		windowNode("One", 1, 1),
		windowNode("Two", 2, 2),
	}}
	proc := &fakeProcess{names: map[int]string{1: "one.exe", 2: "two.exe"}}
	d := newTestDriver(prov, proc, nil)

	r1, err := d.AcquireByLocator(context.Background(), Locator{Title: "One"})
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	r2, err := d.AcquireByLocator(context.Background(), Locator{Title: "Two"})
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if r1.Handle.Generation != "w1" || r2.Handle.Generation != "w2" {
		t.Fatalf("expected w1 then w2, got %q then %q", r1.Handle.Generation, r2.Handle.Generation)
	}

	if gen, had := d.CloseWindow(context.Background()); !had || gen != "w2" {
		t.Fatalf("expected to close w2, got %q had=%v", gen, had)
	}

	r3, err := d.AcquireByLocator(context.Background(), Locator{Title: "One"})
	if err != nil {
		t.Fatalf("third acquire: %v", err)
	}
	if r3.Handle.Generation != "w3" {
		t.Errorf("expected w3 after close, got %q", r3.Handle.Generation)
	}
}

func TestListWindows(t *testing.T) {
	prov := &fakeProvider{windows: []*fakeNode{
		windowNode("One", 1, 1),
		windowNode("Two", 2, 2),
	}}
	proc := &fakeProcess{names: map[int]string{1: "one.exe", 2: "two.exe"}}
	d := newTestDriver(prov, proc, nil)

	infos, err := d.ListWindows()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(infos))
	}
	if infos[0].Process != "one.exe" {
		t.Errorf("expected process names resolved, got %q", infos[0].Process)
	}
	if d.Active() != nil {
		t.Error("listing must not touch session state")
	}
}
