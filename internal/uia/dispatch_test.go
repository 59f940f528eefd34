package uia

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// dispatchFixture acquires a window and snapshots it, returning the
// driver, the provider, and the reference of the first child element.
func dispatchFixture(t *testing.T, children ...*fakeNode) (*Driver, *fakeProvider, string) {
	t.Helper()
	root := node("Main", ControlWindow, children...)
	root.props.PID = 1
	root.props.NativeHandle = 1
	prov := &fakeProvider{windows: []*fakeNode{root}}
	d := newTestDriver(prov, &fakeProcess{names: map[int]string{1: "main.exe"}}, nil)
	acquireWindow(t, d, "Main")
	if _, err := d.Snapshot(context.Background(), 2, false); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// The window is w1e1; its first child follows.
	return d, prov, "w1e2"
}

func TestActivateCapabilityOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("invoke beats toggle when both are supported", func(t *testing.T) {
		off := ToggleOff
		btn := node("Play", ControlButton)
		btn.pats.Invoke = true
		btn.pats.Toggle = &off
		d, prov, ref := dispatchFixture(t, btn)

		result, err := d.Activate(ctx, ref)
		if err != nil {
			t.Fatalf("activate: %v", err)
		}
		if result != "invoked" {
			t.Errorf("expected invoke to win, got %q", result)
		}
		for _, call := range prov.calls {
			if strings.HasPrefix(call, "toggle") {
				t.Errorf("toggle must not fire when invoke succeeds: %v", prov.calls)
			}
		}
	})

	t.Run("toggle reports the resulting state", func(t *testing.T) {
		off := ToggleOff
		box := node("Remember me", ControlCheckBox)
		box.pats.Toggle = &off
		d, _, ref := dispatchFixture(t, box)

		result, err := d.Activate(ctx, ref)
		if err != nil {
			t.Fatalf("activate: %v", err)
		}
		if result != "toggled to on" {
			t.Errorf("expected the resulting toggle state, got %q", result)
		}
	})

	t.Run("failed invoke falls through to toggle", func(t *testing.T) {
		off := ToggleOff
		el := node("Flaky", ControlButton)
		el.pats.Invoke = true
		el.pats.Toggle = &off
		el.invokeErr = errors.New("target rejected the call")
		d, _, ref := dispatchFixture(t, el)

		result, err := d.Activate(ctx, ref)
		if err != nil {
			t.Fatalf("activate: %v", err)
		}
		if !strings.HasPrefix(result, "toggled") {
			t.Errorf("expected the toggle fallback, got %q", result)
		}
	})

	t.Run("selection fires when invoke and toggle are absent", func(t *testing.T) {
		sel := false
		item := node("Row 2", ControlListItem)
		item.pats.Selected = &sel
		d, _, ref := dispatchFixture(t, item)

		result, err := d.Activate(ctx, ref)
		if err != nil {
			t.Fatalf("activate: %v", err)
		}
		if result != "selected" {
			t.Errorf("expected selection, got %q", result)
		}
	})

	t.Run("synthetic click is the last resort", func(t *testing.T) {
		img := node("Logo", ControlImage)
		img.clickX, img.clickY = 42, 99
		d, prov, ref := dispatchFixture(t, img)

		result, err := d.Activate(ctx, ref)
		if err != nil {
			t.Fatalf("activate: %v", err)
		}
		if result != "clicked at (42,99)" {
			t.Errorf("expected a synthetic click, got %q", result)
		}
		if len(prov.calls) != 1 || prov.calls[0] != "click 42,99" {
			t.Errorf("expected exactly one click call, got %v", prov.calls)
		}
	})

	t.Run("unknown reference performs no side effect", func(t *testing.T) {
		btn := node("OK", ControlButton)
		btn.pats.Invoke = true
		d, prov, _ := dispatchFixture(t, btn)

		_, err := d.Activate(ctx, "w9e9")
		if err == nil || !strings.Contains(err.Error(), "unknown reference") {
			t.Fatalf("expected an unknown-reference error, got %v", err)
		}
		if len(prov.calls) != 0 {
			t.Errorf("expected no provider calls, got %v", prov.calls)
		}
	})
}

func TestAppendText(t *testing.T) {
	ctx := context.Background()

	t.Run("focus then type", func(t *testing.T) {
		field := node("Search", ControlEdit)
		d, prov, ref := dispatchFixture(t, field)

		if _, err := d.AppendText(ctx, ref, "hello", false); err != nil {
			t.Fatalf("append: %v", err)
		}
		want := []string{"focus Search", "type hello"}
		if len(prov.calls) != len(want) {
			t.Fatalf("expected calls %v, got %v", want, prov.calls)
		}
		for i, w := range want {
			if prov.calls[i] != w {
				t.Errorf("call %d: expected %q, got %q", i, w, prov.calls[i])
			}
		}
	})

	t.Run("result counts characters, not bytes", func(t *testing.T) {
		field := node("Search", ControlEdit)
		d, _, ref := dispatchFixture(t, field)

		result, err := d.AppendText(ctx, ref, "héllø", false)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if result != "typed 5 characters" {
			t.Errorf("expected a rune count of 5, got %q", result)
		}
	})

	t.Run("submit presses enter after typing", func(t *testing.T) {
		field := node("Search", ControlEdit)
		d, prov, ref := dispatchFixture(t, field)

		if _, err := d.AppendText(ctx, ref, "query", true); err != nil {
			t.Fatalf("append: %v", err)
		}
		if len(prov.keys) != 1 || prov.keys[0] != "enter" {
			t.Errorf("expected an enter press, got %v", prov.keys)
		}
	})
}

func TestReplaceText(t *testing.T) {
	ctx := context.Background()

	t.Run("atomic set when the value capability allows", func(t *testing.T) {
		field := node("Name", ControlEdit)
		field.pats.Value = &ValueInfo{}
		d, prov, ref := dispatchFixture(t, field)

		result, err := d.ReplaceText(ctx, ref, "Ada")
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
		if result != "value set" {
			t.Errorf("expected the atomic path, got %q", result)
		}
		if len(prov.calls) != 1 || prov.calls[0] != "setvalue Name=Ada" {
			t.Errorf("expected one setvalue call, got %v", prov.calls)
		}
	})

	t.Run("read-only value falls through to select-all retype", func(t *testing.T) {
		field := node("Serial", ControlEdit)
		field.pats.Value = &ValueInfo{ReadOnly: true}
		d, prov, ref := dispatchFixture(t, field)

		result, err := d.ReplaceText(ctx, ref, "x")
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
		if !strings.Contains(result, "best effort") {
			t.Errorf("expected the best-effort fallback, got %q", result)
		}
		want := []string{"focus Serial", "key ctrl+a", "type x"}
		if len(prov.calls) != len(want) {
			t.Fatalf("expected calls %v, got %v", want, prov.calls)
		}
		for _, call := range prov.calls {
			if strings.HasPrefix(call, "setvalue") {
				t.Errorf("atomic set must not fire on a read-only value: %v", prov.calls)
			}
		}
	})

	t.Run("select-all fallback without a value capability", func(t *testing.T) {
		field := node("Notes", ControlEdit)
		d, prov, ref := dispatchFixture(t, field)

		result, err := d.ReplaceText(ctx, ref, "new text")
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
		if !strings.Contains(result, "best effort") {
			t.Errorf("expected the fallback to say best effort, got %q", result)
		}
		want := []string{"focus Notes", "key ctrl+a", "type new text"}
		if len(prov.calls) != len(want) {
			t.Fatalf("expected calls %v, got %v", want, prov.calls)
		}
		for i, w := range want {
			if prov.calls[i] != w {
				t.Errorf("call %d: expected %q, got %q", i, w, prov.calls[i])
			}
		}
	})
}

func TestScroll(t *testing.T) {
	ctx := context.Background()

	t.Run("scrolls the nearest scrollable ancestor", func(t *testing.T) {
		item := node("Row 40", ControlListItem)
		list := node("Results", ControlList, item)
		list.pats.Scroll = true
		d, prov, _ := dispatchFixture(t, list)
		// The list is w1e2, the row beneath it w1e3.
		result, err := d.Scroll(ctx, "w1e3", ScrollDown, 3)
		if err != nil {
			t.Fatalf("scroll: %v", err)
		}
		if result != "scrolled down 3 increments" {
			t.Errorf("unexpected result %q", result)
		}
		count := 0
		for _, call := range prov.calls {
			if call == "scroll Results down" {
				count++
			}
		}
		if count != 3 {
			t.Errorf("expected 3 increments on the list, got %d (%v)", count, prov.calls)
		}
	})

	t.Run("no scrollable ancestor makes zero scroll calls", func(t *testing.T) {
		item := node("Row 1", ControlListItem)
		list := node("Static", ControlList, item)
		d, prov, _ := dispatchFixture(t, list)

		_, err := d.Scroll(ctx, "w1e3", ScrollDown, 3)
		if err == nil || !strings.Contains(err.Error(), "no scrollable ancestor") {
			t.Fatalf("expected a no-scrollable-ancestor error, got %v", err)
		}
		for _, call := range prov.calls {
			if strings.HasPrefix(call, "scroll") {
				t.Errorf("expected zero scroll calls, got %v", prov.calls)
			}
		}
	})

	t.Run("unknown direction is rejected", func(t *testing.T) {
		list := node("Results", ControlList)
		list.pats.Scroll = true
		d, _, ref := dispatchFixture(t, list)

		if _, err := d.Scroll(ctx, ref, ScrollDirection("sideways"), 1); err == nil {
			t.Error("expected an unknown-direction error")
		}
	})
}
