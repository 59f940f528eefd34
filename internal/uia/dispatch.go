package uia

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"winui-mcp-server/internal/facts"
)

// maxScrollAncestors bounds the upward walk when hunting for a scrollable
// container, guarding against a provider that loops its parent links.
const maxScrollAncestors = 64

// scrollYield is the pause between discrete scroll increments so the
// target can repaint between them.
const scrollYield = 100 * time.Millisecond

// Activate performs the element's primary action through a fixed
// capability chain: invoke, then toggle, then selection, then a synthetic
// click at the clickable point. The chain order is deterministic; an
// element supporting several capabilities always gets the highest one.
// The returned text names the mechanism that fired.
func (d *Driver) Activate(ctx context.Context, ref string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.state.Resolve(ref)
	if err != nil {
		return "", err
	}

	pats, err := d.col.Provider.Patterns(el)
	if err != nil {
		return "", fmt.Errorf("read capabilities of %s: %w", ref, err)
	}

	if pats.Invoke {
		if err := d.col.Provider.Invoke(el); err == nil {
			return d.actionDone(ctx, ref, "activate", "invoked"), nil
		}
	}
	if pats.Toggle != nil {
		if state, err := d.col.Provider.Toggle(el); err == nil {
			return d.actionDone(ctx, ref, "activate", fmt.Sprintf("toggled to %s", state)), nil
		}
	}
	if pats.Selected != nil {
		if err := d.col.Provider.Select(el); err == nil {
			return d.actionDone(ctx, ref, "activate", "selected"), nil
		}
	}

	x, y, err := d.col.Provider.ClickablePoint(el)
	if err != nil {
		return "", fmt.Errorf("element %s supports no activation capability and has no clickable point: %w", ref, err)
	}
	if err := d.col.Provider.Click(x, y); err != nil {
		return "", fmt.Errorf("click at (%d,%d) for %s: %w", x, y, ref, err)
	}
	return d.actionDone(ctx, ref, "activate", fmt.Sprintf("clicked at (%d,%d)", x, y)), nil
}

// AppendText focuses the element, waits briefly for the focus change to
// settle, then types the text literally. With submit the enter key is
// pressed afterward.
func (d *Driver) AppendText(ctx context.Context, ref, text string, submit bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.state.Resolve(ref)
	if err != nil {
		return "", err
	}

	if err := d.col.Provider.Focus(el); err != nil {
		return "", fmt.Errorf("focus %s: %w", ref, err)
	}
	if err := sleepCtx(ctx, d.cfg.GetFocusSettle()); err != nil {
		return "", err
	}
	if err := d.col.Provider.TypeText(text); err != nil {
		return "", fmt.Errorf("type into %s: %w", ref, err)
	}
	n := utf8.RuneCountInString(text)
	if submit {
		if err := d.col.Provider.PressKey("enter"); err != nil {
			return "", fmt.Errorf("submit after typing into %s: %w", ref, err)
		}
		return d.actionDone(ctx, ref, "append-text", fmt.Sprintf("typed %d characters and submitted", n)), nil
	}
	return d.actionDone(ctx, ref, "append-text", fmt.Sprintf("typed %d characters", n)), nil
}

// ReplaceText sets the element's value atomically when the value
// capability allows it. Everything else, a read-only value capability
// included, falls back to select-all plus retyping, which is best
// effort.
func (d *Driver) ReplaceText(ctx context.Context, ref, value string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.state.Resolve(ref)
	if err != nil {
		return "", err
	}

	pats, err := d.col.Provider.Patterns(el)
	if err != nil {
		return "", fmt.Errorf("read capabilities of %s: %w", ref, err)
	}

	if pats.Value != nil && !pats.Value.ReadOnly {
		if err := d.col.Provider.SetValue(el, value); err != nil {
			return "", fmt.Errorf("set value of %s: %w", ref, err)
		}
		return d.actionDone(ctx, ref, "replace-text", "value set"), nil
	}

	if err := d.col.Provider.Focus(el); err != nil {
		return "", fmt.Errorf("focus %s: %w", ref, err)
	}
	if err := sleepCtx(ctx, d.cfg.GetFocusSettle()); err != nil {
		return "", err
	}
	if err := d.col.Provider.PressKey("ctrl+a"); err != nil {
		return "", fmt.Errorf("select-all in %s: %w", ref, err)
	}
	if err := d.col.Provider.TypeText(value); err != nil {
		return "", fmt.Errorf("retype into %s: %w", ref, err)
	}
	return d.actionDone(ctx, ref, "replace-text", "replaced via select-all and retype (best effort)"), nil
}

// Scroll walks upward from the referenced element to the nearest
// scrollable container and issues amount discrete increments in the
// given direction. No scroll call is made when no ancestor scrolls.
func (d *Driver) Scroll(ctx context.Context, ref string, dir ScrollDirection, amount int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.state.Resolve(ref)
	if err != nil {
		return "", err
	}
	switch dir {
	case ScrollUp, ScrollDown, ScrollLeft, ScrollRight:
	default:
		return "", fmt.Errorf("unknown scroll direction %q", dir)
	}
	if amount < 1 {
		amount = 1
	}

	target, err := d.scrollableAncestor(el)
	if err != nil {
		return "", err
	}
	if target == nil {
		return "", fmt.Errorf("no scrollable ancestor of %s", ref)
	}

	for i := 0; i < amount; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, scrollYield); err != nil {
				return "", err
			}
		}
		if err := d.col.Provider.ScrollOnce(target, dir); err != nil {
			return "", fmt.Errorf("scroll %s increment %d/%d: %w", dir, i+1, amount, err)
		}
	}
	return d.actionDone(ctx, ref, "scroll", fmt.Sprintf("scrolled %s %d increments", dir, amount)), nil
}

// scrollableAncestor returns the nearest node (the element itself
// included) whose capabilities report scroll support, or nil when the
// chain up to the root has none.
func (d *Driver) scrollableAncestor(el Element) (Element, error) {
	cur := el
	for i := 0; i < maxScrollAncestors && cur != nil; i++ {
		pats, err := d.col.Provider.Patterns(cur)
		if err == nil && pats.Scroll {
			return cur, nil
		}
		parent, err := d.col.Provider.Parent(cur)
		if err != nil {
			return nil, fmt.Errorf("walk toward scrollable ancestor: %w", err)
		}
		cur = parent
	}
	return nil, nil
}

// actionDone records the action fact and returns the result text.
func (d *Driver) actionDone(ctx context.Context, ref, action, result string) string {
	gen := ""
	if h := d.state.Active(); h != nil {
		gen = h.Generation
	}
	d.emit(ctx, facts.Fact{
		Predicate: "ui_action",
		Args:      []interface{}{gen, ref, action, result},
		Timestamp: time.Now(),
	})
	return result
}

// sleepCtx pauses for dur unless the context ends first.
func sleepCtx(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
