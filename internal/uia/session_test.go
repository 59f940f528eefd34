package uia

import (
	"strings"
	"testing"
)

func TestStateGenerations(t *testing.T) {
	s := NewState()

	t.Run("monotonic ids", func(t *testing.T) {
		h1 := s.SetActive("First", 100, 1, node("First", ControlWindow))
		if h1.Generation != "w1" {
			t.Errorf("expected w1, got %q", h1.Generation)
		}
		h2 := s.SetActive("Second", 200, 2, node("Second", ControlWindow))
		if h2.Generation != "w2" {
			t.Errorf("expected w2, got %q", h2.Generation)
		}
	})

	t.Run("close then acquire never reuses an id", func(t *testing.T) {
		gen, had := s.Close()
		if !had || gen != "w2" {
			t.Fatalf("expected to close w2, got %q had=%v", gen, had)
		}
		h := s.SetActive("Third", 300, 3, node("Third", ControlWindow))
		if h.Generation != "w3" {
			t.Errorf("expected w3 after close, got %q", h.Generation)
		}
	})

	t.Run("close with nothing active", func(t *testing.T) {
		s.Close()
		if _, had := s.Close(); had {
			t.Error("expected second close to report nothing active")
		}
	})
}

func TestStateReferences(t *testing.T) {
	s := NewState()
	el := node("Button", ControlButton)
	s.SetActive("Win", 100, 1, node("Win", ControlWindow))

	t.Run("tokens embed the generation", func(t *testing.T) {
		if err := s.BeginSnapshot(); err != nil {
			t.Fatalf("begin snapshot: %v", err)
		}
		ref := s.AllocRef(el)
		if !strings.HasPrefix(ref, "w1e") {
			t.Errorf("expected w1-prefixed token, got %q", ref)
		}
		got, err := s.Resolve(ref)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if got != Element(el) {
			t.Error("resolved to a different element")
		}
	})

	t.Run("resnapshot invalidates prior references", func(t *testing.T) {
		if err := s.BeginSnapshot(); err != nil {
			t.Fatalf("begin snapshot: %v", err)
		}
		old := s.AllocRef(el)
		if err := s.BeginSnapshot(); err != nil {
			t.Fatalf("begin snapshot: %v", err)
		}
		if _, err := s.Resolve(old); err == nil {
			t.Errorf("expected %q to be invalid after resnapshot", old)
		}
	})

	t.Run("cross-generation lookup fails explicitly", func(t *testing.T) {
		s.BeginSnapshot()
		stale := s.AllocRef(el)
		s.SetActive("Other", 200, 2, node("Other", ControlWindow))
		s.BeginSnapshot()
		s.AllocRef(node("Other Button", ControlButton))
		_, err := s.Resolve(stale)
		if err == nil {
			t.Fatalf("expected stale token %q to fail against the new table", stale)
		}
		if !strings.Contains(err.Error(), "unknown reference") {
			t.Errorf("expected an unknown-reference error, got %v", err)
		}
	})

	t.Run("snapshot requires an active window", func(t *testing.T) {
		s.Close()
		if err := s.BeginSnapshot(); err == nil {
			t.Error("expected error with no active window")
		}
		if _, err := s.Resolve("w1e1"); err == nil {
			t.Error("expected resolve to fail with no active window")
		}
	})
}
