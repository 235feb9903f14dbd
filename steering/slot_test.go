package steering

import (
	"testing"

	"github.com/gwuah/steerd/types"
)

func TestSlotReferences(t *testing.T) {
	s := NewSlot()

	if _, ok := s.Get(); ok {
		t.Fatalf("got a reference out of an empty slot")
	}
	if s.Present() {
		t.Errorf("empty slot reports a target")
	}

	first := &fakeTarget{}
	s.Set(first)

	sk, ok := s.Get()
	if !ok {
		t.Fatalf("got no reference out of a populated slot")
	}
	if n := s.Outstanding(); n != 1 {
		t.Errorf("got %d outstanding references, want 1", n)
	}

	// The borrowed reference outlives a swap.
	second := &fakeTarget{}
	s.Set(second)
	if err := sk.Assign(lookup(8080)); err != nil {
		t.Fatalf("error assigning: %v", err)
	}
	if len(first.assigned) != 1 || len(second.assigned) != 0 {
		t.Errorf("the connection went to the wrong target")
	}

	sk.Release()
	sk.Release()
	if n := s.Outstanding(); n != 0 {
		t.Errorf("got %d outstanding references after a double release, want 0", n)
	}

	s.Set(nil)
	if s.Present() {
		t.Errorf("setting a nil target didn't clear the slot")
	}

	s.Set(second)
	s.Clear()
	if _, ok := s.Get(); ok {
		t.Errorf("got a reference out of a cleared slot")
	}
}

func TestSlotSetNil(t *testing.T) {
	var typed *fakeTarget

	for name, target := range map[string]Target{"untyped": nil, "typed": typed} {
		s := NewSlot()
		s.Set(&fakeTarget{})
		s.Set(target)

		if s.Present() {
			t.Errorf("%s nil: slot still reports a target", name)
		}
		if _, ok := s.Get(); ok {
			t.Errorf("%s nil: got a reference out of the slot", name)
		}
	}
}

func TestSteerWithTypedNilTarget(t *testing.T) {
	var typed *fakeTarget
	e, _, slot := newTestEngine(t, &fakeTarget{}, 8080)
	slot.Set(typed)

	if got := e.Steer(lookup(8080)); got != types.DROP {
		t.Errorf("got %v, want %v", got, types.DROP)
	}
	if n := slot.Outstanding(); n != 0 {
		t.Errorf("%d references weren't released", n)
	}
}
