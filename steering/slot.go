package steering

import (
	"reflect"
	"sync/atomic"
)

// Target is whatever ends up receiving steered connections.
type Target interface {
	Assign(LookupContext) error
}

// Slot is an in-memory SocketRegistry holding at most one Target. Get is
// lock-free and every reference it hands out is accounted for until it's
// released.
type Slot struct {
	entry       atomic.Pointer[slotEntry]
	outstanding atomic.Int64
}

type slotEntry struct {
	target Target
}

func NewSlot() *Slot {
	return &Slot{}
}

// Set registers t, replacing any previous target. References borrowed before
// the call keep pointing to the previous target until released. A nil t,
// typed or not, empties the slot.
func (s *Slot) Set(t Target) {
	if isNil(t) {
		s.Clear()
		return
	}
	s.entry.Store(&slotEntry{target: t})
}

func (s *Slot) Clear() {
	s.entry.Store(nil)
}

func (s *Slot) Present() bool {
	return s.entry.Load() != nil
}

// Outstanding is the number of references handed out by Get that haven't
// been released yet.
func (s *Slot) Outstanding() int64 {
	return s.outstanding.Load()
}

func (s *Slot) Get() (Socket, bool) {
	e := s.entry.Load()
	if e == nil {
		return nil, false
	}
	s.outstanding.Add(1)
	return &borrowed{slot: s, target: e.target}, true
}

type borrowed struct {
	slot     *Slot
	target   Target
	released atomic.Bool
}

func (b *borrowed) Assign(lookup LookupContext) error {
	return b.target.Assign(lookup)
}

// Release is idempotent: only the first call gives the reference back.
func (b *borrowed) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.slot.outstanding.Add(-1)
	}
}

func isNil(t Target) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
