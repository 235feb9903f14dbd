package types

import (
	"strings"
)

// Decision is the outcome of a single connection lookup. There is no error
// outcome: every failure collapses into either PASS or DROP.
type Decision int

// Mode selects where the steering decision is taken.
type Mode int

const (
	// PASS lets the lookup go on. If the connection was steered it has
	// already been handed over to the dedicated socket.
	PASS Decision = iota
	DROP

	// SkLookup runs the decision in the kernel as an sk_lookup program.
	SkLookup Mode = iota
	// Userspace runs the decision on accept() within our own listeners.
	Userspace
)

var (
	decisionMap = map[string]Decision{
		"PASS": PASS,
		"DROP": DROP,
	}

	noisicedMap = map[Decision]string{
		PASS: "pass",
		DROP: "drop",
	}

	modeMap = map[string]Mode{
		"SKLOOKUP":  SkLookup,
		"USERSPACE": Userspace,
	}

	edomMap = map[Mode]string{
		SkLookup:  "sklookup",
		Userspace: "userspace",
	}
)

func (d Decision) String() string {
	s, ok := noisicedMap[d]
	if !ok {
		return "unknown"
	}
	return s
}

func ParseDecision(decision string) (Decision, bool) {
	d, ok := decisionMap[strings.ToUpper(decision)]
	return d, ok
}

func (m Mode) String() string {
	s, ok := edomMap[m]
	if !ok {
		return "unknown"
	}
	return s
}

func ParseMode(mode string) (Mode, bool) {
	m, ok := modeMap[strings.ToUpper(strings.ReplaceAll(mode, "_", ""))]
	return m, ok
}

// Component is implemented by every long-running piece wired together by
// the daemon. Run blocks until done is closed.
type Component interface {
	Init() error
	Run(done <-chan struct{})
	Cleanup() error
	String() string
}
