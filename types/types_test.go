package types

import "testing"

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in   string
		want Decision
		ok   bool
	}{
		{"pass", PASS, true},
		{"PASS", PASS, true},
		{"Drop", DROP, true},
		{"redirect", PASS, false},
	}

	for _, test := range tests {
		got, ok := ParseDecision(test.in)
		if ok != test.ok {
			t.Errorf("%q: got ok %v, want %v", test.in, ok, test.ok)
			continue
		}
		if ok && got != test.want {
			t.Errorf("%q: got %v, want %v", test.in, got, test.want)
		}
	}

	if s := Decision(42).String(); s != "unknown" {
		t.Errorf("got %q for an unknown decision", s)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"sklookup", SkLookup, true},
		{"sk_lookup", SkLookup, true},
		{"userspace", Userspace, true},
		{"UserSpace", Userspace, true},
		{"xdp", SkLookup, false},
	}

	for _, test := range tests {
		got, ok := ParseMode(test.in)
		if ok != test.ok {
			t.Errorf("%q: got ok %v, want %v", test.in, ok, test.ok)
			continue
		}
		if ok && got != test.want {
			t.Errorf("%q: got %v, want %v", test.in, got, test.want)
		}
		if ok && got.String() == "unknown" {
			t.Errorf("%q: mode %d has no name", test.in, got)
		}
	}
}

func TestLevelName(t *testing.T) {
	if got := LevelName(LevelTrace); got != "TRACE" {
		t.Errorf("got %q for the trace level", got)
	}
	if got := LevelName(LevelWarn); got != "WARN" {
		t.Errorf("got %q for the warn level", got)
	}
}
