package sklookup

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
)

func TestConfigDefaults(t *testing.T) {
	var got Config
	if err := yaml.Unmarshal([]byte("debugMode: true\n"), &got); err != nil {
		t.Fatalf("error unmarshaling: %v", err)
	}

	want := Config{NetnsPath: DEFAULT_NETNS, DebugMode: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if got := embeddedProgram(got.DebugMode); got != EMBEDDED_DBG {
		t.Errorf("got program %q, want %q", got, EMBEDDED_DBG)
	}
}
