package steering

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllowlistCapacity(t *testing.T) {
	a, err := NewAllowlist()
	if err != nil {
		t.Fatalf("error creating the allow-list: %v", err)
	}

	for port := 1; port <= MaxPorts; port++ {
		if err := a.Add(uint16(port)); err != nil {
			t.Fatalf("error adding port %d: %v", port, err)
		}
	}

	if err := a.Add(uint16(MaxPorts + 1)); !errors.Is(err, ErrAllowlistFull) {
		t.Errorf("got %v adding port %d, want %v", err, MaxPorts+1, ErrAllowlistFull)
	}

	// Re-adding a present port is fine even when full.
	if err := a.Add(1); err != nil {
		t.Errorf("error re-adding port 1: %v", err)
	}

	if a.Len() != MaxPorts {
		t.Errorf("got %d ports, want %d", a.Len(), MaxPorts)
	}

	for port := 1; port <= MaxPorts; port++ {
		if !a.Contains(uint16(port)) {
			t.Fatalf("port %d went missing", port)
		}
	}
	if a.Contains(uint16(MaxPorts + 1)) {
		t.Errorf("rejected port %d is present", MaxPorts+1)
	}

	if err := a.Remove(1); err != nil {
		t.Fatalf("error removing port 1: %v", err)
	}
	if err := a.Add(uint16(MaxPorts + 1)); err != nil {
		t.Errorf("error adding port %d after freeing a slot: %v", MaxPorts+1, err)
	}
}

func TestAllowlistOps(t *testing.T) {
	a, err := NewAllowlist(9090, 8080, 8080)
	if err != nil {
		t.Fatalf("error creating the allow-list: %v", err)
	}

	got, _ := a.Ports()
	if want := []uint16{8080, 9090}; !cmp.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if err := a.Remove(443); !errors.Is(err, ErrPortNotFound) {
		t.Errorf("got %v removing an absent port, want %v", err, ErrPortNotFound)
	}

	if err := a.Add(0); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("got %v adding port 0, want %v", err, ErrInvalidPort)
	}

	if err := a.Remove(8080); err != nil {
		t.Errorf("error removing 8080: %v", err)
	}
	if a.Contains(8080) {
		t.Errorf("8080 is still steered")
	}
}

func TestNewAllowlistTooManyPorts(t *testing.T) {
	ports := make([]uint16, 0, MaxPorts+1)
	for port := 1; port <= MaxPorts+1; port++ {
		ports = append(ports, uint16(port))
	}

	if _, err := NewAllowlist(ports...); !errors.Is(err, ErrAllowlistFull) {
		t.Errorf("got %v, want %v", err, ErrAllowlistFull)
	}
}
