//go:build linux && ebpf

package sklookup

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gwuah/steerd/internal/progs"
	"github.com/gwuah/steerd/steering"
)

func needsRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("loading eBPF programs requires root")
	}
}

func newSteerer(t *testing.T) *Steerer {
	t.Helper()
	needsRoot(t)

	s, err := NewSteerer(nil)
	if err != nil {
		t.Fatalf("error creating the steerer: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("error initialising the steerer: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Cleanup(); err != nil {
			t.Errorf("error cleaning up: %v", err)
		}
	})

	return s
}

func TestLoadProg(t *testing.T) {
	needsRoot(t)

	for _, path := range []string{EMBEDDED_PROG, EMBEDDED_DBG} {
		rawProg, err := progs.GetSteerProgram(path)
		if err != nil {
			t.Fatalf("error reading the embedded program %s: %v", path, err)
		}

		coll, err := loadProg(rawProg)
		if err != nil {
			t.Fatalf("error loading %s into the kernel: %v", path, err)
		}
		coll.Close()
	}
}

func TestPortMap(t *testing.T) {
	pm := newSteerer(t).Ports()

	if err := pm.Seed([]uint16{443, 80}); err != nil {
		t.Fatalf("error seeding: %v", err)
	}
	if err := pm.Add(8080); err != nil {
		t.Fatalf("error adding: %v", err)
	}
	if !pm.Contains(8080) || pm.Contains(8081) {
		t.Errorf("unexpected membership")
	}

	if err := pm.Remove(8081); !errors.Is(err, steering.ErrPortNotFound) {
		t.Errorf("got %v, want %v", err, steering.ErrPortNotFound)
	}
	if err := pm.Remove(80); err != nil {
		t.Errorf("error removing: %v", err)
	}

	got, err := pm.Ports()
	if err != nil {
		t.Fatalf("error listing ports: %v", err)
	}
	if diff := cmp.Diff([]uint16{443, 8080}, got); diff != "" {
		t.Errorf("ports mismatch (-want +got):\n%s", diff)
	}
}

func TestPortMapCapacity(t *testing.T) {
	pm := newSteerer(t).Ports()

	for p := 1; p <= steering.MaxPorts; p++ {
		if err := pm.Add(uint16(p)); err != nil {
			t.Fatalf("error adding port %d: %v", p, err)
		}
	}

	if err := pm.Add(steering.MaxPorts + 1); !errors.Is(err, steering.ErrAllowlistFull) {
		t.Errorf("got %v, want %v", err, steering.ErrAllowlistFull)
	}
	if err := pm.Add(1); err != nil {
		t.Errorf("re-adding a present port failed: %v", err)
	}
}

// TestSteering checks connections to a steered port reach the dedicated
// socket even though nothing listens on that port.
func TestSteering(t *testing.T) {
	s := newSteerer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error listening: %v", err)
	}
	defer ln.Close()

	const port = 34567

	// Steered but without a dedicated socket: dropped.
	if err := s.Ports().Add(port); err != nil {
		t.Fatalf("error adding the port: %v", err)
	}
	if conn, err := net.DialTimeout("tcp", "127.0.0.1:34567", time.Second); err == nil {
		conn.Close()
		t.Fatalf("expected the connection to be dropped")
	}

	if err := s.Socket().Set(ln.(*net.TCPListener)); err != nil {
		t.Fatalf("error setting the dedicated socket: %v", err)
	}
	if _, ok, err := s.Socket().Cookie(); err != nil || !ok {
		t.Fatalf("expected a socket cookie, got ok=%v err=%v", ok, err)
	}

	conn, err := net.DialTimeout("tcp", "127.0.0.1:34567", time.Second)
	if err != nil {
		t.Fatalf("error dialing the steered port: %v", err)
	}
	defer conn.Close()

	ln.(*net.TCPListener).SetDeadline(time.Now().Add(2 * time.Second))
	sconn, err := ln.Accept()
	if err != nil {
		t.Fatalf("error accepting the steered connection: %v", err)
	}
	defer sconn.Close()

	if got := sconn.LocalAddr().(*net.TCPAddr).Port; got != port {
		t.Errorf("got local port %d, want %d", got, port)
	}

	if err := s.Socket().Clear(); err != nil {
		t.Fatalf("error clearing the dedicated socket: %v", err)
	}
	if _, ok, _ := s.Socket().Cookie(); ok {
		t.Errorf("expected an empty slot")
	}
}
