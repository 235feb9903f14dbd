//go:build linux && ebpf

package sklookup

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"syscall"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"

	"github.com/gwuah/steerd/steering"
)

// PortMap is the kernel side allow-list. It implements the same contract
// as steering.Allowlist so that both can be managed interchangeably.
type PortMap struct {
	m *ebpf.Map
}

func (p *PortMap) Contains(port uint16) bool {
	var v uint8
	return p.m.Lookup(port, &v) == nil
}

func (p *PortMap) Add(port uint16) error {
	if port == 0 {
		return steering.ErrInvalidPort
	}

	if err := p.m.Update(port, uint8(1), ebpf.UpdateAny); err != nil {
		// Hash maps refuse new keys once max_entries is reached.
		if errors.Is(err, unix.E2BIG) {
			return steering.ErrAllowlistFull
		}
		return fmt.Errorf("error adding port %d: %w", port, err)
	}

	return nil
}

func (p *PortMap) Remove(port uint16) error {
	if err := p.m.Delete(port); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return steering.ErrPortNotFound
		}
		return fmt.Errorf("error removing port %d: %w", port, err)
	}

	return nil
}

func (p *PortMap) Ports() ([]uint16, error) {
	var (
		port  uint16
		v     uint8
		ports []uint16
	)

	it := p.m.Iterate()
	for it.Next(&port, &v) {
		ports = append(ports, port)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over the ports: %w", err)
	}

	slices.Sort(ports)

	return ports, nil
}

// Seed inserts ports in a single batch, falling back to one update per port
// on kernels lacking batch operations.
func (p *PortMap) Seed(ports []uint16) error {
	if len(ports) == 0 {
		return nil
	}
	if len(ports) > steering.MaxPorts {
		return steering.ErrAllowlistFull
	}

	vals := make([]uint8, len(ports))
	for i := range vals {
		vals[i] = 1
	}

	n, err := p.m.BatchUpdate(ports, vals, &ebpf.BatchOptions{})
	if err == nil {
		slog.Debug("seeded the port map", "n", n)
		return nil
	}
	if !errors.Is(err, ebpf.ErrNotSupported) {
		if errors.Is(err, unix.E2BIG) {
			return steering.ErrAllowlistFull
		}
		return fmt.Errorf("error seeding the port map: %w", err)
	}

	slog.Debug("batch updates unsupported, inserting ports one by one")
	for _, port := range ports {
		if err := p.Add(port); err != nil {
			return err
		}
	}

	return nil
}

// SocketMap holds the dedicated socket in its only slot.
type SocketMap struct {
	m *ebpf.Map
}

// Set stores conn as the dedicated socket, replacing the previous one.
func (s *SocketMap) Set(conn syscall.Conn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("error getting the raw socket: %w", err)
	}

	var putErr error
	if err := raw.Control(func(fd uintptr) {
		putErr = s.m.Put(DEDICATED_SLOT, uint64(fd))
	}); err != nil {
		return fmt.Errorf("error accessing the socket's descriptor: %w", err)
	}
	if putErr != nil {
		return fmt.Errorf("error storing the dedicated socket: %w", putErr)
	}

	return nil
}

// Clear empties the slot. Steered connections get dropped until a new
// socket is set.
func (s *SocketMap) Clear() error {
	if err := s.m.Delete(DEDICATED_SLOT); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		return fmt.Errorf("error clearing the dedicated socket: %w", err)
	}
	return nil
}

// Cookie returns the socket cookie of the dedicated socket, if there's one.
func (s *SocketMap) Cookie() (uint64, bool, error) {
	var cookie uint64
	if err := s.m.Lookup(DEDICATED_SLOT, &cookie); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("error looking up the dedicated socket: %w", err)
	}
	return cookie, true, nil
}
