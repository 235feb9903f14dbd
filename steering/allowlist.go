package steering

import (
	"errors"
	"slices"
	"sync"
)

// MaxPorts bounds the number of steered ports.
const MaxPorts int = 1024

var (
	ErrAllowlistFull = errors.New("the port allow-list is full")
	ErrPortNotFound  = errors.New("the port is not steered")
	ErrInvalidPort   = errors.New("port 0 can't be steered")
)

// Allowlist is an in-memory PortAllowlist. Reads never observe a partially
// applied write.
type Allowlist struct {
	mu    sync.RWMutex
	ports map[uint16]struct{}
}

// NewAllowlist returns an allow-list seeded with ports.
func NewAllowlist(ports ...uint16) (*Allowlist, error) {
	a := &Allowlist{ports: make(map[uint16]struct{}, len(ports))}
	for _, port := range ports {
		if err := a.Add(port); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Allowlist) Contains(port uint16) bool {
	a.mu.RLock()
	_, ok := a.ports[port]
	a.mu.RUnlock()
	return ok
}

// Add steers port. Adding a port that's already steered is a no-op, even
// when the allow-list is full.
func (a *Allowlist) Add(port uint16) error {
	if port == 0 {
		return ErrInvalidPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.ports[port]; ok {
		return nil
	}
	if len(a.ports) >= MaxPorts {
		return ErrAllowlistFull
	}
	a.ports[port] = struct{}{}

	return nil
}

func (a *Allowlist) Remove(port uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.ports[port]; !ok {
		return ErrPortNotFound
	}
	delete(a.ports, port)

	return nil
}

// Ports returns the steered ports in ascending order.
func (a *Allowlist) Ports() ([]uint16, error) {
	a.mu.RLock()
	ports := make([]uint16, 0, len(a.ports))
	for port := range a.ports {
		ports = append(ports, port)
	}
	a.mu.RUnlock()

	slices.Sort(ports)
	return ports, nil
}

func (a *Allowlist) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.ports)
}
