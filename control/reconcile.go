package control

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gwuah/steerd/proxy"
)

// PortStore is an allow-list that can be managed at runtime. Both the
// in-memory allow-list and the kernel port map implement it.
type PortStore interface {
	Contains(port uint16) bool
	Add(port uint16) error
	Remove(port uint16) error
	Ports() ([]uint16, error)
}

// Diff lists the ports a reconcile changed.
type Diff struct {
	Added   []uint16 `json:"added"`
	Removed []uint16 `json:"removed"`
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DesiredPorts returns the sorted set of ports the apps want steered.
func DesiredPorts(apps []proxy.App) []uint16 {
	var ports []uint16
	for _, app := range apps {
		ports = append(ports, app.Ports...)
	}
	slices.Sort(ports)
	return slices.Compact(ports)
}

// Reconcile brings store in line with desired. Stale ports are removed
// first so that a full store can still take the new ones. Failing ports are
// skipped and reported together once every other port has been handled.
func Reconcile(store PortStore, desired []uint16) (Diff, error) {
	current, err := store.Ports()
	if err != nil {
		return Diff{}, fmt.Errorf("error listing the current ports: %w", err)
	}

	var (
		diff Diff
		errs error
	)

	for _, port := range current {
		if slices.Contains(desired, port) {
			continue
		}
		if err := store.Remove(port); err != nil {
			errs = errors.Join(errs, fmt.Errorf("error removing port %d: %w", port, err))
			continue
		}
		diff.Removed = append(diff.Removed, port)
	}

	for _, port := range desired {
		if slices.Contains(current, port) {
			continue
		}
		if err := store.Add(port); err != nil {
			errs = errors.Join(errs, fmt.Errorf("error adding port %d: %w", port, err))
			continue
		}
		diff.Added = append(diff.Added, port)
	}

	if !diff.Empty() {
		slog.Info("reconciled the steered ports", "added", diff.Added, "removed", diff.Removed)
	}

	return diff, errs
}
