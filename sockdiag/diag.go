//go:build linux

package sockdiag

import (
	"fmt"
	"log/slog"
	"slices"
	"syscall"

	"github.com/florianl/go-diag"
	"golang.org/x/sys/unix"
)

const TCP_LISTEN uint8 = 10

// Listeners returns the TCP listeners bound to any of ports. A nil ports
// returns every listener.
func Listeners(ports []uint16) ([]Listener, error) {
	// open a netlink socket in our namespace
	nl, err := diag.Open(&diag.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not open netlink socket: %w", err)
	}
	defer nl.Close()

	var listeners []Listener
	for _, family := range []uint8{unix.AF_INET, unix.AF_INET6} {
		res, err := nl.NetDump(&diag.NetOption{
			Family:   family,
			Protocol: unix.IPPROTO_TCP,
			State:    1 << uint(TCP_LISTEN),
		})
		if err != nil {
			return nil, fmt.Errorf("error dumping listeners for family %d: %w", family, err)
		}
		slog.Debug("dumped listeners", "family", family, "n", len(res))

		for _, r := range res {
			port := Ntohs(uint16(r.ID.SPort))
			if ports != nil && !slices.Contains(ports, port) {
				continue
			}
			listeners = append(listeners, Listener{
				Family: uint8(r.Family),
				Port:   port,
				Cookie: joinCookie([2]uint32{uint32(r.ID.Cookie[0]), uint32(r.ID.Cookie[1])}),
				Inode:  uint32(r.INode),
				UID:    uint32(r.UID),
			})
		}
	}

	slices.SortFunc(listeners, func(a, b Listener) int {
		if a.Port != b.Port {
			return int(a.Port) - int(b.Port)
		}
		return int(a.Family) - int(b.Family)
	})

	return listeners, nil
}

// Cookie returns the socket cookie of conn as reported by SO_COOKIE and the
// kernel socket map. sock_diag dumps don't always agree on it, so use Inode
// to match a socket against Listeners.
func Cookie(conn syscall.Conn) (uint64, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("error getting the raw socket: %w", err)
	}

	var (
		cookie uint64
		sErr   error
	)
	if err := raw.Control(func(fd uintptr) {
		cookie, sErr = unix.GetsockoptUint64(int(fd), unix.SOL_SOCKET, unix.SO_COOKIE)
	}); err != nil {
		return 0, fmt.Errorf("error accessing the socket's descriptor: %w", err)
	}
	if sErr != nil {
		return 0, fmt.Errorf("error reading SO_COOKIE: %w", sErr)
	}

	return cookie, nil
}

// Inode returns the inode backing conn's descriptor. It's the same number
// sock_diag reports for the socket.
func Inode(conn syscall.Conn) (uint32, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("error getting the raw socket: %w", err)
	}

	var (
		st   unix.Stat_t
		sErr error
	)
	if err := raw.Control(func(fd uintptr) {
		sErr = unix.Fstat(int(fd), &st)
	}); err != nil {
		return 0, fmt.Errorf("error accessing the socket's descriptor: %w", err)
	}
	if sErr != nil {
		return 0, fmt.Errorf("error stating the socket: %w", sErr)
	}

	return uint32(st.Ino), nil
}
