package dispatch

import (
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"
)

// Lookup is the steering.LookupContext of a connection accepted by the
// Dispatcher.
type Lookup struct {
	conn net.Conn
	port uint16

	assigned atomic.Bool
}

func newLookup(conn net.Conn) (*Lookup, error) {
	port, err := localPort(conn)
	if err != nil {
		return nil, err
	}
	return &Lookup{conn: conn, port: port}, nil
}

func (l *Lookup) LocalPort() uint16 {
	return l.port
}

func (l *Lookup) Conn() net.Conn {
	return l.conn
}

// Assigned reports whether the connection was handed to a dedicated socket.
// Once it has been, the connection is no longer ours to touch.
func (l *Lookup) Assigned() bool {
	return l.assigned.Load()
}

func localPort(conn net.Conn) (uint16, error) {
	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		return uint16(addr.Port), nil
	}

	addrPort, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return 0, fmt.Errorf("error extracting the local port: %w", err)
	}
	return addrPort.Port(), nil
}
