package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gwuah/steerd/steering"
	"github.com/gwuah/steerd/types"
	"golang.org/x/sync/errgroup"
)

// Pause between failed accepts so a broken listener doesn't spin.
const acceptBackoff = 10 * time.Millisecond

// Dispatcher hosts the steering engine in user space: it listens on every
// application port and takes the decision right after accept(), before the
// connection reaches anyone else.
type Dispatcher struct {
	Config

	// Fallback receives connections that were passed but not steered,
	// which is what normal listener resolution would have done with
	// them. It's called from the accept loop and must not block. The
	// default closes the connection.
	Fallback func(net.Conn)

	engine *steering.Engine

	mu        sync.Mutex
	listeners map[uint16]net.Listener
	closed    bool

	group errgroup.Group
}

func NewDispatcher(c *Config, engine *steering.Engine) (*Dispatcher, error) {
	if engine == nil {
		return nil, fmt.Errorf("the dispatcher needs a steering engine")
	}
	if c == nil {
		c = &DefaultConfig
	}

	return &Dispatcher{
		Config:    *c,
		Fallback:  closeConn,
		engine:    engine,
		listeners: map[uint16]net.Listener{},
	}, nil
}

func (d *Dispatcher) String() string {
	return "dispatcher"
}

func (d *Dispatcher) Init() error {
	slog.Debug("initialising the dispatcher", "bindAddress", d.BindAddress)
	if d.Fallback == nil {
		d.Fallback = closeConn
	}
	return nil
}

// Sync makes the dispatcher listen on exactly ports. Listeners for ports no
// longer present are closed; connections already accepted on them aren't
// affected.
func (d *Dispatcher) Sync(ports []uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return net.ErrClosed
	}

	var errs error
	for port, ln := range d.listeners {
		if slices.Contains(ports, port) {
			continue
		}
		slog.Debug("closing listener", "port", port)
		if err := ln.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("error closing the listener on port %d: %w", port, err))
		}
		delete(d.listeners, port)
	}

	for _, port := range ports {
		if _, ok := d.listeners[port]; ok {
			continue
		}

		ln, err := net.Listen("tcp", net.JoinHostPort(d.BindAddress, strconv.Itoa(int(port))))
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("error listening on port %d: %w", port, err))
			continue
		}
		slog.Debug("listening", "port", port, "addr", ln.Addr())

		d.listeners[port] = ln
		d.group.Go(func() error {
			d.acceptLoop(ln)
			return nil
		})
	}

	return errs
}

// Ports returns the ports the dispatcher is currently listening on.
func (d *Dispatcher) Ports() []uint16 {
	d.mu.Lock()
	ports := make([]uint16, 0, len(d.listeners))
	for port := range d.listeners {
		ports = append(ports, port)
	}
	d.mu.Unlock()

	slices.Sort(ports)
	return ports
}

func (d *Dispatcher) Run(done <-chan struct{}) {
	slog.Debug("running the dispatcher")
	<-done
	slog.Debug("cleanly exiting the dispatcher")
	d.shutdown()
}

func (d *Dispatcher) Cleanup() error {
	slog.Debug("cleaning up the dispatcher")
	errs := d.shutdown()
	return errors.Join(errs, d.group.Wait())
}

func (d *Dispatcher) shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true

	var errs error
	for port, ln := range d.listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = errors.Join(errs, fmt.Errorf("error closing the listener on port %d: %w", port, err))
		}
		delete(d.listeners, port)
	}
	return errs
}

func (d *Dispatcher) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("error accepting a connection", "addr", ln.Addr(), "err", err)
			time.Sleep(acceptBackoff)
			continue
		}
		d.handle(conn)
	}
}

func (d *Dispatcher) handle(conn net.Conn) {
	lookup, err := newLookup(conn)
	if err != nil {
		slog.Warn("dropping connection", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		return
	}

	decision := d.engine.Steer(lookup)
	switch {
	case decision == types.DROP:
		slog.Debug("dropping connection", "port", lookup.LocalPort(), "remote", conn.RemoteAddr(), "decision", decision)
		conn.Close()
	case !lookup.Assigned():
		d.Fallback(conn)
	}
}

func closeConn(conn net.Conn) {
	slog.Debug("no listener for unsteered connection", "local", conn.LocalAddr(), "remote", conn.RemoteAddr())
	conn.Close()
}
