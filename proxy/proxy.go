package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Pause after a failed accept so running out of descriptors doesn't turn
// into a busy loop.
const acceptBackoff = 10 * time.Millisecond

// Proxy serves connections landing on the dedicated socket. The local port
// of each connection selects the app whose targets we forward it to.
type Proxy struct {
	Config

	routes atomic.Pointer[routes]

	ln       net.Listener
	ownsLn   bool
	sessions sync.WaitGroup
}

func New(c *Config, apps []App) (*Proxy, error) {
	if c == nil {
		c = &DefaultConfig
	}

	p := Proxy{Config: *c}
	if err := p.SetApps(apps); err != nil {
		return nil, err
	}

	return &p, nil
}

// routes maps ports onto the balancer of the app owning them.
type routes struct {
	balancers map[string]*balancer
	portToApp map[uint16]string
}

// SetApps swaps the apps connections are routed to. Sessions already
// running are unaffected.
func (p *Proxy) SetApps(apps []App) error {
	if err := ValidateApps(apps); err != nil {
		return fmt.Errorf("invalid apps: %w", err)
	}

	r := routes{
		balancers: map[string]*balancer{},
		portToApp: map[uint16]string{},
	}
	for _, app := range apps {
		r.balancers[app.Name] = newBalancer(app.Targets)
		for _, port := range app.Ports {
			r.portToApp[port] = app.Name
		}
	}
	p.routes.Store(&r)

	slog.Debug("updated the proxy's routes", "apps", len(apps), "ports", len(r.portToApp))

	return nil
}

func (p *Proxy) String() string {
	return "proxy"
}

// Attach makes the proxy serve ln instead of opening its own listener. It
// must be called before Init.
func (p *Proxy) Attach(ln net.Listener) {
	p.ln = ln
}

// Listener returns the listener being served. It's only valid after Init.
func (p *Proxy) Listener() net.Listener {
	return p.ln
}

func (p *Proxy) Init() error {
	slog.Debug("initialising the proxy")

	if p.ln != nil {
		return nil
	}

	addr := net.JoinHostPort(p.BindAddress, strconv.Itoa(int(p.Port)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", addr, err)
	}
	p.ln = ln
	p.ownsLn = true

	return nil
}

func (p *Proxy) Run(done <-chan struct{}) {
	slog.Info("proxy running", "addr", p.ln.Addr())

	go func() {
		<-done
		slog.Debug("cleanly exiting the proxy")
		p.ln.Close()
	}()

	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("error accepting a connection", "err", err)
			time.Sleep(acceptBackoff)
			continue
		}

		p.sessions.Add(1)
		go func() {
			defer p.sessions.Done()
			p.proxy(conn)
		}()
	}
}

// Cleanup closes the listener and waits for running sessions, which end at
// the latest when their deadline expires.
func (p *Proxy) Cleanup() error {
	slog.Debug("cleaning up the proxy")

	var err error
	if p.ln != nil {
		if cErr := p.ln.Close(); cErr != nil && !errors.Is(cErr, net.ErrClosed) {
			err = fmt.Errorf("error closing the listener: %w", cErr)
		}
	}
	p.sessions.Wait()

	return err
}

func (p *Proxy) proxy(origin net.Conn) {
	defer origin.Close()
	origin.SetDeadline(time.Now().Add(p.Timeout))

	port, err := localPort(origin)
	if err != nil {
		slog.Warn("failed to extract the target port", "err", err)
		return
	}

	r := p.routes.Load()
	app, ok := r.portToApp[port]
	if !ok {
		slog.Warn("no app for port", "port", port)
		return
	}

	dst, target, err := r.dial(app, p.MaxReplayCount, p.Timeout)
	if err != nil {
		slog.Error("giving up on connection", "app", app, "port", port, "err", err)
		return
	}
	defer dst.Close()
	dst.SetDeadline(time.Now().Add(p.Timeout))

	slog.Debug("forwarding connection", "app", app, "remote", origin.RemoteAddr(), "port", port, "target", target)

	var wg sync.WaitGroup
	wg.Add(2)
	go p.forward(&wg, dst, origin, "origin->destination")
	go p.forward(&wg, origin, dst, "destination->origin")
	wg.Wait()
}

// dial tries the app's targets in turn, moving on to the next one in line
// after every failure.
func (r *routes) dial(app string, replays int, timeout time.Duration) (net.Conn, string, error) {
	attempts := max(replays, 1)

	var errs error
	for i := 0; i < attempts; i++ {
		target := r.balancers[app].nextTarget()
		conn, err := net.DialTimeout("tcp", target, timeout)
		if err == nil {
			return conn, target, nil
		}
		slog.Debug("error dialing target", "app", app, "target", target, "attempt", i+1, "err", err)
		errs = errors.Join(errs, err)
	}

	return nil, "", fmt.Errorf("couldn't reach any target after %d attempts: %w", attempts, errs)
}

func (p *Proxy) forward(wg *sync.WaitGroup, dst, src net.Conn, direction string) {
	defer wg.Done()

	n, err := io.Copy(dst, src)
	if err != nil && !isTimeoutError(err) {
		slog.Warn("failed to forward data", "direction", direction, "err", err)
	}

	// Let the other end know we're done writing.
	if tcp, ok := dst.(interface{ CloseWrite() error }); ok {
		tcp.CloseWrite()
	}

	slog.Debug("done forwarding", "bytes", n, "direction", direction)
}

func isTimeoutError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func localPort(conn net.Conn) (uint16, error) {
	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		return uint16(addr.Port), nil
	}

	addrPort, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return 0, fmt.Errorf("error parsing local address %q: %w", conn.LocalAddr(), err)
	}
	return addrPort.Port(), nil
}
