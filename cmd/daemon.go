package main

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"syscall"

	"github.com/gwuah/steerd/api"
	"github.com/gwuah/steerd/control"
	"github.com/gwuah/steerd/dispatch"
	"github.com/gwuah/steerd/proxy"
	"github.com/gwuah/steerd/sklookup"
	"github.com/gwuah/steerd/sockdiag"
	"github.com/gwuah/steerd/steering"
	"github.com/gwuah/steerd/types"
)

// daemon wires the components of either mode together.
type daemon struct {
	components

	conf     *Config
	confPath string

	// Whatever the mode, the allow-list is managed through store and the
	// proxy routes connections.
	store  control.PortStore
	status api.StatusFunc
	proxy  *proxy.Proxy

	// Only set in userspace mode.
	dispatcher *dispatch.Dispatcher

	watcher *control.Watcher

	mu   sync.Mutex
	apps []proxy.App
}

func newDaemon(conf *Config, confPath string) *daemon {
	return &daemon{conf: conf, confPath: confPath, apps: conf.Apps}
}

// setup initialises every component. On failure whatever was initialised
// is cleaned up.
func (d *daemon) setup() error {
	var err error
	switch d.conf.Mode {
	case types.SkLookup:
		err = d.setupSkLookup()
	case types.Userspace:
		err = d.setupUserspace()
	default:
		err = fmt.Errorf("unknown mode %s", d.conf.Mode)
	}
	if err == nil {
		err = d.setupControl()
	}

	if err != nil {
		d.cleanup()
		return err
	}

	return nil
}

func (d *daemon) setupSkLookup() error {
	steerer, err := sklookup.NewSteerer(d.conf.SkLookup)
	if err != nil {
		return fmt.Errorf("error creating the sk_lookup steerer: %w", err)
	}
	if err := d.init(steerer); err != nil {
		return err
	}

	p, err := proxy.New(d.conf.Proxy, d.conf.Apps)
	if err != nil {
		return fmt.Errorf("error creating the proxy: %w", err)
	}
	if err := d.init(p); err != nil {
		return err
	}
	d.proxy = p

	sc, ok := p.Listener().(syscall.Conn)
	if !ok {
		return fmt.Errorf("the proxy's listener %T has no file descriptor", p.Listener())
	}
	if err := steerer.Socket().Set(sc); err != nil {
		return err
	}

	cookie, err := sockdiag.Cookie(sc)
	if err != nil {
		slog.Warn("couldn't get the dedicated socket's cookie", "err", err)
	}
	inode, err := sockdiag.Inode(sc)
	if err != nil {
		slog.Warn("couldn't get the dedicated socket's inode", "err", err)
	}
	slog.Info("dedicated socket ready", "addr", p.Listener().Addr(), CookieKey, cookie, "inode", inode)

	if err := steerer.Ports().Seed(control.DesiredPorts(d.conf.Apps)); err != nil {
		return fmt.Errorf("error seeding the steered ports: %w", err)
	}

	d.store = steerer.Ports()
	d.status = func() (api.SocketStatus, error) {
		cookie, present, err := steerer.Socket().Cookie()
		status := api.SocketStatus{Mode: types.SkLookup.String(), Present: present, Cookie: cookie}
		if present {
			status.Inode = inode
		}
		return status, err
	}

	return nil
}

func (d *daemon) setupUserspace() error {
	allowlist, err := steering.NewAllowlist(control.DesiredPorts(d.conf.Apps)...)
	if err != nil {
		return fmt.Errorf("error creating the allow-list: %w", err)
	}

	sock := dispatch.NewDedicatedSocket(d.conf.Dispatch.QueueSize, "steerd")
	slot := steering.NewSlot()
	slot.Set(sock)

	engine := steering.NewEngine(allowlist, slot, steering.WithLogger(slog.Default().With("component", "engine")))

	p, err := proxy.New(d.conf.Proxy, d.conf.Apps)
	if err != nil {
		return fmt.Errorf("error creating the proxy: %w", err)
	}
	p.Attach(sock)
	if err := d.init(p); err != nil {
		return err
	}
	d.proxy = p

	dispatcher, err := dispatch.NewDispatcher(d.conf.Dispatch, engine)
	if err != nil {
		return fmt.Errorf("error creating the dispatcher: %w", err)
	}
	if err := d.init(dispatcher); err != nil {
		return err
	}
	d.dispatcher = dispatcher
	d.store = allowlist

	if err := d.syncListeners(); err != nil {
		return err
	}

	d.status = func() (api.SocketStatus, error) {
		return api.SocketStatus{
			Mode:        types.Userspace.String(),
			Present:     slot.Present(),
			Outstanding: slot.Outstanding(),
			Pending:     sock.Pending(),
		}, nil
	}

	return nil
}

func (d *daemon) setupControl() error {
	w, err := control.NewWatcher(d.conf.Control, d.confPath, d.store, loadApps)
	if err != nil {
		return fmt.Errorf("error creating the config watcher: %w", err)
	}
	w.OnReload = append(w.OnReload, d.reloaded)
	if err := d.init(w); err != nil {
		return err
	}
	d.watcher = w

	if !d.conf.Api.Enabled {
		return nil
	}

	srv := api.New(d.conf.Api, d.store, d.status)
	srv.OnChange = func([]uint16) {
		if err := d.syncListeners(); err != nil {
			slog.Error("error updating the listeners", "err", err)
		}
	}

	return d.init(srv)
}

// reloaded propagates a new set of apps once the allow-list caught up.
func (d *daemon) reloaded(apps []proxy.App, diff control.Diff) {
	d.mu.Lock()
	d.apps = apps
	d.mu.Unlock()

	if err := d.proxy.SetApps(apps); err != nil {
		slog.Error("error updating the proxy's apps", "err", err)
	}

	if err := d.syncListeners(); err != nil {
		slog.Error("error updating the listeners", "err", err)
	}
}

// syncListeners makes the dispatcher listen on every application port and
// every steered port. Ports that aren't steered get their connections
// passed on to the fallback. It's a no-op in sklookup mode.
func (d *daemon) syncListeners() error {
	if d.dispatcher == nil {
		return nil
	}

	steered, err := d.store.Ports()
	if err != nil {
		return fmt.Errorf("error listing the steered ports: %w", err)
	}

	d.mu.Lock()
	ports := append(control.DesiredPorts(d.apps), steered...)
	d.mu.Unlock()

	slices.Sort(ports)

	return d.dispatcher.Sync(slices.Compact(ports))
}

func loadApps(path string) ([]proxy.App, error) {
	conf, err := ReadConf(path)
	if err != nil {
		return nil, err
	}
	return conf.Apps, nil
}
