package control

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/gwuah/steerd/proxy"
)

// LoadFunc reads and validates the apps defined in the configuration file.
type LoadFunc func(path string) ([]proxy.App, error)

// Watcher keeps a PortStore in line with the apps in a configuration file.
type Watcher struct {
	Config

	// Hooks run after every reconcile, in order.
	OnReload []func(apps []proxy.App, diff Diff)

	path  string
	load  LoadFunc
	store PortStore

	// Serialises reloads triggered by file events and by Reload.
	mu sync.Mutex

	events chan notify.EventInfo
}

func NewWatcher(c *Config, path string, store PortStore, load LoadFunc) (*Watcher, error) {
	if c == nil {
		c = &DefaultConfig
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("error resolving %q: %w", path, err)
	}

	return &Watcher{Config: *c, path: abs, load: load, store: store}, nil
}

func (w *Watcher) String() string {
	return "config watcher"
}

func (w *Watcher) Init() error {
	slog.Debug("initialising the config watcher", "path", w.path, "watch", w.Watch)

	if !w.Watch {
		return nil
	}

	// A buffered channel guarantees that we don't loose events even
	// if writes take place at the exact same time
	w.events = make(chan notify.EventInfo, 16)

	// Watch the directory: editors and config management tools often
	// replace the file instead of writing to it.
	if err := notify.Watch(filepath.Dir(w.path), w.events, notify.Write|notify.Create|notify.Rename); err != nil {
		return fmt.Errorf("error watching %q: %w", filepath.Dir(w.path), err)
	}

	return nil
}

func (w *Watcher) Run(done <-chan struct{}) {
	if !w.Watch {
		<-done
		return
	}

	slog.Debug("watching the configuration", "path", w.path)

	timer := time.NewTimer(w.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case e := <-w.events:
			if filepath.Base(e.Path()) != filepath.Base(w.path) {
				continue
			}
			slog.Debug("configuration changed", "event", e.Event())
			timer.Reset(w.Debounce)
		case <-timer.C:
			if _, err := w.Reload(); err != nil {
				slog.Error("error reloading the configuration, keeping the current ports", "err", err)
			}
		case <-done:
			slog.Debug("cleanly exiting the config watcher")
			return
		}
	}
}

// Reload re-reads the configuration and reconciles the store against it.
// Invalid configurations leave the store untouched.
func (w *Watcher) Reload() (Diff, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	apps, err := w.load(w.path)
	if err != nil {
		return Diff{}, fmt.Errorf("error loading %q: %w", w.path, err)
	}

	// Hooks run even if some ports failed so that consumers see what the
	// store actually holds.
	diff, err := Reconcile(w.store, DesiredPorts(apps))
	for _, hook := range w.OnReload {
		hook(apps, diff)
	}

	return diff, err
}

func (w *Watcher) Cleanup() error {
	slog.Debug("cleaning up the config watcher")
	if w.events != nil {
		notify.Stop(w.events)
	}
	return nil
}
