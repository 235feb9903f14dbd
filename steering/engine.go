package steering

import (
	"context"
	"log/slog"

	"github.com/gwuah/steerd/types"
)

// LookupContext describes a single connection lookup.
type LookupContext interface {
	LocalPort() uint16
}

// Socket is a borrowed reference to the dedicated socket. Release must be
// called exactly once, whatever Assign returned.
type Socket interface {
	Assign(LookupContext) error
	Release()
}

// PortAllowlist answers whether connections to a port must be steered.
type PortAllowlist interface {
	Contains(port uint16) bool
}

// SocketRegistry hands out references to the dedicated socket, if any.
type SocketRegistry interface {
	Get() (Socket, bool)
}

type Engine struct {
	ports   PortAllowlist
	sockets SocketRegistry

	logger *slog.Logger
}

type Option func(*Engine)

// WithLogger makes the engine trace its decisions through l.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(ports PortAllowlist, sockets SocketRegistry, opts ...Option) *Engine {
	e := &Engine{
		ports:   ports,
		sockets: sockets,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Steer takes the decision for a single lookup. It never blocks and it's
// safe to call concurrently.
func (e *Engine) Steer(lookup LookupContext) types.Decision {
	port := lookup.LocalPort()

	if !e.ports.Contains(port) {
		e.logger.Log(context.Background(), types.LevelTrace, "port not steered", "port", port, "decision", types.PASS)
		return types.PASS
	}

	sk, ok := e.sockets.Get()
	if !ok {
		e.logger.Debug("no dedicated socket registered", "port", port, "decision", types.DROP)
		return types.DROP
	}

	return e.assign(lookup, port, sk)
}

func (e *Engine) assign(lookup LookupContext, port uint16, sk Socket) (decision types.Decision) {
	defer sk.Release()

	// A misbehaving socket must not take the caller down with it.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while assigning the connection", "port", port, "panic", r)
			decision = types.DROP
		}
	}()

	if err := sk.Assign(lookup); err != nil {
		e.logger.Debug("error assigning the connection", "port", port, "err", err, "decision", types.DROP)
		return types.DROP
	}

	e.logger.Log(context.Background(), types.LevelTrace, "connection steered", "port", port, "decision", types.PASS)
	return types.PASS
}
