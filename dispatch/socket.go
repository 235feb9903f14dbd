package dispatch

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/gwuah/steerd/steering"
)

var ErrQueueFull = errors.New("the dedicated socket's queue is full")

// DedicatedSocket is the user-space counterpart of the socket steered
// connections are assigned to. Assign never blocks: connections are queued
// and handed out by Accept, so anything serving a net.Listener can sit
// behind it.
type DedicatedSocket struct {
	conns chan net.Conn
	done  chan struct{}
	addr  net.Addr

	mu     sync.RWMutex
	closed bool
}

func NewDedicatedSocket(queueSize int, name string) *DedicatedSocket {
	if queueSize <= 0 {
		queueSize = DefaultConfig.QueueSize
	}
	return &DedicatedSocket{
		conns: make(chan net.Conn, queueSize),
		done:  make(chan struct{}),
		addr:  socketAddr(name),
	}
}

func (s *DedicatedSocket) Assign(lookup steering.LookupContext) error {
	l, ok := lookup.(*Lookup)
	if !ok {
		return fmt.Errorf("can't assign a lookup of type %T", lookup)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return net.ErrClosed
	}

	select {
	case s.conns <- l.conn:
		l.assigned.Store(true)
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *DedicatedSocket) Accept() (net.Conn, error) {
	select {
	case conn := <-s.conns:
		return conn, nil
	case <-s.done:
		return nil, net.ErrClosed
	}
}

// Close stops accepting assignments and closes every connection still
// waiting in the queue.
func (s *DedicatedSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	for {
		select {
		case conn := <-s.conns:
			conn.Close()
		default:
			return nil
		}
	}
}

func (s *DedicatedSocket) Addr() net.Addr {
	return s.addr
}

// Pending is the number of queued connections nobody accepted yet.
func (s *DedicatedSocket) Pending() int {
	return len(s.conns)
}

type socketAddr string

func (a socketAddr) Network() string { return "steer" }
func (a socketAddr) String() string  { return string(a) }
