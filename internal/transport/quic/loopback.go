package quic

import (
	"context"
	"net"
	"sync"

	"github.com/cysec-io/cysec/internal/errors"
)

// Loopback is an in-process Transport: Dial only ever reaches a Listener
// registered on the same Loopback instance. Useful for exercising
// protocol code built on Transport without a real network.
type Loopback struct {
	mu        sync.Mutex
	listeners map[string]*loopbackListener
}

// NewLoopback returns an empty Loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{listeners: make(map[string]*loopbackListener)}
}

func (l *Loopback) Listen(_ context.Context, addr string) (Listener, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.listeners[addr]; exists {
		return nil, errors.Wrap(errors.ErrAlreadyExists, "address already has a listener")
	}
	ln := &loopbackListener{
		addr:      addr,
		transport: l,
		conns:     make(chan Conn),
		closed:    make(chan struct{}),
	}
	l.listeners[addr] = ln
	return ln, nil
}

func (l *Loopback) Dial(ctx context.Context, addr string) (Conn, error) {
	l.mu.Lock()
	ln, ok := l.listeners[addr]
	l.mu.Unlock()
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "no listener at address")
	}

	client, server := newLoopbackConnPair()
	select {
	case ln.conns <- server:
		return client, nil
	case <-ln.closed:
		return nil, errors.Wrap(errors.ErrConflict, "listener closed during dial")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loopback) remove(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.listeners, addr)
}

type loopbackListener struct {
	addr      string
	transport *Loopback
	conns     chan Conn
	closeOnce sync.Once
	closed    chan struct{}
}

func (ln *loopbackListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-ln.conns:
		return c, nil
	case <-ln.closed:
		return nil, errors.Wrap(errors.ErrConflict, "listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (ln *loopbackListener) Addr() string { return ln.addr }

func (ln *loopbackListener) Close() error {
	ln.closeOnce.Do(func() {
		close(ln.closed)
		ln.transport.remove(ln.addr)
	})
	return nil
}

// loopbackConn pairs two endpoints of one logical connection. Opening a
// stream on one side delivers its peer half to the other side's
// AcceptStream.
type loopbackConn struct {
	peer *loopbackConn

	mu        sync.Mutex
	incoming  chan Stream
	closeOnce sync.Once
	closed    chan struct{}
}

func newLoopbackConnPair() (client, server *loopbackConn) {
	a := &loopbackConn{incoming: make(chan Stream), closed: make(chan struct{})}
	b := &loopbackConn{incoming: make(chan Stream), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (c *loopbackConn) OpenStream(ctx context.Context) (Stream, error) {
	local, remote := net.Pipe()
	select {
	case c.peer.incoming <- remote:
		return local, nil
	case <-c.peer.closed:
		local.Close()
		return nil, errors.Wrap(errors.ErrConflict, "peer connection closed")
	case <-c.closed:
		local.Close()
		return nil, errors.Wrap(errors.ErrConflict, "connection closed")
	case <-ctx.Done():
		local.Close()
		return nil, ctx.Err()
	}
}

func (c *loopbackConn) AcceptStream(ctx context.Context) (Stream, error) {
	select {
	case s := <-c.incoming:
		return s, nil
	case <-c.closed:
		return nil, errors.Wrap(errors.ErrConflict, "connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *loopbackConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
