// Package quic defines the transport boundary for the toolkit's
// file-transfer/messaging protocols. Real QUIC wire framing is explicitly
// out of scope; this package exposes the interface a real implementation
// would satisfy plus an in-process reference one good enough to exercise
// higher-level protocol code in tests.
package quic

import (
	"context"
	"io"
)

// Stream is one bidirectional byte stream multiplexed over a Conn.
type Stream interface {
	io.ReadWriteCloser
}

// Conn is an established transport session between two endpoints,
// capable of opening or accepting multiple independent Streams.
type Conn interface {
	OpenStream(ctx context.Context) (Stream, error)
	AcceptStream(ctx context.Context) (Stream, error)
	Close() error
}

// Listener accepts inbound Conns on an address.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

// Transport dials or listens for Conns on a named address. A real
// implementation resolves addr to a UDP endpoint and negotiates QUIC; the
// loopback implementation in this package resolves addr against an
// in-process registry instead.
type Transport interface {
	Listen(ctx context.Context, addr string) (Listener, error)
	Dial(ctx context.Context, addr string) (Conn, error)
}
