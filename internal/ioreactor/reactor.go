// Package ioreactor implements the server's readiness-based I/O
// demultiplexer: it owns the listening socket, waits for read/accept
// readiness, and hands freshly-read bytes to a Handler. On Linux it is an
// epoll reactor over raw non-blocking sockets via golang.org/x/sys/unix;
// on other platforms it falls back to net.Listener plus
// goroutine-per-connection, which the runtime's netpoller multiplexes the
// same way epoll would.
package ioreactor

import "context"

// Conn is one accepted peer connection as seen by the reactor.
type Conn interface {
	// ID is the reactor-assigned identifier for this connection, stable for
	// its lifetime and never reused while the reactor is running.
	ID() uint64
	// Write sends b, returning the number of bytes written.
	Write(b []byte) (int, error)
	// Close closes the underlying socket. Idempotent.
	Close() error
	// RemoteAddr returns the peer's address in string form.
	RemoteAddr() string
}

// Handler receives reactor lifecycle callbacks. All methods are invoked from
// the reactor's own goroutine(s); implementations must not block.
type Handler interface {
	// OnAccept runs synchronously right after accept, before the
	// connection is registered for read readiness. Returning a non-nil
	// error aborts the connection (it is closed and never registered).
	// This is the hook the server uses to write the handshake frame.
	OnAccept(c Conn) error
	// OnReadable is called with a freshly read, exclusively-owned chunk of
	// bytes. The reactor will not reuse or mutate data after this call
	// returns; ownership transfers to the handler.
	OnReadable(c Conn, data []byte)
	// OnClosed runs once a connection is torn down, whatever the cause.
	OnClosed(c Conn, err error)
}

// Reactor is the server's accept+read demultiplexer.
type Reactor interface {
	// Serve blocks, demultiplexing events to h until ctx is cancelled or a
	// fatal listener error occurs.
	Serve(ctx context.Context, h Handler) error
	// Addr returns the bound listen address (resolved, e.g. after ":0").
	Addr() string
	// Close closes the listening socket and every connection the reactor
	// currently owns.
	Close() error
}

// waitTimeoutMillis bounds each readiness-wait tick so Serve observes
// context cancellation promptly even when no socket activity arrives.
const waitTimeoutMillis = 100
