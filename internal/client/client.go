// Package client implements the message-bus client half: a single
// background Manager goroutine that connects, negotiates the cipher
// strategy, and blocks in receive, reconnecting on any fault.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-tcpbus/internal/logging"
	"github.com/kstaniek/go-tcpbus/internal/metrics"
	"github.com/kstaniek/go-tcpbus/internal/strategy"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// Handler is invoked for every successfully parsed frame received after
// the handshake. S is the caller's state, carried on the Manager.
type Handler[S any] func(mgr *Manager[S], target wire.Target, body []byte)

const (
	defaultReconnectDelay = time.Second
	defaultBufferSize     = wire.DefaultBufferSize
)

// Manager is the client's single background connection state machine:
// Disconnected -> Handshaking -> Connected, reset to Disconnected on any
// fault, looping until Close is called.
type Manager[S any] struct {
	State S

	addr           string
	handler        Handler[S]
	logger         *slog.Logger
	bufferSize     int
	reconnectDelay time.Duration

	strategies *strategy.Holder

	connMu sync.Mutex
	conn   net.Conn

	connected atomic.Bool
	running   atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Manager at construction time.
type Option[S any] func(*Manager[S])

// New constructs a Manager that will dial addr once Run is called.
func New[S any](addr string, handler Handler[S], initial S, opts ...Option[S]) *Manager[S] {
	m := &Manager[S]{
		State:          initial,
		addr:           addr,
		handler:        handler,
		logger:         logging.L(),
		bufferSize:     defaultBufferSize,
		reconnectDelay: defaultReconnectDelay,
		strategies:     strategy.NewHolder(strategy.Lookup(strategy.CodeNone)),
		stopCh:         make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func WithLogger[S any](l *slog.Logger) Option[S] {
	return func(m *Manager[S]) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithBufferSize[S any](n int) Option[S] {
	return func(m *Manager[S]) {
		if n > 0 {
			m.bufferSize = n
		}
	}
}

func WithReconnectDelay[S any](d time.Duration) Option[S] {
	return func(m *Manager[S]) {
		if d > 0 {
			m.reconnectDelay = d
		}
	}
}

// IsConnected reports whether the manager currently holds a connection
// that has completed its handshake.
func (m *Manager[S]) IsConnected() bool { return m.running.Load() && m.connected.Load() }

// Run starts the reconnect/handshake/receive loop and blocks until ctx is
// cancelled or Close is called. It is the Manager's single background
// thread; callers typically invoke it via `go mgr.Run(ctx)`.
func (m *Manager[S]) Run(ctx context.Context) error {
	m.running.Store(true)
	m.wg.Add(1)
	defer m.wg.Done()
	defer m.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stopCh:
			return nil
		default:
		}

		conn, err := net.Dial("tcp", m.addr)
		if err != nil {
			m.logger.Debug("dial_failed", "addr", m.addr, "error", err)
			if !m.sleepBackoff(ctx) {
				return nil
			}
			continue
		}

		if err := m.handshake(conn); err != nil {
			metrics.IncHandshakeFailure()
			m.logger.Warn("handshake_failed", "error", err)
			_ = conn.Close()
			if !m.sleepBackoff(ctx) {
				return nil
			}
			continue
		}

		m.setConn(conn)
		m.logger.Info("connected", "addr", m.addr)
		m.recvLoop(ctx, conn)
		m.resetConnection()
		metrics.IncClientReconnect()

		select {
		case <-ctx.Done():
			return nil
		case <-m.stopCh:
			return nil
		default:
		}
		if !m.sleepBackoff(ctx) {
			return nil
		}
	}
}

// Close terminates the manager: it unblocks a pending receive by closing
// the active connection and stops the reconnect loop, then waits for Run
// to return.
func (m *Manager[S]) Close() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	m.connMu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.connMu.Unlock()
	m.wg.Wait()
}

func (m *Manager[S]) sleepBackoff(ctx context.Context) bool {
	t := time.NewTimer(m.reconnectDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-m.stopCh:
		return false
	}
}

func (m *Manager[S]) setConn(conn net.Conn) {
	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()
	m.connected.Store(true)
}

// resetConnection closes the socket, clears it, and restores the default
// (plaintext) strategy so the next handshake can be parsed in the clear.
func (m *Manager[S]) resetConnection() {
	m.connMu.Lock()
	conn := m.conn
	m.conn = nil
	m.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	m.connected.Store(false)
	m.strategies.Set(strategy.Lookup(strategy.CodeNone))
}

// handshake reads the server's mandatory first frame with plaintext
// decrypt, validates its target, decodes the strategy code, and applies
// it. The handshake frame itself is never ciphered.
func (m *Manager[S]) handshake(conn net.Conn) error {
	frame, err := readFrame(conn, m.bufferSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	target, body, err := wire.Parse(frame, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	if !target.Equal(wire.SecArgTarget) {
		return fmt.Errorf("%w: target %q", ErrBadHandshake, target.String())
	}
	code, err := wire.DecodeStrategyBody(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	m.strategies.Set(strategy.Lookup(code))
	metrics.IncStrategySwap()
	m.logger.Info("strategy_applied", "code", code)
	return nil
}

// recvLoop reads and dispatches frames until a read or parse failure,
// then returns so Run can reset and reconnect.
func (m *Manager[S]) recvLoop(ctx context.Context, conn net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		default:
		}

		frame, err := readFrame(conn, m.bufferSize)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				m.logger.Debug("recv_failed", "error", err)
			}
			return
		}
		_, decrypt := m.strategies.Current()
		target, body, err := wire.Parse(frame, decrypt)
		if err != nil {
			metrics.IncParseError("client_recv")
			m.logger.Debug("parse_failed", "error", err)
			return
		}
		metrics.IncFramesReceived()
		if m.handler != nil {
			m.handler(m, target, body)
		}
	}
}

// Send serialises body under target using the current encrypt strategy
// and writes a single frame. It snapshots the connection under the
// connection mutex and then writes unguarded. Returns ErrDisconnected if
// there is currently no live connection.
func (m *Manager[S]) Send(target wire.Target, body []byte) (int, error) {
	m.connMu.Lock()
	conn := m.conn
	m.connMu.Unlock()
	if conn == nil {
		return -1, ErrDisconnected
	}

	buf := make([]byte, wire.HeaderSize+len(body)+wire.ChecksumSize)
	encrypt, _ := m.strategies.Current()
	n, err := wire.Serialize(buf, target, body, encrypt)
	if err != nil {
		return -1, err
	}
	written, err := conn.Write(buf[:n])
	if err != nil {
		return written, err
	}
	metrics.IncFramesSent()
	return written, nil
}

// SetStrategy swaps the active cipher strategy. Mid-session swaps are
// advisory: the peer must perform the corresponding swap at the same
// logical moment, and the cipher must be self-inverse.
func (m *Manager[S]) SetStrategy(code uint32) {
	m.strategies.Set(strategy.Lookup(code))
	metrics.IncStrategySwap()
}
