// Package server implements the message-bus server half: a readiness-based
// reactor feeds a bounded inbound queue, a single worker parses and
// dispatches to user code, and a single sender serialises and writes
// unicast or broadcast replies.
package server

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-tcpbus/internal/ioreactor"
	"github.com/kstaniek/go-tcpbus/internal/logging"
	"github.com/kstaniek/go-tcpbus/internal/metrics"
	"github.com/kstaniek/go-tcpbus/internal/queue"
	"github.com/kstaniek/go-tcpbus/internal/roster"
	"github.com/kstaniek/go-tcpbus/internal/strategy"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// Handler is invoked by the worker for every successfully parsed frame.
// It receives the owning Server so it can call Send/Broadcast, the
// originating peer's ID, and a target/body pair that is only valid for the
// duration of the call. S is the caller's handler state, carried on the
// Server value itself.
type Handler[S any] func(srv *Server[S], peerID uint64, target wire.Target, body []byte)

const (
	defaultInboundQueueCap  = 256
	defaultOutboundQueueCap = 256
	defaultBufferSize       = 4096
	defaultMaxPeers         = 0 // unlimited
)

// Server owns the listening reactor and coordinates peer lifecycle for a
// single message-bus endpoint. S is the type of the caller-supplied state
// threaded through to Handler.
type Server[S any] struct {
	// State is the caller's handler state, available to the Handler on
	// every invocation.
	State S

	addr       string
	bufferSize int
	maxPeers   int
	handler    Handler[S]
	logger     *slog.Logger

	inboundCap  int
	outboundCap int

	strategyCode uint32
	strategies   *strategy.Holder

	roster    *roster.Roster
	reactor   ioreactor.Reactor
	inboundQ  *queue.Queue[*inboundTask]
	outboundQ *queue.Queue[*outboundTask]

	readyOnce sync.Once
	readyCh   chan struct{}
	serveDone chan struct{}
	initMu    sync.Mutex
	errCh     chan error
	lastErrMu sync.Mutex
	lastErr   error

	state      atomic.Int32 // lifecycleState
	nextPeerID atomic.Uint64
	wg         sync.WaitGroup

	totalAccepted     atomic.Uint64
	totalHandshakeErr atomic.Uint64
	totalConnected    atomic.Uint64
	totalDisconnected atomic.Uint64
}

type lifecycleState int32

const (
	stateUnbound lifecycleState = iota
	stateBound
	stateRunning
	stateDraining
	stateTerminated
)

// Option configures a Server at construction time.
type Option[S any] func(*Server[S])

// New constructs a Server. The handler is required; options customise the
// rest. initial is the state carried on srv.State for the lifetime of the
// server.
func New[S any](handler Handler[S], initial S, opts ...Option[S]) *Server[S] {
	s := &Server[S]{
		State:        initial,
		bufferSize:   defaultBufferSize,
		maxPeers:     defaultMaxPeers,
		handler:      handler,
		logger:       logging.L(),
		inboundCap:   defaultInboundQueueCap,
		outboundCap:  defaultOutboundQueueCap,
		strategyCode: strategy.CodeXOR,
		roster:       roster.New(),
		readyCh:      make(chan struct{}),
		serveDone:    make(chan struct{}),
		errCh:        make(chan error, 1),
	}
	s.strategies = strategy.NewHolder(strategy.Lookup(s.strategyCode))
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	return s
}

func WithListenAddr[S any](a string) Option[S] { return func(s *Server[S]) { s.addr = a } }

func WithBufferSize[S any](n int) Option[S] {
	return func(s *Server[S]) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

func WithMaxPeers[S any](n int) Option[S] {
	return func(s *Server[S]) {
		if n > 0 {
			s.maxPeers = n
		}
	}
}

func WithInboundQueueCapacity[S any](n int) Option[S] {
	return func(s *Server[S]) {
		if n > 0 {
			s.inboundCap = n
		}
	}
}

func WithOutboundQueueCapacity[S any](n int) Option[S] {
	return func(s *Server[S]) {
		if n > 0 {
			s.outboundCap = n
		}
	}
}

// WithStrategyCode selects the handshake/default cipher strategy code
// advertised to peers on accept (strategy.CodeNone or strategy.CodeXOR).
func WithStrategyCode[S any](code uint32) Option[S] {
	return func(s *Server[S]) {
		s.strategyCode = code
		s.strategies = strategy.NewHolder(strategy.Lookup(code))
	}
}

func WithLogger[S any](l *slog.Logger) Option[S] {
	return func(s *Server[S]) {
		if l != nil {
			s.logger = l
		}
	}
}

// Addr returns the bound listen address; valid after Ready() fires.
func (s *Server[S]) Addr() string { return s.addr }

// Ready closes once the listening socket is bound.
func (s *Server[S]) Ready() <-chan struct{} { return s.readyCh }

// Errors surfaces fatal, non-recoverable-per-connection errors (e.g. a
// listener failure). Connection-scoped failures are logged, not surfaced
// here.
func (s *Server[S]) Errors() <-chan error { return s.errCh }

func (s *Server[S]) setError(err error) {
	if err == nil {
		return
	}
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	select {
	case s.errCh <- err:
	default:
	}
}

// LastError returns the most recent fatal error, if any.
func (s *Server[S]) LastError() error {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr
}

// PeerCount returns the number of currently connected peers.
func (s *Server[S]) PeerCount() int { return s.roster.Count() }

// SetStrategy swaps the active cipher strategy used for new sends and
// parses. The swap is an unsynchronised two-store pointer swap, safe only
// because XOR is self-inverse; see internal/strategy.Holder.
func (s *Server[S]) SetStrategy(code uint32) {
	s.strategies.Set(strategy.Lookup(code))
	metrics.IncStrategySwap()
}

// Send enqueues a unicast frame to one peer. Returns false if the outbound
// queue is full; the caller decides whether to retry or drop.
func (s *Server[S]) Send(peerID uint64, target wire.Target, body []byte) bool {
	return s.submit(&outboundTask{dest: destUnicast, peerID: peerID, target: target, body: copyBody(body)})
}

// Broadcast enqueues a fan-out frame to every currently connected peer.
func (s *Server[S]) Broadcast(target wire.Target, body []byte) bool {
	return s.submit(&outboundTask{dest: destBroadcast, target: target, body: copyBody(body)})
}

func (s *Server[S]) submit(t *outboundTask) bool {
	if lifecycleState(s.state.Load()) != stateRunning {
		return false
	}
	ok := s.outboundQ.Enqueue(t)
	if !ok {
		metrics.IncQueueDrop(metrics.QueueOutbound)
	}
	return ok
}

func copyBody(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out
}

func (s *Server[S]) summaryFields() []any {
	return []any{
		"accepted", s.totalAccepted.Load(),
		"handshake_fail", s.totalHandshakeErr.Load(),
		"connected", s.totalConnected.Load(),
		"disconnected", s.totalDisconnected.Load(),
	}
}
