package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-tcpbus/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpbus_frames_received_total",
		Help: "Total frames successfully parsed from peer connections.",
	})
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpbus_frames_sent_total",
		Help: "Total frames serialized and written to peer connections.",
	})
	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcpbus_parse_errors_total",
		Help: "Total frames rejected while parsing, by reason.",
	}, []string{"reason"})
	HandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpbus_handshake_failures_total",
		Help: "Total connections that failed the strategy handshake.",
	})
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpbus_connections_accepted_total",
		Help: "Total inbound connections accepted by the reactor.",
	})
	ConnectionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpbus_connections_rejected_total",
		Help: "Total inbound connections rejected (e.g., max-peers reached).",
	})
	ActivePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tcpbus_active_peers",
		Help: "Current number of connected peers in the roster.",
	})
	BroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tcpbus_broadcast_fanout",
		Help: "Number of peers targeted in the most recent broadcast.",
	})
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tcpbus_queue_depth",
		Help: "Current occupancy of an internal pipeline queue.",
	}, []string{"queue"})
	QueueDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcpbus_queue_drops_total",
		Help: "Total items dropped because a pipeline queue was full.",
	}, []string{"queue"})
	StrategySwaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpbus_strategy_swaps_total",
		Help: "Total times the active cipher strategy was swapped.",
	})
	ClientReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpbus_client_reconnects_total",
		Help: "Total established client connections that dropped and sent the state machine back to reconnecting.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcpbus_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrAccept      = "accept"
	ErrHandshake   = "handshake"
	ErrConnRead    = "conn_read"
	ErrConnWrite   = "conn_write"
	ErrUserHandler = "user_handler"
	ErrListen      = "listen"
)

// Queue name constants used as the "queue" label value.
const (
	QueueInbound  = "inbound"
	QueueOutbound = "outbound"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, kept so periodic metrics logging (Snap) doesn't
// need to scrape the Prometheus registry.
var (
	localFramesRx     uint64
	localFramesTx     uint64
	localParseErrors  uint64
	localHandshakeErr uint64
	localAccepted     uint64
	localRejected     uint64
	localActivePeers  uint64
	localErrors       uint64
	localReconnects   uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	FramesRx     uint64
	FramesTx     uint64
	ParseErrors  uint64
	HandshakeErr uint64
	Accepted     uint64
	Rejected     uint64
	ActivePeers  uint64
	Errors       uint64
	Reconnects   uint64
}

func Snap() Snapshot {
	return Snapshot{
		FramesRx:     atomic.LoadUint64(&localFramesRx),
		FramesTx:     atomic.LoadUint64(&localFramesTx),
		ParseErrors:  atomic.LoadUint64(&localParseErrors),
		HandshakeErr: atomic.LoadUint64(&localHandshakeErr),
		Accepted:     atomic.LoadUint64(&localAccepted),
		Rejected:     atomic.LoadUint64(&localRejected),
		ActivePeers:  atomic.LoadUint64(&localActivePeers),
		Errors:       atomic.LoadUint64(&localErrors),
		Reconnects:   atomic.LoadUint64(&localReconnects),
	}
}

func IncFramesReceived() {
	FramesReceived.Inc()
	atomic.AddUint64(&localFramesRx, 1)
}

func IncFramesSent() {
	FramesSent.Inc()
	atomic.AddUint64(&localFramesTx, 1)
}

func IncParseError(reason string) {
	ParseErrors.WithLabelValues(reason).Inc()
	atomic.AddUint64(&localParseErrors, 1)
}

func IncHandshakeFailure() {
	HandshakeFailures.Inc()
	atomic.AddUint64(&localHandshakeErr, 1)
}

func IncConnectionsAccepted() {
	ConnectionsAccepted.Inc()
	atomic.AddUint64(&localAccepted, 1)
}

func IncConnectionsRejected() {
	ConnectionsRejected.Inc()
	atomic.AddUint64(&localRejected, 1)
}

func SetActivePeers(n int) {
	ActivePeers.Set(float64(n))
	atomic.StoreUint64(&localActivePeers, uint64(n))
}

func SetBroadcastFanout(n int) {
	BroadcastFanout.Set(float64(n))
}

func SetQueueDepth(queue string, n int) {
	QueueDepth.WithLabelValues(queue).Set(float64(n))
}

func IncQueueDrop(queue string) {
	QueueDrops.WithLabelValues(queue).Inc()
}

func IncStrategySwap() {
	StrategySwaps.Inc()
}

func IncClientReconnect() {
	ClientReconnects.Inc()
	atomic.AddUint64(&localReconnects, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrAccept, ErrHandshake, ErrConnRead, ErrConnWrite, ErrUserHandler, ErrListen} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
