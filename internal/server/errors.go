package server

import (
	"errors"

	"github.com/kstaniek/go-tcpbus/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen     = errors.New("server: listen")
	ErrHandshake  = errors.New("server: handshake")
	ErrShutdown   = errors.New("server: shutdown timeout")
	ErrMaxPeers   = errors.New("server: max peers reached")
	ErrNotRunning = errors.New("server: not running")
)

// mapErrToMetric maps a wrapped sentinel error to a stable metrics label.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrListen):
		return metrics.ErrListen
	case errors.Is(err, ErrHandshake):
		return metrics.ErrHandshake
	default:
		return metrics.ErrConnRead
	}
}
