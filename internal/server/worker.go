package server

import (
	"errors"

	"github.com/kstaniek/go-tcpbus/internal/metrics"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// runWorker drains the inbound queue, parses each task with the current
// decrypt strategy, and invokes the user handler. Exactly one worker runs,
// so user handlers see serialised invocations and need not lock their own
// state. Dequeue returning a nil task means the queue was closed during
// shutdown.
func (s *Server[S]) runWorker() {
	defer s.wg.Done()
	for {
		t := s.inboundQ.Dequeue()
		if t == nil {
			return
		}
		_, decrypt := s.strategies.Current()
		target, body, err := wire.Parse(t.data, decrypt)
		if err != nil {
			metrics.IncParseError(parseErrorReason(err))
			s.logger.Debug("parse_failed", "peer_id", t.peerID, "error", err)
			continue
		}
		metrics.IncFramesReceived()
		if s.handler != nil {
			s.handler(s, t.peerID, target, body)
		}
	}
}

func parseErrorReason(err error) string {
	switch {
	case errors.Is(err, wire.ErrTooShort):
		return "too_short"
	case errors.Is(err, wire.ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, wire.ErrChecksumFail):
		return "checksum_fail"
	default:
		return "other"
	}
}
