package server

import (
	"github.com/kstaniek/go-tcpbus/internal/ioreactor"
	"github.com/kstaniek/go-tcpbus/internal/metrics"
	"github.com/kstaniek/go-tcpbus/internal/roster"
)

// reactorHandler adapts ioreactor.Handler callbacks onto a Server: accept
// writes the handshake and registers a roster entry; readable events
// become inboundTasks dropped at the queue boundary under backpressure;
// closes remove the peer from the roster.
type reactorHandler[S any] struct {
	srv *Server[S]
}

func (h *reactorHandler[S]) OnAccept(c ioreactor.Conn) error {
	s := h.srv
	s.totalAccepted.Add(1)
	metrics.IncConnectionsAccepted()

	if s.maxPeers > 0 && s.roster.Count() >= s.maxPeers {
		metrics.IncConnectionsRejected()
		s.logger.Warn("peer_reject_max", "max_peers", s.maxPeers)
		return ErrMaxPeers
	}

	if err := writeHandshake(c, s.strategyCode); err != nil {
		s.totalHandshakeErr.Add(1)
		metrics.IncHandshakeFailure()
		s.logger.Warn("handshake_failed", "peer_id", c.ID(), "error", err)
		return err
	}

	s.roster.Add(&roster.Peer{ID: c.ID(), Conn: c})
	s.totalConnected.Add(1)
	metrics.SetActivePeers(s.roster.Count())
	s.logger.Info("peer_connected", "peer_id", c.ID(), "remote", c.RemoteAddr())
	return nil
}

func (h *reactorHandler[S]) OnReadable(c ioreactor.Conn, data []byte) {
	s := h.srv
	ok := s.inboundQ.Enqueue(&inboundTask{peerID: c.ID(), data: data})
	if !ok {
		metrics.IncQueueDrop(metrics.QueueInbound)
		s.logger.Debug("inbound_queue_full_drop", "peer_id", c.ID(), "bytes", len(data))
	}
	metrics.SetQueueDepth(metrics.QueueInbound, s.inboundQ.Len())
}

func (h *reactorHandler[S]) OnClosed(c ioreactor.Conn, err error) {
	s := h.srv
	if _, ok := s.roster.Remove(c.ID()); ok {
		s.totalDisconnected.Add(1)
		metrics.SetActivePeers(s.roster.Count())
		s.logger.Info("peer_disconnected", "peer_id", c.ID(), "error", err)
	}
}
