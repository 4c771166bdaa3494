package server

import (
	"github.com/kstaniek/go-tcpbus/internal/metrics"
	"github.com/kstaniek/go-tcpbus/internal/roster"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// runSender drains the outbound queue, serialises each task with the
// current encrypt strategy, and writes it unicast or broadcast. A failed
// write during broadcast does not abort the remaining peers, and failed
// peers are not eagerly removed here; the next read failure on that
// peer's own connection does the removal.
func (s *Server[S]) runSender() {
	defer s.wg.Done()
	buf := make([]byte, s.bufferSize)
	for {
		t := s.outboundQ.Dequeue()
		if t == nil {
			return
		}
		metrics.SetQueueDepth(metrics.QueueOutbound, s.outboundQ.Len())
		encrypt, _ := s.strategies.Current()
		n, err := wire.Serialize(buf, t.target, t.body, encrypt)
		if err != nil {
			s.logger.Error("serialize_failed", "error", err, "target", t.target.String())
			continue
		}
		frame := buf[:n]

		switch t.dest {
		case destUnicast:
			s.writeUnicast(t.peerID, frame)
		case destBroadcast:
			s.writeBroadcast(frame)
		}
	}
}

func (s *Server[S]) writeUnicast(peerID uint64, frame []byte) {
	p, ok := s.roster.Get(peerID)
	if !ok {
		return
	}
	if _, err := p.Write(frame); err != nil {
		metrics.IncError(metrics.ErrConnWrite)
		s.logger.Debug("unicast_write_failed", "peer_id", peerID, "error", err)
		return
	}
	metrics.IncFramesSent()
}

func (s *Server[S]) writeBroadcast(frame []byte) {
	fanout := 0
	s.roster.ForEach(func(p *roster.Peer) {
		fanout++
		if _, err := p.Write(frame); err != nil {
			s.logger.Debug("broadcast_write_failed", "peer_id", p.ID, "error", err)
			return
		}
		metrics.IncFramesSent()
	})
	metrics.SetBroadcastFanout(fanout)
}
