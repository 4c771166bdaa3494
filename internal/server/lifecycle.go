package server

import (
	"context"
	"fmt"

	"github.com/kstaniek/go-tcpbus/internal/ioreactor"
	"github.com/kstaniek/go-tcpbus/internal/metrics"
	"github.com/kstaniek/go-tcpbus/internal/queue"
)

// Serve binds the listening socket, starts the worker and sender, and
// blocks in the reactor's accept/read loop until ctx is cancelled or a
// fatal listener error occurs. It drives the Unbound -> Bound -> Running
// transitions; call Shutdown afterwards (or concurrently) to drive
// Draining -> Terminated.
func (s *Server[S]) Serve(ctx context.Context) error {
	r, err := ioreactor.NewReactor(s.addr, s.bufferSize)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.initMu.Lock()
	s.reactor = r
	s.addr = r.Addr()
	s.inboundQ = queue.New[*inboundTask](s.inboundCap)
	s.outboundQ = queue.New[*outboundTask](s.outboundCap)
	s.initMu.Unlock()
	defer close(s.serveDone)

	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("tcp_listen", "addr", s.addr)

	s.wg.Add(2)
	go s.runWorker()
	go s.runSender()

	s.state.Store(int32(stateRunning))
	s.logger.Info("ready")

	err = r.Serve(ctx, &reactorHandler[S]{srv: s})
	s.state.Store(int32(stateDraining))
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	return nil
}

// Shutdown stops accepting and reading, waits for the reactor loop to
// return, then closes every queue (waking the worker and sender via their
// Dequeue-on-closed-channel zero value) and waits for both to exit. It
// returns a wrapped ErrShutdown if ctx expires before they do.
func (s *Server[S]) Shutdown(ctx context.Context) error {
	s.initMu.Lock()
	r := s.reactor
	inQ, outQ := s.inboundQ, s.outboundQ
	s.initMu.Unlock()

	if r != nil {
		_ = r.Close()
		// The reactor goroutine may still be mid-event; destroying the
		// queues while it can enqueue would race, so wait for Serve to
		// return first.
		select {
		case <-s.serveDone:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrShutdown, ctx.Err())
		}
	}
	if inQ != nil {
		inQ.Destroy(nil)
	}
	if outQ != nil {
		outQ.Destroy(nil)
	}

	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrShutdown, ctx.Err())
	case <-done:
	}

	for _, p := range s.roster.Drain() {
		_ = p.Conn.Close()
	}
	s.state.Store(int32(stateTerminated))
	s.logger.Info("shutdown_summary", s.summaryFields()...)
	return nil
}
