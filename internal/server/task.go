package server

import "github.com/kstaniek/go-tcpbus/internal/wire"

// inboundTask is a single reader chunk handed from the reactor to the
// worker. The reactor allocates the buffer fresh per read; ownership
// passes to the queue on enqueue and to the worker on dequeue, and the
// buffer is discarded once the handler returns.
type inboundTask struct {
	peerID uint64
	data   []byte
}

// destKind selects how an outboundTask is delivered.
type destKind int

const (
	destUnicast destKind = iota
	destBroadcast
)

// outboundTask is a queued send request. body is a private copy taken at
// submission time so the caller's memory is never retained past Send or
// Broadcast returning.
type outboundTask struct {
	dest   destKind
	peerID uint64
	target wire.Target
	body   []byte
}
