package main

import (
	"log/slog"

	"github.com/kstaniek/go-tcpbus/internal/server"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// chatTarget is the one application-defined tag this example app
// understands; every other target is logged and ignored.
var chatTarget = wire.NewTarget("CHAT\x00\x00\x00\x00")

// appState is the caller state threaded through server.Server to the
// message handler.
type appState struct {
	logger *slog.Logger
}

// onMessage broadcasts every CHAT frame verbatim to every connected peer,
// exercising Broadcast the way a minimal chat relay would.
func onMessage(srv *server.Server[*appState], peerID uint64, target wire.Target, body []byte) {
	if !target.Equal(chatTarget) {
		srv.State.logger.Debug("unknown_target", "peer_id", peerID, "target", target.String())
		return
	}
	srv.State.logger.Info("chat_message", "peer_id", peerID, "bytes", len(body))
	if !srv.Broadcast(chatTarget, body) {
		srv.State.logger.Warn("broadcast_dropped", "peer_id", peerID)
	}
}
