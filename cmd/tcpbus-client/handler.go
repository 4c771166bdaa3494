package main

import (
	"log/slog"

	"github.com/kstaniek/go-tcpbus/internal/client"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

var chatTarget = wire.NewTarget("CHAT\x00\x00\x00\x00")

// appState is the caller state carried on client.Manager into the message
// handler.
type appState struct {
	logger *slog.Logger
	nick   string
}

// onMessage logs every chat line received after the handshake; any other
// target is logged at debug and otherwise ignored, matching the server's
// handler.go symmetry.
func onMessage(mgr *client.Manager[*appState], target wire.Target, body []byte) {
	if !target.Equal(chatTarget) {
		mgr.State.logger.Debug("unknown_target", "target", target.String())
		return
	}
	mgr.State.logger.Info("chat_received", "line", string(body))
}
