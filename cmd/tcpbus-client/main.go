// Command tcpbus-client is a runnable embedding example for
// internal/client: it connects to a tcpbus-server, logs the
// handshake-negotiated cipher strategy, optionally sends periodic chat
// lines, and reconnects automatically on drop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kstaniek/go-tcpbus/internal/client"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("tcpbus-client %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	state := &appState{logger: l, nick: cfg.nick}
	mgr := client.New[*appState](cfg.serverAddr, onMessage, state,
		client.WithLogger[*appState](l),
		client.WithBufferSize[*appState](cfg.bufferSize),
		client.WithReconnectDelay[*appState](cfg.reconnectDelay),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- mgr.Run(ctx) }()

	if cfg.sendInterval > 0 {
		go sendLoop(ctx, mgr, cfg.sendInterval, cfg.nick)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
	case err := <-runDone:
		if err != nil {
			l.Error("client_run_error", "error", err)
		}
	}

	cancel()
	mgr.Close()
}

// sendLoop submits one chat line per tick while the manager is connected;
// disconnected ticks are logged at debug and skipped rather than retried,
// since the manager's own reconnect loop will restore connectivity.
func sendLoop(ctx context.Context, mgr *client.Manager[*appState], interval time.Duration, nick string) {
	t := time.NewTicker(interval)
	defer t.Stop()
	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !mgr.IsConnected() {
				mgr.State.logger.Debug("send_skipped_disconnected")
				continue
			}
			seq++
			line := fmt.Sprintf("%s: hello #%d", nick, seq)
			if _, err := mgr.Send(wire.NewTarget("CHAT\x00\x00\x00\x00"), []byte(line)); err != nil {
				mgr.State.logger.Debug("send_failed", "error", err)
			}
		}
	}
}
