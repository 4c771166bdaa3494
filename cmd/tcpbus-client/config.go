package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	serverAddr     string
	logFormat      string
	logLevel       string
	bufferSize     int
	reconnectDelay time.Duration
	sendInterval   time.Duration
	nick           string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	serverAddr := flag.String("server", "127.0.0.1:9420", "Server TCP address to connect to")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	bufferSize := flag.Int("buffer-size", 4096, "Per-frame receive buffer capacity in bytes")
	reconnectDelay := flag.Duration("reconnect-delay", time.Second, "Delay between reconnect attempts")
	sendInterval := flag.Duration("send-interval", 0, "If >0, send a periodic chat line on this interval")
	nick := flag.String("nick", "", "Chat nickname prefixed to sent lines (default hostname)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.serverAddr = *serverAddr
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.bufferSize = *bufferSize
	cfg.reconnectDelay = *reconnectDelay
	cfg.sendInterval = *sendInterval
	cfg.nick = *nick

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if cfg.nick == "" {
		host, _ := os.Hostname()
		cfg.nick = host
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.serverAddr == "" {
		return errors.New("server address must not be empty")
	}
	if c.bufferSize <= 0 {
		return fmt.Errorf("buffer-size must be > 0 (got %d)", c.bufferSize)
	}
	if c.reconnectDelay <= 0 {
		return errors.New("reconnect-delay must be > 0")
	}
	if c.sendInterval < 0 {
		return errors.New("send-interval must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps TCPBUS_CLIENT_* environment variables to config
// fields unless a corresponding flag was explicitly set: flag wins over
// env wins over default.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["server"]; !ok {
		if v, ok := get("TCPBUS_CLIENT_SERVER"); ok && v != "" {
			c.serverAddr = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("TCPBUS_CLIENT_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("TCPBUS_CLIENT_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["buffer-size"]; !ok {
		if v, ok := get("TCPBUS_CLIENT_BUFFER_SIZE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.bufferSize = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_CLIENT_BUFFER_SIZE: %w", err)
			}
		}
	}
	if _, ok := set["reconnect-delay"]; !ok {
		if v, ok := get("TCPBUS_CLIENT_RECONNECT_DELAY"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.reconnectDelay = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_CLIENT_RECONNECT_DELAY: %w", err)
			}
		}
	}
	if _, ok := set["send-interval"]; !ok {
		if v, ok := get("TCPBUS_CLIENT_SEND_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.sendInterval = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_CLIENT_SEND_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["nick"]; !ok {
		if v, ok := get("TCPBUS_CLIENT_NICK"); ok && v != "" {
			c.nick = v
		}
	}
	return firstErr
}
