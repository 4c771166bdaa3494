package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/go-tcpbus/internal/strategy"
)

type appConfig struct {
	listenAddr       string
	logFormat        string
	logLevel         string
	metricsAddr      string
	bufferSize       int
	inboundQueueCap  int
	outboundQueueCap int
	maxPeers         int
	strategyCode     uint
	mdnsEnable       bool
	mdnsName         string
	logMetricsEvery  time.Duration
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	listen := flag.String("listen", ":9420", "TCP listen address")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9421); empty disables")
	bufferSize := flag.Int("buffer-size", 4096, "Per-read/per-frame buffer capacity in bytes")
	inboundCap := flag.Int("inbound-queue", 256, "Inbound task queue capacity")
	outboundCap := flag.Int("outbound-queue", 256, "Outbound task queue capacity")
	maxPeers := flag.Int("max-peers", 0, "Maximum simultaneous peers (0 = unlimited)")
	strategyCode := flag.Uint("strategy", uint(strategy.CodeXOR), "Cipher strategy code advertised at handshake (0=none, 1=xor)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement of this server")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default tcpbus-server-<hostname>)")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.listenAddr = *listen
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.bufferSize = *bufferSize
	cfg.inboundQueueCap = *inboundCap
	cfg.outboundQueueCap = *outboundCap
	cfg.maxPeers = *maxPeers
	cfg.strategyCode = *strategyCode
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.logMetricsEvery = *logMetricsEvery

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// No socket side effects here.
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
	if c.bufferSize <= 0 {
		return fmt.Errorf("buffer-size must be > 0 (got %d)", c.bufferSize)
	}
	if c.inboundQueueCap <= 0 {
		return fmt.Errorf("inbound-queue must be > 0 (got %d)", c.inboundQueueCap)
	}
	if c.outboundQueueCap <= 0 {
		return fmt.Errorf("outbound-queue must be > 0 (got %d)", c.outboundQueueCap)
	}
	if c.maxPeers < 0 {
		return fmt.Errorf("max-peers must be >= 0")
	}
	if c.logMetricsEvery < 0 {
		return fmt.Errorf("log-metrics-interval must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps TCPBUS_* environment variables to config fields
// unless a corresponding flag was explicitly set: flag wins over env wins
// over default.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["listen"]; !ok {
		if v, ok := get("TCPBUS_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("TCPBUS_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("TCPBUS_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("TCPBUS_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["buffer-size"]; !ok {
		if v, ok := get("TCPBUS_BUFFER_SIZE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.bufferSize = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_BUFFER_SIZE: %w", err)
			}
		}
	}
	if _, ok := set["inbound-queue"]; !ok {
		if v, ok := get("TCPBUS_INBOUND_QUEUE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.inboundQueueCap = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_INBOUND_QUEUE: %w", err)
			}
		}
	}
	if _, ok := set["outbound-queue"]; !ok {
		if v, ok := get("TCPBUS_OUTBOUND_QUEUE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.outboundQueueCap = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_OUTBOUND_QUEUE: %w", err)
			}
		}
	}
	if _, ok := set["max-peers"]; !ok {
		if v, ok := get("TCPBUS_MAX_PEERS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxPeers = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_MAX_PEERS: %w", err)
			}
		}
	}
	if _, ok := set["strategy"]; !ok {
		if v, ok := get("TCPBUS_STRATEGY"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.strategyCode = uint(n)
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_STRATEGY: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("TCPBUS_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("TCPBUS_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("TCPBUS_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCPBUS_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}
