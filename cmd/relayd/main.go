// Command relayd is a minimal demo front-end for the relay engine in
// internal/relay: it accepts inbound TCP connections, parses the
// request line and headers (the one external collaborator spec.md §1
// assumes is already done), and hands the parsed request to
// relay.RunCycle against a single statically configured backend.
// Backend selection, TLS termination, and connection pooling are all
// out of scope here too, matching the core's own scope.
package main

import (
	"context"
	"net"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycore/relayproxy/internal/config"
	"github.com/relaycore/relayproxy/internal/inbound"
	"github.com/relaycore/relayproxy/internal/logging"
	"github.com/relaycore/relayproxy/internal/metrics"
	"github.com/relaycore/relayproxy/internal/ratelimit"
	"github.com/relaycore/relayproxy/internal/relay"

	"github.com/prometheus/client_golang/prometheus"
)

// cli is parsed by kong, matching the CLI idiom of
// kidoz-vulners-proxy-go/cmd/vulners-proxy.
var cli struct {
	Config string `help:"Path to a TOML config file." short:"c"`
}

func main() {
	kong.Parse(&cli)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		panic(err)
	}
	relayCfg, err := cfg.RelayConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Development)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	dialer := ratelimit.NewDialer(cfg.ConnectRateLimit, cfg.ConnectBurst)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}
	logger.Info("relay listening", zap.String("addr", cfg.Listen), zap.String("backend", cfg.Backend))

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Error("accept failed", zap.Error(err))
			continue
		}
		go serve(conn, cfg.Backend, relayCfg, dialer, logger, m)
	}
}

func serve(conn net.Conn, backendAddr string, relayCfg relay.Config, dialer *ratelimit.Dialer, logger *zap.Logger, m *metrics.Metrics) {
	defer conn.Close()

	cycleID := uuid.NewString()
	cycleLogger := logging.ForCycle(logger, cycleID)

	m.ActiveCycles.Inc()
	defer m.ActiveCycles.Dec()
	start := time.Now()

	in, err := inbound.Parse(conn)
	if err != nil {
		cycleLogger.Warn("malformed request", zap.Error(err))
		return
	}

	ctx := context.Background()
	if err := dialer.Wait(ctx); err != nil {
		cycleLogger.Warn("backend dial throttled", zap.Error(err))
		return
	}

	disposition, rerr := relay.RunCycle(ctx, in, backendAddr, relayCfg)

	kind := ""
	if rerr != nil {
		kind = rerr.Kind.String()
		cycleLogger.Warn("cycle failed", zap.String("disposition", dispositionString(disposition)), zap.String("kind", kind), zap.Error(rerr))
	} else {
		cycleLogger.Debug("cycle done", zap.Duration("took", time.Since(start)))
	}
	m.ObserveCycle(dispositionString(disposition), kind, time.Since(start))
}

func dispositionString(d relay.Disposition) string {
	switch d {
	case relay.DispositionDone:
		return "done"
	case relay.DispositionClientError:
		return "client_error"
	case relay.DispositionUpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}
