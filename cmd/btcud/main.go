// btcud is an automated market maker for short-duration Up/Down crypto
// prediction markets — binary bets on whether an asset settles above or
// below a strike by a fixed window's close.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires subsystems, waits for SIGINT/SIGTERM
//	engine/engine.go         — orchestrator: discovery → per-market runner → gateway, manages market lifecycle
//	engine/runner.go         — drives one market: folds events into MarketState, evaluates strategies
//	strategy/*.go            — six signal generators (latency arb, certainty capture, convexity fade, ...)
//	state/market.go          — per-market mutable state (reference price, books, position, strategy stats)
//	discovery/discovery.go   — polls the venue's listing API for the next tradeable window
//	feed/feed.go             — decodes reference and venue market-data feeds into InboundEvents
//	gateway/gateway.go       — places/cancels orders against the venue's order API
//	risk/manager.go          — enforces portfolio exposure, daily loss and price-shock kill switches
//	telemetry/recorder.go    — per-market CSV artifacts and Prometheus metrics
//	api/server.go            — dashboard HTTP/WebSocket server
//
// How it makes money:
//
//	Each strategy looks for a specific mispricing between the venue's
//	quoted Up/Down prices and a fair value derived from the reference
//	spot feed and a short-horizon volatility model, then posts a limit
//	order on the side it judges underpriced.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xtitan6/btcud-mm/internal/api"
	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/internal/discovery"
	"github.com/0xtitan6/btcud-mm/internal/engine"
	"github.com/0xtitan6/btcud-mm/internal/feed"
	"github.com/0xtitan6/btcud-mm/internal/gateway"
	"github.com/0xtitan6/btcud-mm/internal/risk"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BTCUD_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	disc := discovery.New(*cfg, os.Getenv("BTCUD_SERIES_ID"), logger)
	mdFeed := feed.New(*cfg, logger)
	gw, err := gateway.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
		os.Exit(1)
	}
	riskMgr := risk.NewManager(cfg.Risk, logger)

	eng := engine.New(*cfg, disc, mdFeed, gw, riskMgr, nil, logger)

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, logger)
		eng.SetSink(apiServer.Sink())
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	eng.Start()

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("btcud market maker started",
		"asset", cfg.Asset,
		"interval", cfg.Interval,
		"max_markets", cfg.Risk.MaxMarketsActive,
		"max_exposure", cfg.Risk.MaxGlobalExposure,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
