// Command tradingengine is the trading engine gateway: a venue-agnostic
// order-routing and execution service sitting between an upstream
// strategy/risk collaborator and an exchange's REST/WebSocket surface.
//
// Architecture:
//
//	internal/ingress     — T_ingress: NATS queue-group subscriber feeding decoded orders in
//	internal/ingest      — order parser: tolerant JSON decode into pool-allocated records
//	internal/dispatch     — action classification (place/cancel/replace)
//	internal/router       — venue name -> adapter lookup
//	internal/inflight      — the in-flight order table, keyed by client order id
//	internal/lifecycle    — the central orchestrator driving every order to a terminal report
//	internal/adapter/hyperliquid — the reference exchange adapter
//	internal/publish      — T_publish: drains the SPSC queue, emits reports/fills over NATS
//	internal/stats        — counters and latency bounds, Prometheus + periodic log emission
//	internal/statsapi     — T_statsapi: /healthz and /metrics over HTTP
//	internal/config       — flags + LATENTSPEED_* environment variables
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/latentspeed/tradingengine/internal/adapter"
	"github.com/latentspeed/tradingengine/internal/adapter/hyperliquid"
	"github.com/latentspeed/tradingengine/internal/config"
	"github.com/latentspeed/tradingengine/internal/enginepool"
	"github.com/latentspeed/tradingengine/internal/inflight"
	"github.com/latentspeed/tradingengine/internal/ingest"
	"github.com/latentspeed/tradingengine/internal/ingress"
	"github.com/latentspeed/tradingengine/internal/lifecycle"
	"github.com/latentspeed/tradingengine/internal/publish"
	"github.com/latentspeed/tradingengine/internal/router"
	"github.com/latentspeed/tradingengine/internal/statsapi"
	"github.com/latentspeed/tradingengine/internal/stats"
	"github.com/latentspeed/tradingengine/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	orderPoolCapacity    = 4096
	reportPoolCapacity   = 4096
	fillPoolCapacity     = 4096
	envelopePoolCapacity = 4096
	publishQueueCapacity = 4096

	shutdownGracePeriod = 5 * time.Second
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "tradingengine: ", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "tradingengine: ", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("tradingengine exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Close()

	reg := prometheus.NewRegistry()
	collector := stats.New(logger, reg)

	orderPool := enginepool.NewPool(orderPoolCapacity, func() *domain.ExecutionOrder { return &domain.ExecutionOrder{} })
	reportPool := enginepool.NewPool(reportPoolCapacity, func() *domain.ExecutionReport { return &domain.ExecutionReport{} })
	fillPool := enginepool.NewPool(fillPoolCapacity, func() *domain.Fill { return &domain.Fill{} })
	envelopePool := enginepool.NewPool(envelopePoolCapacity, func() *publish.Envelope { return &publish.Envelope{} })
	queue := enginepool.NewSPSCQueue[*publish.Envelope](publishQueueCapacity)

	parser := ingest.NewParser(orderPool, collector.IncOrdersRejected, collector.IncPoolExhausted)

	pub := publish.New(publish.Config{
		Conn:         nc,
		Queue:        queue,
		EnvelopePool: envelopePool,
		ReportPool:   reportPool,
		FillPool:     fillPool,
		Stats:        collector,
		Profile:      publish.ProfileNormal,
		Logger:       logger,
	})

	adapterClient, signerCmd, err := newAdapter(cfg, logger)
	if err != nil {
		return fmt.Errorf("build %s adapter: %w", cfg.Exchange, err)
	}
	if signerCmd != nil {
		defer func() {
			_ = signerCmd.Process.Kill()
			_ = signerCmd.Wait()
		}()
	}

	if !adapterClient.Initialize(cfg.APIKey, cfg.APISecret, !cfg.LiveTrade) {
		return fmt.Errorf("initialize %s adapter", cfg.Exchange)
	}

	table := inflight.New()
	venueRouter := router.New()
	venueRouter.Register(cfg.Exchange, adapterClient)

	proc := lifecycle.New(lifecycle.Config{
		Table:      table,
		Router:     venueRouter,
		Parser:     parser,
		Publisher:  pub,
		ReportPool: reportPool,
		FillPool:   fillPool,
		Stats:      collector,
		Logger:     logger,
	})

	adapterClient.OnOrderUpdate(func(u adapter.OrderUpdate) {
		proc.HandleOrderUpdate(ctx, cfg.Exchange, u)
	})
	adapterClient.OnFill(func(f adapter.FillData) {
		proc.HandleFill(cfg.Exchange, f)
	})
	adapterClient.OnError(func(err error) {
		logger.Warn("adapter reported an async error", "exchange", cfg.Exchange, "error", err)
	})

	receiver := ingress.New(nc, parser, proc, logger)
	statsServer := statsapi.New(cfg.StatsAddr, collector, reg, logger)

	connectCtx, connectCancel := context.WithTimeout(ctx, lifecycle.AdapterCallDeadline)
	connected := adapterClient.Connect(connectCtx)
	connectCancel()
	if !connected {
		return fmt.Errorf("connect %s adapter", cfg.Exchange)
	}
	defer adapterClient.Disconnect()

	statsInterval, err := time.ParseDuration(cfg.StatsInterval)
	if err != nil {
		return fmt.Errorf("parse stats interval: %w", err)
	}

	// T_ingress stops on the signal context directly. T_publish and
	// T_stats keep running on their own contexts past that point so the
	// queue they're still draining isn't orphaned; run cancels them only
	// after the grace-bounded drain below completes.
	publishCtx, cancelPublish := context.WithCancel(context.Background())
	defer cancelPublish()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return receiver.Run(gctx) })
	g.Go(func() error { return pub.Run(publishCtx) })
	g.Go(func() error { return statsServer.Run(publishCtx) })
	g.Go(func() error { collector.Run(publishCtx, statsInterval); return nil })

	logger.Info("tradingengine started",
		"exchange", cfg.Exchange,
		"live_trade", cfg.LiveTrade,
		"nats_url", cfg.NATSURL,
		"stats_addr", cfg.StatsAddr,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received, draining publish queue", "grace_period", shutdownGracePeriod)
	waitForDrain(pub, shutdownGracePeriod)
	cancelPublish()

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// waitForDrain polls the publish queue's depth, bounded by grace, while
// T_publish (running on its own goroutine) continues to consume it. It
// never calls Dequeue itself: the queue is single-consumer and T_publish
// already owns that role.
func waitForDrain(pub *publish.Publisher, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if pub.QueueLen() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// newAdapter constructs the configured venue's adapter. Hyperliquid is
// the only reference adapter; its external NDJSON signer subprocess is
// spawned here and torn down by the caller's deferred Kill/Wait.
func newAdapter(cfg *config.Config, logger *slog.Logger) (*hyperliquid.Client, *exec.Cmd, error) {
	if cfg.Exchange != "hyperliquid" {
		return nil, nil, fmt.Errorf("unsupported exchange %q", cfg.Exchange)
	}

	cmd := exec.Command(cfg.HLSignerPython, cfg.HLSignerScript)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("signer stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("signer stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start signer subprocess: %w", err)
	}

	signer := hyperliquid.NewSigner(stdin, stdout, logger)

	baseURL := "https://api.hyperliquid.xyz"
	if !cfg.LiveTrade {
		baseURL = "https://api.hyperliquid-testnet.xyz"
	}

	client := hyperliquid.NewClient(hyperliquid.Config{
		Signer:      signer,
		Fetch:       hyperliquid.FetchMeta(baseURL),
		Logger:      logger,
		HTTPTimeout: time.Duration(cfg.HTTPTimeoutMs) * time.Millisecond,
	})
	return client, cmd, nil
}
