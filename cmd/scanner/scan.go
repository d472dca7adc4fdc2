package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arbScope/internal/arb"
	"arbScope/internal/chain"
	"arbScope/internal/config"
	"arbScope/internal/dex"
	"arbScope/internal/metrics"
	"arbScope/internal/registry"
	"arbScope/internal/scan"
	"arbScope/internal/storage"
	"arbScope/internal/storage/postgres"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	starts, err := scan.ParseStarts(cfg.Starts)
	if err != nil {
		return err
	}
	if len(starts) == 0 {
		return fmt.Errorf("at least one start is required")
	}
	specs, err := scan.ParsePoolSpecs(cfg.Pools)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("pool list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	searchMetrics := metrics.NewSearchMetrics(promRegistry)
	rpcMetrics := metrics.NewRPCMetrics(promRegistry)
	oppMetrics := metrics.NewOpportunityMetrics(promRegistry)

	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, promRegistry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		Commitment:   cfg.Commitment,
		RPS:          cfg.RPCRPS,
		Burst:        cfg.RPCBurst,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Metrics:      rpcMetrics,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	mints, err := dex.NewMintCache(dex.DefaultMintCacheSize)
	if err != nil {
		return err
	}

	reg, err := registry.Build(ctx, specs, chainClient,
		registry.WithLogger(logger),
		registry.WithMintCache(mints),
	)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	searcher := arb.NewSearcher(reg,
		arb.WithAccounts(chainClient),
		arb.WithMaxHops(cfg.MaxHops),
		arb.WithObserver(arb.Observers{
			arb.LogObserver{Logger: logger},
			arb.MetricsObserver{Metrics: searchMetrics},
		}),
		arb.WithMetrics(searchMetrics),
		arb.WithLogger(logger),
	)

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}
	var sink storage.Storage
	if len(sinks) > 0 {
		sink = sinks
	}

	runner := scan.NewRunner(scan.RunConfig{
		Starts:   starts,
		Interval: cfg.Interval,
	}, searcher, sink, chainClient, oppMetrics, logger)

	logger.Info("scanner start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("commitment", cfg.Commitment),
		zap.Int("starts", len(starts)),
		zap.Int("pools", reg.Len()),
		zap.Int("assets", len(reg.Assets())),
		zap.Int("max_hops", searcher.MaxHops()),
		zap.Duration("interval", cfg.Interval),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	return runner.Run(ctx)
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return server
}
