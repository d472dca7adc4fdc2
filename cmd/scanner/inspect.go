package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arbScope/internal/chain"
	"arbScope/internal/config"
	"arbScope/internal/dex"
	"arbScope/internal/model"
	"arbScope/internal/registry"
	"arbScope/internal/report"
	"arbScope/internal/scan"
	"arbScope/internal/storage/postgres"
)

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
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
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
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

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		Commitment: cfg.Commitment,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	mints, err := dex.NewMintCache(dex.DefaultMintCacheSize)
	if err != nil {
		return err
	}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	outWriter, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	decodeCtx := dex.DecodeContext{
		Context:  ctx,
		Accounts: chainClient,
		Mints:    mints,
		Logger:   logger,
	}
	decoders := dex.DefaultDecoders()

	logger.Info("inspect start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("pools", len(specs)),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Bool("bin_arrays", cfg.BinArrays),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	var total, decoded, failed int
	records := make([]model.PoolRecord, 0, len(specs))
	for _, spec := range specs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		total++

		rec, err := inspectPool(ctx, decodeCtx, decoders, spec, cfg.BinArrays)
		if err != nil {
			failed++
			logger.Warn("inspect pool failed",
				zap.String("pool", spec.Address.String()),
				zap.String("protocol", string(spec.Protocol)),
				zap.Error(err),
			)
			writeDecodeError(errWriter, model.DecodeError{
				Address:  spec.Address.String(),
				Protocol: string(spec.Protocol),
				Asset:    spec.Asset.String(),
				Error:    err.Error(),
				At:       time.Now().UTC().Format(time.RFC3339),
			})
			continue
		}

		if err := outWriter.Write(rec); err != nil {
			return err
		}
		records = append(records, rec)
		decoded++
	}

	if store != nil {
		if err := store.UpsertPools(ctx, records); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}

	logger.Info("inspect complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("failed", failed),
		zap.Int("mints_cached", mints.Len()),
	)
	return nil
}

func inspectPool(ctx context.Context, dc dex.DecodeContext, decoders map[dex.Protocol]dex.Decoder, spec registry.PoolSpec, binArrays bool) (model.PoolRecord, error) {
	pool, err := dex.DecodeAccount(dc, decoders, spec.Protocol, spec.Address)
	if err != nil {
		return model.PoolRecord{}, err
	}
	if !dex.Trades(pool, spec.Asset) {
		return model.PoolRecord{}, fmt.Errorf("pool %s does not trade %s", spec.Address, spec.Asset)
	}
	return report.PoolRecord(ctx, pool, spec.Asset, report.PoolOptions{
		Accounts:  dc.Accounts,
		BinArrays: binArrays,
	})
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// newJSONLWriter truncates path and buffers one JSON value per line.
func newJSONLWriter(path string) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
