package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "scanner",
		Short:        "Solana cyclic arbitrage scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Search configured pools for profitable cycles",
		RunE:  runScan,
	}

	scanCmd.Flags().String("rpc", "", "Solana RPC URL")
	scanCmd.Flags().String("commitment", "confirmed", "account commitment level")
	scanCmd.Flags().Float64("rpc-rps", 10, "RPC requests per second, 0 disables limiting")
	scanCmd.Flags().Int("rpc-burst", 5, "RPC rate limiter burst")
	scanCmd.Flags().Int("max-retries", 3, "maximum retry attempts per RPC call")
	scanCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	scanCmd.Flags().StringSlice("start", nil, "start positions as MINT=AMOUNT (comma-separated)")
	scanCmd.Flags().Int("max-hops", 4, "maximum chain length (1-4)")
	scanCmd.Flags().Duration("interval", 0, "repeat the scan at this interval, 0 runs once")
	scanCmd.Flags().String("out", "", "opportunities JSONL path")
	scanCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	scanCmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9102")
	scanCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(scanCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode configured pools and write their state",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("rpc", "", "Solana RPC URL")
	inspectCmd.Flags().String("commitment", "confirmed", "account commitment level")
	inspectCmd.Flags().String("out", "./data/pools.jsonl", "output pools JSONL")
	inspectCmd.Flags().String("errors", "./data/pool_errors.jsonl", "decode errors JSONL")
	inspectCmd.Flags().Bool("bin-arrays", false, "include derived DLMM bin array addresses")
	inspectCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
