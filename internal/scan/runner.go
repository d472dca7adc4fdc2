package scan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"arbScope/internal/arb"
	"arbScope/internal/metrics"
	"arbScope/internal/model"
	"arbScope/internal/report"
	"arbScope/internal/storage"
)

// SlotSource reports the current slot for stamping opportunities.
type SlotSource interface {
	Slot(ctx context.Context) (uint64, error)
}

// RunConfig holds runtime settings for the scan loop.
type RunConfig struct {
	Starts []Start
	// Interval > 0 repeats the round until ctx is done.
	Interval time.Duration
}

// Runner searches every start once per round and reports what it finds.
type Runner struct {
	cfg      RunConfig
	searcher *arb.Searcher
	storage  storage.Storage
	slots    SlotSource
	metrics  *metrics.OpportunityMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunner builds a Runner. storage, slots and m may be nil.
func NewRunner(cfg RunConfig, searcher *arb.Searcher, sink storage.Storage, slots SlotSource, m *metrics.OpportunityMetrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		searcher: searcher,
		storage:  sink,
		slots:    slots,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one round, or rounds every Interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if r.searcher == nil {
		return fmt.Errorf("searcher is nil")
	}
	if len(r.cfg.Starts) == 0 {
		return fmt.Errorf("at least one start is required")
	}

	for round := 1; ; round++ {
		found, err := r.RunOnce(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("round complete", zap.Int("round", round), zap.Int("opportunities", found))

		if r.cfg.Interval <= 0 {
			return nil
		}
		timer := time.NewTimer(r.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce searches each start and stores the re-verified chains. It returns
// the number of opportunities reported.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	var slot uint64
	if r.slots != nil {
		s, err := r.slots.Slot(ctx)
		if err != nil {
			r.logger.Warn("get slot failed", zap.Error(err))
		} else {
			slot = s
		}
	}

	total := 0
	for _, start := range r.cfg.Starts {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		chains, snapshot, err := r.searcher.SearchSnapshot(ctx, start.Asset, start.Amount)
		if err != nil {
			return total, fmt.Errorf("search from %s: %w", start.Asset, err)
		}

		foundAt := r.now()
		records := make([]model.Opportunity, 0, len(chains))
		best := 0.0
		for _, chain := range chains {
			if !r.verify(ctx, snapshot, chain) {
				continue
			}
			summary := report.Describe(chain, nil)
			report.Log(r.logger, summary)
			records = append(records, summary.Opportunity(slot, foundAt))
			if bps := summary.ProfitBps.InexactFloat64(); bps > best {
				best = bps
			}
		}

		r.metrics.Report(start.Asset.String(), len(records), best)
		r.logger.Info("search complete",
			zap.String("start", start.Asset.String()),
			zap.Uint64("amount", start.Amount),
			zap.Int("chains", len(chains)),
			zap.Int("reported", len(records)),
			zap.Uint64("slot", slot),
		)

		if r.storage != nil && len(records) > 0 {
			if err := r.storage.PutOpportunityBatch(ctx, records); err != nil {
				return total, fmt.Errorf("store opportunities: %w", err)
			}
		}
		total += len(records)
	}
	return total, nil
}

func (r *Runner) verify(ctx context.Context, snapshot *arb.Snapshot, chain arb.Chain) bool {
	replayed, err := arb.Replay(ctx, snapshot, chain)
	if err != nil {
		r.logger.Warn("replay failed", zap.Error(err))
		return false
	}
	if replayed.FinalAmount != chain.FinalAmount {
		r.logger.Warn("replay mismatch",
			zap.Uint64("found", chain.FinalAmount),
			zap.Uint64("replayed", replayed.FinalAmount),
		)
		return false
	}
	return true
}
