package arb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"arbScope/internal/dex"
	"arbScope/internal/metrics"
	"arbScope/internal/registry"
)

// MaxHops is the longest chain the search explores.
const MaxHops = 4

// ErrInvalidRegistry is returned when the registry is nil or fails Validate.
var ErrInvalidRegistry = errors.New("invalid pool registry")

// Searcher runs bounded depth-first searches for profitable closed chains.
type Searcher struct {
	registry *registry.Registry
	maxHops  int
	accounts dex.AccountSource
	observer Observer
	metrics  *metrics.SearchMetrics
	logger   *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithMaxHops bounds chain length. Values outside [1, MaxHops] use MaxHops.
func WithMaxHops(n int) Option {
	return func(s *Searcher) {
		if n < 1 || n > MaxHops {
			n = MaxHops
		}
		s.maxHops = n
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Searcher) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithAccounts sets the source behind each search's snapshot.
func WithAccounts(accounts dex.AccountSource) Option {
	return func(s *Searcher) { s.accounts = accounts }
}

// WithMetrics records search duration and quoted edges. Skips and accepted
// chains are counted by MetricsObserver.
func WithMetrics(m *metrics.SearchMetrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSearcher(reg *registry.Registry, opts ...Option) *Searcher {
	s := &Searcher{
		registry: reg,
		maxHops:  MaxHops,
		observer: NopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxHops returns the effective hop bound.
func (s *Searcher) MaxHops() int {
	return s.maxHops
}

// Search returns every profitable chain from startAsset back to itself, in
// discovery order. Quote failures skip the edge; the only error is an
// invalid registry.
func (s *Searcher) Search(ctx context.Context, startAsset solana.PublicKey, startAmount uint64) ([]Chain, error) {
	chains, _, err := s.SearchSnapshot(ctx, startAsset, startAmount)
	return chains, err
}

// SearchSnapshot is Search that also returns the snapshot the quotes read,
// for replaying the result against the same account state.
func (s *Searcher) SearchSnapshot(ctx context.Context, startAsset solana.PublicKey, startAmount uint64) ([]Chain, *Snapshot, error) {
	if s.registry == nil {
		return nil, nil, fmt.Errorf("%w: registry is nil", ErrInvalidRegistry)
	}
	if err := s.registry.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	snapshot := NewSnapshot(s.accounts)
	if err := snapshot.Prefetch(ctx, liveAccounts(s.registry.All())); err != nil {
		s.logger.Debug("snapshot prefetch failed", zap.Error(err))
	}

	w := &walker{
		qc:          dex.QuoteContext{Context: ctx, Accounts: snapshot},
		registry:    s.registry,
		maxHops:     s.maxHops,
		observer:    s.observer,
		metrics:     s.metrics,
		start:       startAsset,
		startAmount: startAmount,
		used:        make(map[solana.PublicKey]struct{}, s.maxHops),
		path:        make([]Hop, 0, s.maxHops),
		chains:      []Chain{},
	}
	w.visit(startAsset, startAmount, 0)

	s.metrics.ObserveSearch(time.Since(started))
	s.logger.Debug("search finished",
		zap.String("start", startAsset.String()),
		zap.Uint64("amount", startAmount),
		zap.Int("max_hops", s.maxHops),
		zap.Int("edges", w.edges),
		zap.Int("chains", len(w.chains)),
		zap.Int("accounts", snapshot.Len()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return w.chains, snapshot, nil
}

func liveAccounts(pools []dex.Pool) []solana.PublicKey {
	var out []solana.PublicKey
	for _, pool := range pools {
		if live, ok := pool.(dex.LiveAccountsProvider); ok {
			out = append(out, live.LiveAccounts()...)
		}
	}
	return out
}

type walker struct {
	qc       dex.QuoteContext
	registry *registry.Registry
	maxHops  int
	observer Observer
	metrics  *metrics.SearchMetrics

	start       solana.PublicKey
	startAmount uint64

	path   []Hop
	used   map[solana.PublicKey]struct{}
	chains []Chain
	edges  int
}

func (w *walker) visit(asset solana.PublicKey, amount uint64, depth int) {
	if depth >= w.maxHops {
		return
	}

	for _, pool := range w.registry.Pools(asset) {
		if _, used := w.used[pool.ID()]; used {
			continue
		}
		assetOut, ok := dex.Counterpart(pool, asset)
		if !ok {
			w.skip(EdgeEvent{Pool: pool, AssetIn: asset, AmountIn: amount, Depth: depth, Reason: ReasonAssetMismatch})
			continue
		}

		w.edges++
		amountOut, err := pool.Quote(w.qc, amount, asset)
		if err != nil || amountOut == 0 {
			w.skip(EdgeEvent{Pool: pool, AssetIn: asset, AmountIn: amount, Depth: depth, Reason: SkipReason(err), Err: err})
			continue
		}
		w.metrics.Edge("quoted")

		w.path = append(w.path, Hop{
			Pool:      pool,
			AssetIn:   asset,
			AssetOut:  assetOut,
			AmountIn:  amount,
			AmountOut: amountOut,
		})
		w.used[pool.ID()] = struct{}{}

		if assetOut.Equals(w.start) {
			if amountOut > w.startAmount {
				w.accept(amountOut)
			}
		} else {
			w.visit(assetOut, amountOut, depth+1)
		}

		w.path = w.path[:len(w.path)-1]
		delete(w.used, pool.ID())
	}
}

func (w *walker) skip(ev EdgeEvent) {
	w.observer.EdgeSkipped(ev)
}

func (w *walker) accept(finalAmount uint64) {
	hops := make([]Hop, len(w.path))
	copy(hops, w.path)
	chain := Chain{
		StartAsset:  w.start,
		StartAmount: w.startAmount,
		Hops:        hops,
		FinalAmount: finalAmount,
	}
	w.chains = append(w.chains, chain)
	w.observer.ChainAccepted(chain)
}
