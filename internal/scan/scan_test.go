package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arbScope/internal/arb"
	"arbScope/internal/config"
	"arbScope/internal/dex"
	"arbScope/internal/dex/dextest"
	"arbScope/internal/metrics"
	"arbScope/internal/model"
	"arbScope/internal/registry"
)

const wsol = "So11111111111111111111111111111111111111112"

func TestParseStarts(t *testing.T) {
	starts, err := ParseStarts([]string{" " + wsol + "=1_000_000_000 ", ""})
	require.NoError(t, err)
	require.Len(t, starts, 1)
	assert.Equal(t, solana.MustPublicKeyFromBase58(wsol), starts[0].Asset)
	assert.Equal(t, uint64(1_000_000_000), starts[0].Amount)

	for _, bad := range []string{
		wsol,
		"not-a-key=1",
		wsol + "=abc",
		wsol + "=0",
		wsol + "=-5",
	} {
		_, err := ParseStarts([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParsePoolSpecs(t *testing.T) {
	usdc := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	amm := dextest.Key(10).String()
	clmm := dextest.Key(11).String()
	dlmm := dextest.Key(12).String()

	specs, err := ParsePoolSpecs([]config.PoolGroup{
		{Mint: wsol, MeteoraDLMM: []string{dlmm}, RaydiumAMM: []string{amm}, RaydiumCLMM: []string{clmm}},
		{Asset: usdc, RaydiumAMM: []string{" " + amm + " ", ""}},
	})
	require.NoError(t, err)
	require.Len(t, specs, 4)

	assert.Equal(t, dex.ProtocolRaydiumAMM, specs[0].Protocol)
	assert.Equal(t, dex.ProtocolRaydiumCLMM, specs[1].Protocol)
	assert.Equal(t, dex.ProtocolMeteoraDLMM, specs[2].Protocol)
	assert.Equal(t, solana.MustPublicKeyFromBase58(wsol), specs[0].Asset)
	assert.Equal(t, dextest.Key(12), specs[2].Address)
	assert.Equal(t, solana.MustPublicKeyFromBase58(usdc), specs[3].Asset)
	assert.Equal(t, dextest.Key(10), specs[3].Address)

	_, err = ParsePoolSpecs([]config.PoolGroup{{Asset: "bad"}})
	assert.Error(t, err)
	_, err = ParsePoolSpecs([]config.PoolGroup{{Asset: wsol, RaydiumCLMM: []string{"bad"}}})
	assert.ErrorContains(t, err, "raydium_clmm")
}

type memStorage struct {
	mu      sync.Mutex
	batches [][]model.Opportunity
	err     error
}

func (m *memStorage) PutOpportunityBatch(_ context.Context, opportunities []model.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, opportunities)
	return m.err
}

func sinkBatches(m *memStorage) [][]model.Opportunity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.Opportunity(nil), m.batches...)
}

type fixedSlot uint64

func (s fixedSlot) Slot(context.Context) (uint64, error) { return uint64(s), nil }

var (
	assetA = dextest.Key(1)
	assetB = dextest.Key(2)
	assetC = dextest.Key(3)
)

func newAMM(t *testing.T, accounts *dextest.Accounts, id byte, base, quote solana.PublicKey, reserveBase, reserveQuote uint64) *dex.RaydiumAMM {
	t.Helper()
	baseVault, quoteVault := dextest.Key(id+100), dextest.Key(id+101)
	accounts.Set(baseVault, dextest.TokenAccount(reserveBase))
	accounts.Set(quoteVault, dextest.TokenAccount(reserveQuote))
	amm, err := dex.NewRaydiumAMM(dextest.Key(id), base, quote, baseVault, quoteVault, 6, 6,
		dex.AMMFees{SwapFeeNumerator: 25, SwapFeeDenominator: 10_000})
	require.NoError(t, err)
	return amm
}

func ringSearcher(t *testing.T) *arb.Searcher {
	t.Helper()
	accounts := dextest.NewAccounts()
	reg := registry.FromPools(
		newAMM(t, accounts, 10, assetA, assetB, 1_000_000_000, 2_000_000_000),
		newAMM(t, accounts, 20, assetB, assetC, 1_000_000_000, 1_000_000_000),
		newAMM(t, accounts, 30, assetC, assetA, 1_000_000_000, 600_000_000),
	)
	return arb.NewSearcher(reg, arb.WithAccounts(accounts))
}

func TestRunnerRunOnce(t *testing.T) {
	sink := &memStorage{}
	reg := prometheus.NewRegistry()
	oppMetrics := metrics.NewOpportunityMetrics(reg)

	runner := NewRunner(RunConfig{Starts: []Start{
		{Asset: assetA, Amount: 1_000_000},
		{Asset: dextest.Key(9), Amount: 1_000_000},
	}}, ringSearcher(t), sink, fixedSlot(77), oppMetrics, zaptest.NewLogger(t))
	runner.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	found, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, found)

	batches := sinkBatches(sink)
	require.Len(t, batches, 1)
	rec := batches[0][0]
	assert.Equal(t, assetA.String(), rec.StartAsset)
	assert.Equal(t, uint64(77), rec.Slot)
	assert.Len(t, rec.Hops, 3)
	assert.Equal(t, int64(1_700_000_000), rec.FoundAt.Unix())

	assert.Equal(t, float64(1), testutil.ToFloat64(oppMetrics.Found.WithLabelValues(assetA.String())))
	assert.Greater(t, testutil.ToFloat64(oppMetrics.BestProfit.WithLabelValues(assetA.String())), 1000.0)
}

func TestRunnerStorageError(t *testing.T) {
	boom := errors.New("disk full")
	runner := NewRunner(RunConfig{Starts: []Start{{Asset: assetA, Amount: 1_000_000}}},
		ringSearcher(t), &memStorage{err: boom}, nil, nil, nil)

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunnerInvalidRegistry(t *testing.T) {
	runner := NewRunner(RunConfig{Starts: []Start{{Asset: assetA, Amount: 1}}}, arb.NewSearcher(nil), nil, nil, nil, nil)
	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, arb.ErrInvalidRegistry)
}

func TestRunnerRequiresStarts(t *testing.T) {
	assert.Error(t, NewRunner(RunConfig{}, ringSearcher(t), nil, nil, nil, nil).Run(context.Background()))
	assert.Error(t, NewRunner(RunConfig{Starts: []Start{{Asset: assetA, Amount: 1}}}, nil, nil, nil, nil, nil).Run(context.Background()))
}

func TestRunnerIntervalStopsOnCancel(t *testing.T) {
	sink := &memStorage{}
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(RunConfig{
		Starts:   []Start{{Asset: assetA, Amount: 1_000_000}},
		Interval: time.Millisecond,
	}, ringSearcher(t), sink, nil, nil, nil)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sinkBatches(sink)) >= 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
