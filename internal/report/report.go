package report

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbScope/internal/arb"
	"arbScope/internal/dex"
	"arbScope/internal/model"
)

// DecimalsLookup returns the mint decimals of an asset, if known.
type DecimalsLookup func(asset solana.PublicKey) (uint8, bool)

// HopSummary is one hop of a Summary.
type HopSummary struct {
	Pool      solana.PublicKey
	Protocol  dex.Protocol
	AssetIn   solana.PublicKey
	AssetOut  solana.PublicKey
	AmountIn  uint64
	AmountOut uint64
	// UI amounts are zero when the asset's decimals are unknown.
	AmountInUI  decimal.Decimal
	AmountOutUI decimal.Decimal
	HasUI       bool
}

// Summary is the reporting view of an accepted chain.
type Summary struct {
	StartAsset  solana.PublicKey
	StartAmount uint64
	FinalAmount uint64
	Profit      uint64
	ProfitBps   decimal.Decimal
	ProfitUI    decimal.Decimal
	HasUI       bool
	Pools       []solana.PublicKey
	Hops        []HopSummary
	Fingerprint uint64
}

// ChainDecimals builds a lookup from the pools of c that report their mint
// decimals.
func ChainDecimals(c arb.Chain) DecimalsLookup {
	known := make(map[solana.PublicKey]uint8)
	for _, hop := range c.Hops {
		provider, ok := hop.Pool.(dex.DecimalsProvider)
		if !ok {
			continue
		}
		a, b := provider.Decimals()
		known[hop.Pool.AssetA()] = a
		known[hop.Pool.AssetB()] = b
	}
	return func(asset solana.PublicKey) (uint8, bool) {
		d, ok := known[asset]
		return d, ok
	}
}

// Describe summarizes c. A nil lookup falls back to ChainDecimals.
func Describe(c arb.Chain, lookup DecimalsLookup) Summary {
	if lookup == nil {
		lookup = ChainDecimals(c)
	}

	s := Summary{
		StartAsset:  c.StartAsset,
		StartAmount: c.StartAmount,
		FinalAmount: c.FinalAmount,
		Profit:      c.Profit(),
		ProfitBps:   ProfitBps(c.StartAmount, c.FinalAmount),
		Pools:       c.PoolIDs(),
		Hops:        make([]HopSummary, 0, len(c.Hops)),
		Fingerprint: Fingerprint(c.StartAsset, c.PoolIDs()),
	}
	if d, ok := lookup(c.StartAsset); ok {
		s.ProfitUI = UIAmount(s.Profit, d)
		s.HasUI = true
	}

	for _, hop := range c.Hops {
		h := HopSummary{
			Pool:      hop.Pool.ID(),
			Protocol:  hop.Pool.Protocol(),
			AssetIn:   hop.AssetIn,
			AssetOut:  hop.AssetOut,
			AmountIn:  hop.AmountIn,
			AmountOut: hop.AmountOut,
		}
		dIn, okIn := lookup(hop.AssetIn)
		dOut, okOut := lookup(hop.AssetOut)
		if okIn && okOut {
			h.AmountInUI = UIAmount(hop.AmountIn, dIn)
			h.AmountOutUI = UIAmount(hop.AmountOut, dOut)
			h.HasUI = true
		}
		s.Hops = append(s.Hops, h)
	}
	return s
}

// UIAmount converts a minimal-unit amount to a human amount.
func UIAmount(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// ProfitBps returns (final - start) / start in basis points, rounded to two
// places. Losses are negative.
func ProfitBps(start, final uint64) decimal.Decimal {
	if start == 0 {
		return decimal.Zero
	}
	s := decimal.NewFromBigInt(new(big.Int).SetUint64(start), 0)
	f := decimal.NewFromBigInt(new(big.Int).SetUint64(final), 0)
	return f.Sub(s).Mul(decimal.NewFromInt(10_000)).DivRound(s, 2)
}

// Fingerprint hashes the start asset and the ordered pool ids. Chains with
// the same route share a fingerprint across searches.
func Fingerprint(start solana.PublicKey, pools []solana.PublicKey) uint64 {
	h := xxhash.New()
	_, _ = h.Write(start[:])
	for _, pool := range pools {
		_, _ = h.Write(pool[:])
	}
	return h.Sum64()
}

// Opportunity converts s into a storage record.
func (s Summary) Opportunity(slot uint64, foundAt time.Time) model.Opportunity {
	out := model.Opportunity{
		Fingerprint: fmt.Sprintf("%016x", s.Fingerprint),
		StartAsset:  s.StartAsset.String(),
		StartAmount: strconv.FormatUint(s.StartAmount, 10),
		FinalAmount: strconv.FormatUint(s.FinalAmount, 10),
		Profit:      strconv.FormatUint(s.Profit, 10),
		ProfitBps:   s.ProfitBps.StringFixed(2),
		Hops:        make([]model.OpportunityHop, 0, len(s.Hops)),
		Slot:        slot,
		FoundAt:     foundAt.UTC(),
	}
	if s.HasUI {
		out.ProfitUI = s.ProfitUI.String()
	}
	for i, hop := range s.Hops {
		rec := model.OpportunityHop{
			Index:     i,
			Pool:      hop.Pool.String(),
			Protocol:  string(hop.Protocol),
			AssetIn:   hop.AssetIn.String(),
			AssetOut:  hop.AssetOut.String(),
			AmountIn:  strconv.FormatUint(hop.AmountIn, 10),
			AmountOut: strconv.FormatUint(hop.AmountOut, 10),
		}
		if hop.HasUI {
			rec.AmountInUI = hop.AmountInUI.String()
			rec.AmountOutUI = hop.AmountOutUI.String()
		}
		out.Hops = append(out.Hops, rec)
	}
	return out
}

// Log writes one structured line per summary and one debug line per hop.
func Log(logger *zap.Logger, s Summary) {
	if logger == nil {
		return
	}
	pools := make([]string, 0, len(s.Pools))
	for _, pool := range s.Pools {
		pools = append(pools, pool.String())
	}
	fields := []zap.Field{
		zap.String("fingerprint", fmt.Sprintf("%016x", s.Fingerprint)),
		zap.String("start", s.StartAsset.String()),
		zap.Uint64("amount_in", s.StartAmount),
		zap.Uint64("amount_out", s.FinalAmount),
		zap.Uint64("profit", s.Profit),
		zap.String("profit_bps", s.ProfitBps.StringFixed(2)),
		zap.Int("hops", len(s.Hops)),
		zap.Strings("pools", pools),
	}
	if s.HasUI {
		fields = append(fields, zap.String("profit_ui", s.ProfitUI.String()))
	}
	logger.Info("arbitrage opportunity", fields...)

	for i, hop := range s.Hops {
		hopFields := []zap.Field{
			zap.Int("hop", i),
			zap.String("pool", hop.Pool.String()),
			zap.String("protocol", string(hop.Protocol)),
			zap.String("asset_in", hop.AssetIn.String()),
			zap.String("asset_out", hop.AssetOut.String()),
			zap.Uint64("amount_in", hop.AmountIn),
			zap.Uint64("amount_out", hop.AmountOut),
		}
		if hop.HasUI {
			hopFields = append(hopFields,
				zap.String("amount_in_ui", hop.AmountInUI.String()),
				zap.String("amount_out_ui", hop.AmountOutUI.String()),
			)
		}
		logger.Debug("arbitrage hop", hopFields...)
	}
}
