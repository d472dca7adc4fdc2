package report

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"arbScope/internal/dex"
	"arbScope/internal/model"
)

// PoolOptions controls what PoolRecord reads beyond the decoded state.
type PoolOptions struct {
	// Accounts is used to read AMM vault reserves. Nil skips reserves and price.
	Accounts  dex.AccountSource
	BinArrays bool
	At        time.Time
}

// PoolRecord describes a decoded pool listed under asset.
func PoolRecord(ctx context.Context, pool dex.Pool, asset solana.PublicKey, opts PoolOptions) (model.PoolRecord, error) {
	at := opts.At
	if at.IsZero() {
		at = time.Now()
	}
	rec := model.PoolRecord{
		Address:     pool.ID().String(),
		Protocol:    string(pool.Protocol()),
		Asset:       asset.String(),
		AssetA:      pool.AssetA().String(),
		AssetB:      pool.AssetB().String(),
		InspectedAt: at.UTC().Format(time.RFC3339),
	}
	if provider, ok := pool.(dex.DecimalsProvider); ok {
		rec.DecimalsA, rec.DecimalsB = provider.Decimals()
	}

	switch p := pool.(type) {
	case *dex.RaydiumAMM:
		rec.FeeBps = p.FeeBps()
		vaultA, vaultB := p.Vaults()
		rec.VaultA, rec.VaultB = vaultA.String(), vaultB.String()
		if opts.Accounts == nil {
			break
		}
		base, quote, err := p.Reserves(dex.QuoteContext{Context: ctx, Accounts: opts.Accounts})
		if err != nil {
			return rec, fmt.Errorf("pool %s reserves: %w", p.ID(), err)
		}
		rec.ReserveA = strconv.FormatUint(base, 10)
		rec.ReserveB = strconv.FormatUint(quote, 10)
		if base > 0 {
			rec.Price = reservePrice(base, quote, rec.DecimalsA, rec.DecimalsB).String()
		}

	case *dex.RaydiumCLMM:
		rec.FeeBps = uint64(p.FeeBps())
		vaultA, vaultB := p.Vaults()
		rec.VaultA, rec.VaultB = vaultA.String(), vaultB.String()
		rec.AmmConfig = p.AmmConfig().String()
		rec.Liquidity = p.Liquidity().Dec()
		rec.SqrtPriceX64 = p.SqrtPriceX64().Dec()
		tick := p.TickCurrent()
		rec.TickCurrent = &tick
		rec.TickSpacing = p.TickSpacing()
		rec.Price = p.Price().String()

	case *dex.MeteoraDLMM:
		rec.FeeBps = uint64(p.FeeBps())
		reserveX, reserveY := p.Reserves()
		rec.VaultA, rec.VaultB = reserveX.String(), reserveY.String()
		rec.Oracle = p.Oracle().String()
		activeID := p.ActiveID()
		rec.ActiveID = &activeID
		rec.BinStep = p.BinStep()
		rec.BaseFactor = p.BaseFactor()
		if price, err := p.Price(); err == nil {
			rec.Price = price.Shift(int32(rec.DecimalsA) - int32(rec.DecimalsB)).String()
		}
		if opts.BinArrays {
			arrays, err := p.BinArrays()
			if err != nil {
				return rec, err
			}
			for _, addr := range arrays {
				rec.BinArrays = append(rec.BinArrays, addr.String())
			}
		}
	}
	return rec, nil
}

// reservePrice returns the UI price of one base unit in quote units.
func reservePrice(base, quote uint64, baseDecimals, quoteDecimals uint8) decimal.Decimal {
	b := decimal.NewFromBigInt(new(big.Int).SetUint64(base), -int32(baseDecimals))
	q := decimal.NewFromBigInt(new(big.Int).SetUint64(quote), -int32(quoteDecimals))
	return q.DivRound(b, 12)
}
