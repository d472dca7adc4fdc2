package arb

import (
	"context"
	"fmt"

	"arbScope/internal/dex"
)

// Replay re-quotes c hop by hop from its StartAmount against accounts and
// returns the recomputed chain. Against the snapshot the search used, the
// result equals c.
func Replay(ctx context.Context, accounts dex.AccountSource, c Chain) (Chain, error) {
	if len(c.Hops) == 0 {
		return Chain{}, fmt.Errorf("replay: chain has no hops")
	}
	if !c.Hops[0].AssetIn.Equals(c.StartAsset) {
		return Chain{}, fmt.Errorf("replay: first hop sells %s, chain starts at %s", c.Hops[0].AssetIn, c.StartAsset)
	}

	qc := dex.QuoteContext{Context: ctx, Accounts: accounts}
	out := Chain{
		StartAsset:  c.StartAsset,
		StartAmount: c.StartAmount,
		Hops:        make([]Hop, 0, len(c.Hops)),
	}

	asset, amount := c.StartAsset, c.StartAmount
	for i, hop := range c.Hops {
		if !hop.AssetIn.Equals(asset) {
			return Chain{}, fmt.Errorf("replay: hop %d sells %s, previous hop bought %s", i, hop.AssetIn, asset)
		}
		assetOut, ok := dex.Counterpart(hop.Pool, asset)
		if !ok {
			return Chain{}, fmt.Errorf("replay: hop %d: %w", i, dex.ErrInvalidAsset)
		}
		amountOut, err := hop.Pool.Quote(qc, amount, asset)
		if err != nil {
			return Chain{}, fmt.Errorf("replay: hop %d pool %s: %w", i, hop.Pool.ID(), err)
		}
		out.Hops = append(out.Hops, Hop{
			Pool:      hop.Pool,
			AssetIn:   asset,
			AssetOut:  assetOut,
			AmountIn:  amount,
			AmountOut: amountOut,
		})
		asset, amount = assetOut, amountOut
	}
	if !asset.Equals(c.StartAsset) {
		return Chain{}, fmt.Errorf("replay: chain ends at %s, not %s", asset, c.StartAsset)
	}
	out.FinalAmount = amount
	return out, nil
}
