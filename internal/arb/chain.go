package arb

import (
	"github.com/gagliardetto/solana-go"

	"arbScope/internal/dex"
)

// Hop is one swap of a chain.
type Hop struct {
	Pool      dex.Pool
	AssetIn   solana.PublicKey
	AssetOut  solana.PublicKey
	AmountIn  uint64
	AmountOut uint64
}

// Chain is a closed swap path that starts and ends at StartAsset.
type Chain struct {
	StartAsset  solana.PublicKey
	StartAmount uint64
	Hops        []Hop
	FinalAmount uint64
}

func (c Chain) Len() int {
	return len(c.Hops)
}

// Pools returns the pools of the chain in swap order.
func (c Chain) Pools() []dex.Pool {
	out := make([]dex.Pool, 0, len(c.Hops))
	for _, hop := range c.Hops {
		out = append(out, hop.Pool)
	}
	return out
}

func (c Chain) PoolIDs() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(c.Hops))
	for _, hop := range c.Hops {
		out = append(out, hop.Pool.ID())
	}
	return out
}

// Profit returns FinalAmount - StartAmount, or zero when the chain lost.
func (c Chain) Profit() uint64 {
	if c.FinalAmount <= c.StartAmount {
		return 0
	}
	return c.FinalAmount - c.StartAmount
}
