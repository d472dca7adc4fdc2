package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Protocol tags a pool's AMM design.
type Protocol string

const (
	ProtocolRaydiumAMM  Protocol = "raydium_amm"
	ProtocolRaydiumCLMM Protocol = "raydium_clmm"
	ProtocolMeteoraDLMM Protocol = "meteora_dlmm"
)

// Protocols lists the supported protocol tags in configuration order.
var Protocols = []Protocol{ProtocolRaydiumAMM, ProtocolRaydiumCLMM, ProtocolMeteoraDLMM}

// ParseProtocol converts a configuration tag into a Protocol.
func ParseProtocol(input string) (Protocol, error) {
	tag := Protocol(strings.ToLower(strings.TrimSpace(input)))
	for _, p := range Protocols {
		if p == tag {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown protocol: %q", input)
}

// AccountSource returns raw account data by address.
type AccountSource interface {
	FetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

// BatchAccountSource fetches several accounts in one round trip.
// Missing accounts are returned as nil entries.
type BatchAccountSource interface {
	AccountSource
	FetchAccounts(ctx context.Context, addresses []solana.PublicKey) ([][]byte, error)
}

// QuoteContext carries what a quote needs beyond decoded pool state.
type QuoteContext struct {
	Context  context.Context
	Accounts AccountSource
}

func (qc QuoteContext) ctx() context.Context {
	if qc.Context == nil {
		return context.Background()
	}
	return qc.Context
}

// Pool is the capability set shared by every protocol.
type Pool interface {
	ID() solana.PublicKey
	Protocol() Protocol
	AssetA() solana.PublicKey
	AssetB() solana.PublicKey
	// Quote returns the output amount for amountIn of assetIn, in minimal units.
	Quote(qc QuoteContext, amountIn uint64, assetIn solana.PublicKey) (uint64, error)
}

// DecimalsProvider is implemented by pools that know both mint decimals.
type DecimalsProvider interface {
	Decimals() (a, b uint8)
}

// LiveAccountsProvider is implemented by pools that read accounts at quote time.
type LiveAccountsProvider interface {
	LiveAccounts() []solana.PublicKey
}

// Counterpart returns the asset on the other side of asset in pool p.
func Counterpart(p Pool, asset solana.PublicKey) (solana.PublicKey, bool) {
	switch {
	case p.AssetA().Equals(asset):
		return p.AssetB(), true
	case p.AssetB().Equals(asset):
		return p.AssetA(), true
	default:
		return solana.PublicKey{}, false
	}
}

// Trades reports whether p has asset on either side.
func Trades(p Pool, asset solana.PublicKey) bool {
	_, ok := Counterpart(p, asset)
	return ok
}

func direction(p Pool, assetIn solana.PublicKey) (aToB bool, err error) {
	switch {
	case p.AssetA().Equals(assetIn):
		return true, nil
	case p.AssetB().Equals(assetIn):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s not in pool %s", ErrInvalidAsset, assetIn, p.ID())
	}
}
