package dex

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Raydium CLMM PoolState layout, offsets include the 8-byte discriminator.
const (
	raydiumCLMMLayoutSize = 1544

	clmmAmmConfigOffset    = 9
	clmmMint0Offset        = 73
	clmmMint1Offset        = 105
	clmmVault0Offset       = 137
	clmmVault1Offset       = 169
	clmmDecimals0Offset    = 233
	clmmDecimals1Offset    = 234
	clmmTickSpacingOffset  = 235
	clmmLiquidityOffset    = 237
	clmmSqrtPriceX64Offset = 253
	clmmTickCurrentOffset  = 269
)

// AmmConfig trade_fee_rate, stored in hundredths of a basis point.
const (
	clmmTradeFeeRateOffset = 47
	clmmConfigMinLen       = clmmTradeFeeRateOffset + 4
	clmmFallbackFeeBps     = 25
)

// RaydiumCLMM is a concentrated-liquidity pool quoted at the current tick only.
// Tick crossing is ignored, so quotes hold for swaps small relative to
// in-range liquidity.
type RaydiumCLMM struct {
	address      solana.PublicKey
	ammConfig    solana.PublicKey
	mint0        solana.PublicKey
	mint1        solana.PublicKey
	vault0       solana.PublicKey
	vault1       solana.PublicKey
	decimals0    uint8
	decimals1    uint8
	tickSpacing  uint16
	liquidity    *uint256.Int
	sqrtPriceX64 *uint256.Int
	tickCurrent  int32
	feeBps       uint16
}

// CLMMState holds the pricing snapshot of a CLMM pool.
type CLMMState struct {
	AmmConfig    solana.PublicKey
	Mint0        solana.PublicKey
	Mint1        solana.PublicKey
	Vault0       solana.PublicKey
	Vault1       solana.PublicKey
	Decimals0    uint8
	Decimals1    uint8
	TickSpacing  uint16
	Liquidity    *uint256.Int
	SqrtPriceX64 *uint256.Int
	TickCurrent  int32
	FeeBps       uint16
}

// NewRaydiumCLMM builds pool state directly, without an account.
func NewRaydiumCLMM(address solana.PublicKey, state CLMMState) (*RaydiumCLMM, error) {
	if state.FeeBps > bpsDenominator {
		return nil, fmt.Errorf("fee %d bps exceeds 100%%", state.FeeBps)
	}
	liquidity := new(uint256.Int)
	if state.Liquidity != nil {
		liquidity.Set(state.Liquidity)
	}
	sqrtPrice := new(uint256.Int)
	if state.SqrtPriceX64 != nil {
		sqrtPrice.Set(state.SqrtPriceX64)
	}
	return &RaydiumCLMM{
		address:      address,
		ammConfig:    state.AmmConfig,
		mint0:        state.Mint0,
		mint1:        state.Mint1,
		vault0:       state.Vault0,
		vault1:       state.Vault1,
		decimals0:    state.Decimals0,
		decimals1:    state.Decimals1,
		tickSpacing:  state.TickSpacing,
		liquidity:    liquidity,
		sqrtPriceX64: sqrtPrice,
		tickCurrent:  state.TickCurrent,
		feeBps:       state.FeeBps,
	}, nil
}

func (p *RaydiumCLMM) ID() solana.PublicKey { return p.address }
func (p *RaydiumCLMM) Protocol() Protocol { return ProtocolRaydiumCLMM }
func (p *RaydiumCLMM) AssetA() solana.PublicKey { return p.mint0 }
func (p *RaydiumCLMM) AssetB() solana.PublicKey { return p.mint1 }
func (p *RaydiumCLMM) Decimals() (uint8, uint8) { return p.decimals0, p.decimals1 }
func (p *RaydiumCLMM) FeeBps() uint16 { return p.feeBps }
func (p *RaydiumCLMM) TickCurrent() int32 { return p.tickCurrent }
func (p *RaydiumCLMM) TickSpacing() uint16 { return p.tickSpacing }
func (p *RaydiumCLMM) AmmConfig() solana.PublicKey { return p.ammConfig }

func (p *RaydiumCLMM) Vaults() (solana.PublicKey, solana.PublicKey) {
	return p.vault0, p.vault1
}

func (p *RaydiumCLMM) Liquidity() *uint256.Int {
	return new(uint256.Int).Set(p.liquidity)
}

func (p *RaydiumCLMM) SqrtPriceX64() *uint256.Int {
	return new(uint256.Int).Set(p.sqrtPriceX64)
}

// Price returns the human price of mint0 in mint1, (sqrt/2^64)^2 * 10^(d0-d1).
func (p *RaydiumCLMM) Price() decimal.Decimal {
	priceX128 := new(uint256.Int).Mul(p.sqrtPriceX64, p.sqrtPriceX64)
	num := decimal.NewFromBigInt(priceX128.ToBig(), 0)
	den := decimal.NewFromBigInt(q128.ToBig(), 0)
	return num.DivRound(den, 18).Shift(int32(p.decimals0) - int32(p.decimals1))
}

// Quote applies the fee and converts at the current price. The decimal
// scaling of the human price and of the raw amounts cancel, leaving
// out = in*sqrt^2/2^128 for mint0 -> mint1 and in*2^128/sqrt^2 the other way.
func (p *RaydiumCLMM) Quote(qc QuoteContext, amountIn uint64, assetIn solana.PublicKey) (uint64, error) {
	aToB, err := direction(p, assetIn)
	if err != nil {
		return 0, err
	}
	if amountIn == 0 {
		return 0, nil
	}
	if p.liquidity.IsZero() {
		return 0, fmt.Errorf("pool %s: %w", p.address, ErrNoLiquidity)
	}
	if p.sqrtPriceX64.IsZero() {
		return 0, fmt.Errorf("pool %s: %w", p.address, ErrInvalidPrice)
	}

	in := afterFeeBps(amountIn, p.feeBps)
	priceX128 := new(uint256.Int).Mul(p.sqrtPriceX64, p.sqrtPriceX64)

	var out *uint256.Int
	if aToB {
		out, err = mulDiv(in, priceX128, q128)
	} else {
		out, err = mulDiv(in, q128, priceX128)
	}
	if err != nil {
		return 0, fmt.Errorf("pool %s: %w", p.address, err)
	}
	if !out.IsUint64() {
		return 0, fmt.Errorf("pool %s: %w", p.address, ErrOverflow)
	}
	if out.IsZero() {
		return 0, fmt.Errorf("pool %s: %w", p.address, ErrNonPositiveOutput)
	}
	return out.Uint64(), nil
}

// CLMMFeeBps converts an AmmConfig account's trade fee rate to basis points.
// Accounts too short to hold the field fall back to 25 bps.
func CLMMFeeBps(config []byte) uint16 {
	if len(config) < clmmConfigMinLen {
		return clmmFallbackFeeBps
	}
	rate := readU32(config, clmmTradeFeeRateOffset) / 100
	if rate > bpsDenominator {
		return bpsDenominator
	}
	return uint16(rate)
}

// RaydiumCLMMDecoder decodes Raydium CLMM PoolState accounts.
type RaydiumCLMMDecoder struct{}

func (RaydiumCLMMDecoder) Protocol() Protocol { return ProtocolRaydiumCLMM }

func (d RaydiumCLMMDecoder) Decode(dc DecodeContext, address solana.PublicKey, data []byte) (Pool, error) {
	if err := requireLen(data, raydiumCLMMLayoutSize); err != nil {
		return nil, decodeErr(ProtocolRaydiumCLMM, address, err)
	}

	state := CLMMState{
		AmmConfig:    readPubkey(data, clmmAmmConfigOffset),
		Mint0:        readPubkey(data, clmmMint0Offset),
		Mint1:        readPubkey(data, clmmMint1Offset),
		Vault0:       readPubkey(data, clmmVault0Offset),
		Vault1:       readPubkey(data, clmmVault1Offset),
		Decimals0:    readU8(data, clmmDecimals0Offset),
		Decimals1:    readU8(data, clmmDecimals1Offset),
		TickSpacing:  readU16(data, clmmTickSpacingOffset),
		Liquidity:    readU128(data, clmmLiquidityOffset),
		SqrtPriceX64: readU128(data, clmmSqrtPriceX64Offset),
		TickCurrent:  readI32(data, clmmTickCurrentOffset),
	}

	if dc.Accounts == nil {
		return nil, decodeErr(ProtocolRaydiumCLMM, address, fmt.Errorf("account source is nil"))
	}
	config, err := dc.Accounts.FetchAccount(dc.ctx(), state.AmmConfig)
	if err != nil {
		return nil, decodeErr(ProtocolRaydiumCLMM, address, fmt.Errorf("fetch amm config %s: %w", state.AmmConfig, err))
	}
	state.FeeBps = CLMMFeeBps(config)

	pool, err := NewRaydiumCLMM(address, state)
	if err != nil {
		return nil, decodeErr(ProtocolRaydiumCLMM, address, err)
	}

	dc.logger().Debug("parsed raydium clmm pool",
		zap.String("pool", address.String()),
		zap.String("mint_a", state.Mint0.String()),
		zap.String("mint_b", state.Mint1.String()),
		zap.String("amm_config", state.AmmConfig.String()),
		zap.String("liquidity", state.Liquidity.Dec()),
		zap.String("sqrt_price_x64", state.SqrtPriceX64.Dec()),
		zap.Int32("tick_current", state.TickCurrent),
		zap.Uint16("tick_spacing", state.TickSpacing),
		zap.Uint16("fee_bps", state.FeeBps),
	)
	return pool, nil
}
