package dex

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Meteora DLMM LbPair layout, offsets include the 8-byte discriminator.
const (
	meteoraDLMMLayoutSize = 904

	dlmmBaseFactorOffset = 8
	dlmmActiveIDOffset   = 76
	dlmmBinStepOffset    = 80
	dlmmTokenXMintOffset = 88
	dlmmTokenYMintOffset = 120
	dlmmReserveXOffset   = 152
	dlmmReserveYOffset   = 184
	dlmmOracleOffset     = 552
)

const (
	binArraySeed = "bin_array"
	binsPerArray = 100
)

// MeteoraDLMMProgramID owns LbPair and bin array accounts.
var MeteoraDLMMProgramID = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9bdw9R7aH")

// MeteoraDLMM is a bin-stepped pool priced at its active bin.
type MeteoraDLMM struct {
	address    solana.PublicKey
	tokenXMint solana.PublicKey
	tokenYMint solana.PublicKey
	reserveX   solana.PublicKey
	reserveY   solana.PublicKey
	oracle     solana.PublicKey
	decimalsX  uint8
	decimalsY  uint8
	activeID   int32
	binStep    uint16
	baseFactor uint16
	feeBps     uint16
}

// DLMMState holds the pricing snapshot of a DLMM pool.
type DLMMState struct {
	TokenXMint solana.PublicKey
	TokenYMint solana.PublicKey
	ReserveX   solana.PublicKey
	ReserveY   solana.PublicKey
	Oracle     solana.PublicKey
	DecimalsX  uint8
	DecimalsY  uint8
	ActiveID   int32
	BinStep    uint16
	BaseFactor uint16
}

// DLMMBaseFeeBps returns the base fee, base_factor * bin_step / 10000 bps.
func DLMMBaseFeeBps(baseFactor, binStep uint16) uint16 {
	fee := uint32(baseFactor) * uint32(binStep) / bpsDenominator
	if fee > bpsDenominator {
		return bpsDenominator
	}
	return uint16(fee)
}

// NewMeteoraDLMM builds pool state directly, without an account.
func NewMeteoraDLMM(address solana.PublicKey, state DLMMState) *MeteoraDLMM {
	return &MeteoraDLMM{
		address:    address,
		tokenXMint: state.TokenXMint,
		tokenYMint: state.TokenYMint,
		reserveX:   state.ReserveX,
		reserveY:   state.ReserveY,
		oracle:     state.Oracle,
		decimalsX:  state.DecimalsX,
		decimalsY:  state.DecimalsY,
		activeID:   state.ActiveID,
		binStep:    state.BinStep,
		baseFactor: state.BaseFactor,
		feeBps:     DLMMBaseFeeBps(state.BaseFactor, state.BinStep),
	}
}

func (p *MeteoraDLMM) ID() solana.PublicKey { return p.address }
func (p *MeteoraDLMM) Protocol() Protocol { return ProtocolMeteoraDLMM }
func (p *MeteoraDLMM) AssetA() solana.PublicKey { return p.tokenXMint }
func (p *MeteoraDLMM) AssetB() solana.PublicKey { return p.tokenYMint }
func (p *MeteoraDLMM) Decimals() (uint8, uint8) { return p.decimalsX, p.decimalsY }
func (p *MeteoraDLMM) ActiveID() int32 { return p.activeID }
func (p *MeteoraDLMM) BinStep() uint16 { return p.binStep }
func (p *MeteoraDLMM) BaseFactor() uint16 { return p.baseFactor }
func (p *MeteoraDLMM) FeeBps() uint16 { return p.feeBps }
func (p *MeteoraDLMM) Oracle() solana.PublicKey { return p.oracle }

func (p *MeteoraDLMM) Reserves() (solana.PublicKey, solana.PublicKey) {
	return p.reserveX, p.reserveY
}

// Price returns (1 + bin_step/10000)^active_id, without decimal adjustment.
func (p *MeteoraDLMM) Price() (decimal.Decimal, error) {
	price, err := binPriceX64(p.binStep, p.activeID)
	if err != nil {
		return decimal.Zero, err
	}
	num := decimal.NewFromBigInt(price.ToBig(), 0)
	return num.DivRound(decimal.NewFromBigInt(q64.ToBig(), 0), 18), nil
}

// Quote converts at the active bin price: X -> Y multiplies by the price and
// by 10^(dy-dx), Y -> X divides by the price and multiplies by 10^(dx-dy).
func (p *MeteoraDLMM) Quote(qc QuoteContext, amountIn uint64, assetIn solana.PublicKey) (uint64, error) {
	xToY, err := direction(p, assetIn)
	if err != nil {
		return 0, err
	}
	if amountIn == 0 {
		return 0, nil
	}

	price, err := binPriceX64(p.binStep, p.activeID)
	if err != nil {
		return 0, fmt.Errorf("pool %s: %w", p.address, err)
	}
	if price.IsZero() {
		return 0, fmt.Errorf("pool %s: %w", p.address, ErrInvalidPrice)
	}

	in := afterFeeBps(amountIn, p.feeBps)

	var num, den *uint256.Int
	if xToY {
		num, den, err = scaleDecimals(price, new(uint256.Int).Set(q64), p.decimalsX, p.decimalsY)
	} else {
		num, den, err = scaleDecimals(new(uint256.Int).Set(q64), price, p.decimalsY, p.decimalsX)
	}
	if err != nil {
		return 0, fmt.Errorf("pool %s: %w", p.address, err)
	}

	out, err := mulDiv(in, num, den)
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

// BinArrayIndex maps a bin id to the index of the bin array holding it.
func BinArrayIndex(binID int32) int64 {
	id := int64(binID)
	idx := id / binsPerArray
	if id%binsPerArray < 0 {
		idx--
	}
	return idx
}

// BinArrays derives the previous, current and next bin array addresses
// around the active bin.
func (p *MeteoraDLMM) BinArrays() ([]solana.PublicKey, error) {
	idx := BinArrayIndex(p.activeID)
	out := make([]solana.PublicKey, 0, 3)
	for _, offset := range []int64{-1, 0, 1} {
		addr, err := DeriveBinArray(p.address, idx+offset)
		if err != nil {
			return nil, decodeErr(ProtocolMeteoraDLMM, p.address, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// DeriveBinArray returns the bin array PDA for pair at index.
func DeriveBinArray(pair solana.PublicKey, index int64) (solana.PublicKey, error) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], uint64(index))
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(binArraySeed), pair[:], le[:]},
		MeteoraDLMMProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bin array %d: %w", index, err)
	}
	return addr, nil
}

// MeteoraDLMMDecoder decodes Meteora DLMM LbPair accounts.
type MeteoraDLMMDecoder struct{}

func (MeteoraDLMMDecoder) Protocol() Protocol { return ProtocolMeteoraDLMM }

func (d MeteoraDLMMDecoder) Decode(dc DecodeContext, address solana.PublicKey, data []byte) (Pool, error) {
	if err := requireLen(data, meteoraDLMMLayoutSize); err != nil {
		return nil, decodeErr(ProtocolMeteoraDLMM, address, err)
	}

	state := DLMMState{
		TokenXMint: readPubkey(data, dlmmTokenXMintOffset),
		TokenYMint: readPubkey(data, dlmmTokenYMintOffset),
		ReserveX:   readPubkey(data, dlmmReserveXOffset),
		ReserveY:   readPubkey(data, dlmmReserveYOffset),
		Oracle:     readPubkey(data, dlmmOracleOffset),
		ActiveID:   readI32(data, dlmmActiveIDOffset),
		BinStep:    readU16(data, dlmmBinStepOffset),
		BaseFactor: readU16(data, dlmmBaseFactorOffset),
	}

	var err error
	state.DecimalsX, err = FetchMintDecimals(dc.ctx(), dc.Accounts, state.TokenXMint, dc.Mints, dc.Logger)
	if err != nil {
		return nil, decodeErr(ProtocolMeteoraDLMM, address, err)
	}
	state.DecimalsY, err = FetchMintDecimals(dc.ctx(), dc.Accounts, state.TokenYMint, dc.Mints, dc.Logger)
	if err != nil {
		return nil, decodeErr(ProtocolMeteoraDLMM, address, err)
	}

	pool := NewMeteoraDLMM(address, state)
	dc.logger().Debug("parsed meteora dlmm pool",
		zap.String("pool", address.String()),
		zap.String("mint_a", state.TokenXMint.String()),
		zap.String("mint_b", state.TokenYMint.String()),
		zap.String("reserve_x", state.ReserveX.String()),
		zap.String("reserve_y", state.ReserveY.String()),
		zap.Int32("active_id", state.ActiveID),
		zap.Uint16("bin_step", state.BinStep),
		zap.Uint16("fee_bps", pool.feeBps),
	)
	return pool, nil
}
