package dex

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Raydium AMM v4 account layout (no discriminator).
const (
	raydiumAMMLayoutSize = 752

	ammCoinDecimalsOffset = 32
	ammPcDecimalsOffset   = 40
	ammFeesOffset         = 128
	ammCoinVaultOffset    = 336
	ammPcVaultOffset      = 368
	ammCoinMintOffset     = 400
	ammPcMintOffset       = 432
)

// AMMFees mirrors the fee block of a Raydium AMM v4 account.
type AMMFees struct {
	MinSeparateNumerator   uint64 `json:"min_separate_numerator"`
	MinSeparateDenominator uint64 `json:"min_separate_denominator"`
	TradeFeeNumerator      uint64 `json:"trade_fee_numerator"`
	TradeFeeDenominator    uint64 `json:"trade_fee_denominator"`
	PnlNumerator           uint64 `json:"pnl_numerator"`
	PnlDenominator         uint64 `json:"pnl_denominator"`
	SwapFeeNumerator       uint64 `json:"swap_fee_numerator"`
	SwapFeeDenominator     uint64 `json:"swap_fee_denominator"`
}

func readAMMFees(data []byte) AMMFees {
	return AMMFees{
		MinSeparateNumerator:   readU64(data, ammFeesOffset),
		MinSeparateDenominator: readU64(data, ammFeesOffset+8),
		TradeFeeNumerator:      readU64(data, ammFeesOffset+16),
		TradeFeeDenominator:    readU64(data, ammFeesOffset+24),
		PnlNumerator:           readU64(data, ammFeesOffset+32),
		PnlDenominator:         readU64(data, ammFeesOffset+40),
		SwapFeeNumerator:       readU64(data, ammFeesOffset+48),
		SwapFeeDenominator:     readU64(data, ammFeesOffset+56),
	}
}

// RaydiumAMM is a constant-product pool. Reserves are read from the vault
// token accounts at quote time; the swap fee comes from the pool account.
type RaydiumAMM struct {
	address       solana.PublicKey
	baseMint      solana.PublicKey
	quoteMint     solana.PublicKey
	baseVault     solana.PublicKey
	quoteVault    solana.PublicKey
	baseDecimals  uint8
	quoteDecimals uint8
	fees          AMMFees
}

// NewRaydiumAMM builds pool state directly, without an account.
func NewRaydiumAMM(address, baseMint, quoteMint, baseVault, quoteVault solana.PublicKey, baseDecimals, quoteDecimals uint8, fees AMMFees) (*RaydiumAMM, error) {
	if err := validateSwapFee(fees); err != nil {
		return nil, err
	}
	return &RaydiumAMM{
		address:       address,
		baseMint:      baseMint,
		quoteMint:     quoteMint,
		baseVault:     baseVault,
		quoteVault:    quoteVault,
		baseDecimals:  baseDecimals,
		quoteDecimals: quoteDecimals,
		fees:          fees,
	}, nil
}

func validateSwapFee(fees AMMFees) error {
	if fees.SwapFeeDenominator == 0 {
		return fmt.Errorf("swap fee denominator is zero")
	}
	if fees.SwapFeeNumerator > fees.SwapFeeDenominator {
		return fmt.Errorf("swap fee %d/%d exceeds 100%%", fees.SwapFeeNumerator, fees.SwapFeeDenominator)
	}
	return nil
}

func (p *RaydiumAMM) ID() solana.PublicKey { return p.address }
func (p *RaydiumAMM) Protocol() Protocol { return ProtocolRaydiumAMM }
func (p *RaydiumAMM) AssetA() solana.PublicKey { return p.baseMint }
func (p *RaydiumAMM) AssetB() solana.PublicKey { return p.quoteMint }
func (p *RaydiumAMM) Decimals() (uint8, uint8) { return p.baseDecimals, p.quoteDecimals }
func (p *RaydiumAMM) Fees() AMMFees { return p.fees }
func (p *RaydiumAMM) Vaults() (solana.PublicKey, solana.PublicKey) {
	return p.baseVault, p.quoteVault
}

// LiveAccounts returns the vaults read on every quote.
func (p *RaydiumAMM) LiveAccounts() []solana.PublicKey {
	return []solana.PublicKey{p.baseVault, p.quoteVault}
}

// FeeBps returns the swap fee rounded down to basis points, for reporting.
func (p *RaydiumAMM) FeeBps() uint64 {
	return p.fees.SwapFeeNumerator * bpsDenominator / p.fees.SwapFeeDenominator
}

// SwapFee returns ceil(amountIn * num / den), the fee charged on amountIn.
func (p *RaydiumAMM) SwapFee(amountIn uint64) uint64 {
	return p.swapFee(uint256.NewInt(amountIn)).Uint64()
}

func (p *RaydiumAMM) swapFee(amountIn *uint256.Int) *uint256.Int {
	num := new(uint256.Int).Mul(amountIn, uint256.NewInt(p.fees.SwapFeeNumerator))
	den := uint256.NewInt(p.fees.SwapFeeDenominator)
	fee, rem := new(uint256.Int).DivMod(num, den, new(uint256.Int))
	if !rem.IsZero() {
		fee.AddUint64(fee, 1)
	}
	return fee
}

// Reserves reads both vault balances through qc.Accounts.
func (p *RaydiumAMM) Reserves(qc QuoteContext) (base, quote uint64, err error) {
	if qc.Accounts == nil {
		return 0, 0, fmt.Errorf("%w: account source is nil", ErrQuoteUnavailable)
	}
	base, err = p.vaultAmount(qc, p.baseVault)
	if err != nil {
		return 0, 0, err
	}
	quote, err = p.vaultAmount(qc, p.quoteVault)
	if err != nil {
		return 0, 0, err
	}
	return base, quote, nil
}

func (p *RaydiumAMM) vaultAmount(qc QuoteContext, vault solana.PublicKey) (uint64, error) {
	data, err := qc.Accounts.FetchAccount(qc.ctx(), vault)
	if err != nil {
		return 0, unavailable(vault, err)
	}
	amount, err := TokenAccountAmount(data)
	if err != nil {
		return 0, unavailable(vault, err)
	}
	return amount, nil
}

func (p *RaydiumAMM) Quote(qc QuoteContext, amountIn uint64, assetIn solana.PublicKey) (uint64, error) {
	aToB, err := direction(p, assetIn)
	if err != nil {
		return 0, err
	}
	if amountIn == 0 {
		return 0, nil
	}

	base, quote, err := p.Reserves(qc)
	if err != nil {
		return 0, err
	}
	reserveIn, reserveOut := base, quote
	if !aToB {
		reserveIn, reserveOut = quote, base
	}
	return constantProductOut(p.afterFee(amountIn), reserveIn, reserveOut), nil
}

func (p *RaydiumAMM) afterFee(amountIn uint64) *uint256.Int {
	in := uint256.NewInt(amountIn)
	fee := p.swapFee(in)
	if fee.Gt(in) {
		return new(uint256.Int)
	}
	return in.Sub(in, fee)
}

// constantProductOut returns reserveOut - reserveIn*reserveOut/(reserveIn+amountIn).
func constantProductOut(amountIn *uint256.Int, reserveIn, reserveOut uint64) uint64 {
	if reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	rin := uint256.NewInt(reserveIn)
	rout := uint256.NewInt(reserveOut)
	k := new(uint256.Int).Mul(rin, rout)
	k.Div(k, new(uint256.Int).Add(rin, amountIn))
	return rout.Sub(rout, k).Uint64()
}

// RaydiumAMMDecoder decodes Raydium AMM v4 pool accounts.
type RaydiumAMMDecoder struct{}

func (RaydiumAMMDecoder) Protocol() Protocol { return ProtocolRaydiumAMM }

func (d RaydiumAMMDecoder) Decode(dc DecodeContext, address solana.PublicKey, data []byte) (Pool, error) {
	if err := requireLen(data, raydiumAMMLayoutSize); err != nil {
		return nil, decodeErr(ProtocolRaydiumAMM, address, err)
	}

	coinDecimals := readU64(data, ammCoinDecimalsOffset)
	pcDecimals := readU64(data, ammPcDecimalsOffset)
	if coinDecimals > 255 || pcDecimals > 255 {
		return nil, decodeErr(ProtocolRaydiumAMM, address, fmt.Errorf("invalid decimals %d/%d", coinDecimals, pcDecimals))
	}

	pool, err := NewRaydiumAMM(
		address,
		readPubkey(data, ammCoinMintOffset),
		readPubkey(data, ammPcMintOffset),
		readPubkey(data, ammCoinVaultOffset),
		readPubkey(data, ammPcVaultOffset),
		uint8(coinDecimals),
		uint8(pcDecimals),
		readAMMFees(data),
	)
	if err != nil {
		return nil, decodeErr(ProtocolRaydiumAMM, address, err)
	}

	dc.logger().Debug("parsed raydium amm pool",
		zap.String("pool", address.String()),
		zap.String("mint_a", pool.baseMint.String()),
		zap.String("mint_b", pool.quoteMint.String()),
		zap.String("vault_a", pool.baseVault.String()),
		zap.String("vault_b", pool.quoteVault.String()),
		zap.Uint64("swap_fee_numerator", pool.fees.SwapFeeNumerator),
		zap.Uint64("swap_fee_denominator", pool.fees.SwapFeeDenominator),
	)
	return pool, nil
}
