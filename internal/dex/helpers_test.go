package dex

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

type memAccounts struct {
	mu    sync.Mutex
	data  map[solana.PublicKey][]byte
	calls map[solana.PublicKey]int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		data:  make(map[solana.PublicKey][]byte),
		calls: make(map[solana.PublicKey]int),
	}
}

func (m *memAccounts) set(address solana.PublicKey, data []byte) {
	m.mu.Lock()
	m.data[address] = data
	m.mu.Unlock()
}

func (m *memAccounts) FetchAccount(_ context.Context, address solana.PublicKey) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[address]++
	data, ok := m.data[address]
	if !ok {
		return nil, fmt.Errorf("account %s not found", address)
	}
	return data, nil
}

func (m *memAccounts) callCount(address solana.PublicKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[address]
}

func testKey(b byte) solana.PublicKey {
	var key solana.PublicKey
	for i := range key {
		key[i] = b
	}
	return key
}

func putPubkey(buf []byte, offset int, key solana.PublicKey) {
	copy(buf[offset:offset+32], key[:])
}

func putU128(buf []byte, offset int, v *uint256.Int) {
	binary.LittleEndian.PutUint64(buf[offset:], v[0])
	binary.LittleEndian.PutUint64(buf[offset+8:], v[1])
}

func tokenAccount(amount uint64) []byte {
	buf := make([]byte, 165)
	binary.LittleEndian.PutUint64(buf[tokenAccountAmountOffset:], amount)
	return buf
}

func mintAccount(decimals uint8) []byte {
	buf := make([]byte, 82)
	buf[mintDecimalsOffset] = decimals
	return buf
}

type ammAccountSpec struct {
	baseMint, quoteMint   solana.PublicKey
	baseVault, quoteVault solana.PublicKey
	baseDecimals          uint64
	quoteDecimals         uint64
	feeNum, feeDen        uint64
}

func ammAccount(spec ammAccountSpec) []byte {
	buf := make([]byte, raydiumAMMLayoutSize)
	binary.LittleEndian.PutUint64(buf[ammCoinDecimalsOffset:], spec.baseDecimals)
	binary.LittleEndian.PutUint64(buf[ammPcDecimalsOffset:], spec.quoteDecimals)
	binary.LittleEndian.PutUint64(buf[ammFeesOffset+16:], spec.feeNum)
	binary.LittleEndian.PutUint64(buf[ammFeesOffset+24:], spec.feeDen)
	binary.LittleEndian.PutUint64(buf[ammFeesOffset+48:], spec.feeNum)
	binary.LittleEndian.PutUint64(buf[ammFeesOffset+56:], spec.feeDen)
	putPubkey(buf, ammCoinVaultOffset, spec.baseVault)
	putPubkey(buf, ammPcVaultOffset, spec.quoteVault)
	putPubkey(buf, ammCoinMintOffset, spec.baseMint)
	putPubkey(buf, ammPcMintOffset, spec.quoteMint)
	return buf
}

type clmmAccountSpec struct {
	ammConfig      solana.PublicKey
	mint0, mint1   solana.PublicKey
	vault0, vault1 solana.PublicKey
	decimals0      uint8
	decimals1      uint8
	tickSpacing    uint16
	liquidity      *uint256.Int
	sqrtPriceX64   *uint256.Int
	tickCurrent    int32
}

func clmmAccount(spec clmmAccountSpec) []byte {
	buf := make([]byte, raydiumCLMMLayoutSize)
	putPubkey(buf, clmmAmmConfigOffset, spec.ammConfig)
	putPubkey(buf, clmmMint0Offset, spec.mint0)
	putPubkey(buf, clmmMint1Offset, spec.mint1)
	putPubkey(buf, clmmVault0Offset, spec.vault0)
	putPubkey(buf, clmmVault1Offset, spec.vault1)
	buf[clmmDecimals0Offset] = spec.decimals0
	buf[clmmDecimals1Offset] = spec.decimals1
	binary.LittleEndian.PutUint16(buf[clmmTickSpacingOffset:], spec.tickSpacing)
	putU128(buf, clmmLiquidityOffset, spec.liquidity)
	putU128(buf, clmmSqrtPriceX64Offset, spec.sqrtPriceX64)
	binary.LittleEndian.PutUint32(buf[clmmTickCurrentOffset:], uint32(spec.tickCurrent))
	return buf
}

func ammConfigAccount(tradeFeeRate uint32) []byte {
	buf := make([]byte, 117)
	binary.LittleEndian.PutUint32(buf[clmmTradeFeeRateOffset:], tradeFeeRate)
	return buf
}

type dlmmAccountSpec struct {
	tokenX, tokenY     solana.PublicKey
	reserveX, reserveY solana.PublicKey
	oracle             solana.PublicKey
	activeID           int32
	binStep            uint16
	baseFactor         uint16
}

func dlmmAccount(spec dlmmAccountSpec) []byte {
	buf := make([]byte, meteoraDLMMLayoutSize)
	binary.LittleEndian.PutUint16(buf[dlmmBaseFactorOffset:], spec.baseFactor)
	binary.LittleEndian.PutUint32(buf[dlmmActiveIDOffset:], uint32(spec.activeID))
	binary.LittleEndian.PutUint16(buf[dlmmBinStepOffset:], spec.binStep)
	putPubkey(buf, dlmmTokenXMintOffset, spec.tokenX)
	putPubkey(buf, dlmmTokenYMintOffset, spec.tokenY)
	putPubkey(buf, dlmmReserveXOffset, spec.reserveX)
	putPubkey(buf, dlmmReserveYOffset, spec.reserveY)
	putPubkey(buf, dlmmOracleOffset, spec.oracle)
	return buf
}

func sqrtPriceX64(multiple uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(multiple), 64)
}
