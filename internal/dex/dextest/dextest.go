// Package dextest builds raw pool, vault and mint accounts for tests.
package dextest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// ErrNotFound is returned by Accounts for unknown addresses.
var ErrNotFound = errors.New("account not found")

// Accounts is an in-memory account source that counts fetches.
type Accounts struct {
	mu    sync.Mutex
	data  map[solana.PublicKey][]byte
	calls map[solana.PublicKey]int
	batch int
}

func NewAccounts() *Accounts {
	return &Accounts{
		data:  make(map[solana.PublicKey][]byte),
		calls: make(map[solana.PublicKey]int),
	}
}

func (a *Accounts) Set(address solana.PublicKey, data []byte) {
	a.mu.Lock()
	a.data[address] = data
	a.mu.Unlock()
}

func (a *Accounts) Delete(address solana.PublicKey) {
	a.mu.Lock()
	delete(a.data, address)
	a.mu.Unlock()
}

func (a *Accounts) Has(address solana.PublicKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.data[address]
	return ok
}

func (a *Accounts) FetchAccount(_ context.Context, address solana.PublicKey) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[address]++
	data, ok := a.data[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return data, nil
}

func (a *Accounts) FetchAccounts(_ context.Context, addresses []solana.PublicKey) ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batch++
	out := make([][]byte, 0, len(addresses))
	for _, address := range addresses {
		a.calls[address]++
		out = append(out, a.data[address])
	}
	return out, nil
}

// Calls returns how many times address was fetched, singly or in a batch.
func (a *Accounts) Calls(address solana.PublicKey) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[address]
}

// Batches returns how many batch fetches were made.
func (a *Accounts) Batches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.batch
}

// Key returns a public key with every byte set to b.
func Key(b byte) solana.PublicKey {
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
	if v == nil {
		return
	}
	binary.LittleEndian.PutUint64(buf[offset:], v[0])
	binary.LittleEndian.PutUint64(buf[offset+8:], v[1])
}

// TokenAccount returns an SPL token account holding amount.
func TokenAccount(amount uint64) []byte {
	buf := make([]byte, 165)
	binary.LittleEndian.PutUint64(buf[64:], amount)
	return buf
}

// MintAccount returns an SPL mint account with the given decimals.
func MintAccount(decimals uint8) []byte {
	buf := make([]byte, 82)
	buf[44] = decimals
	return buf
}

// AMM describes a Raydium AMM v4 account.
type AMM struct {
	BaseMint, QuoteMint   solana.PublicKey
	BaseVault, QuoteVault solana.PublicKey
	BaseDecimals          uint64
	QuoteDecimals         uint64
	FeeNum, FeeDen        uint64
}

func (s AMM) Bytes() []byte {
	buf := make([]byte, 752)
	binary.LittleEndian.PutUint64(buf[32:], s.BaseDecimals)
	binary.LittleEndian.PutUint64(buf[40:], s.QuoteDecimals)
	binary.LittleEndian.PutUint64(buf[128+16:], s.FeeNum)
	binary.LittleEndian.PutUint64(buf[128+24:], s.FeeDen)
	binary.LittleEndian.PutUint64(buf[128+48:], s.FeeNum)
	binary.LittleEndian.PutUint64(buf[128+56:], s.FeeDen)
	putPubkey(buf, 336, s.BaseVault)
	putPubkey(buf, 368, s.QuoteVault)
	putPubkey(buf, 400, s.BaseMint)
	putPubkey(buf, 432, s.QuoteMint)
	return buf
}

// CLMM describes a Raydium CLMM PoolState account.
type CLMM struct {
	AmmConfig      solana.PublicKey
	Mint0, Mint1   solana.PublicKey
	Vault0, Vault1 solana.PublicKey
	Decimals0      uint8
	Decimals1      uint8
	TickSpacing    uint16
	Liquidity      *uint256.Int
	SqrtPriceX64   *uint256.Int
	TickCurrent    int32
}

func (s CLMM) Bytes() []byte {
	buf := make([]byte, 1544)
	putPubkey(buf, 9, s.AmmConfig)
	putPubkey(buf, 73, s.Mint0)
	putPubkey(buf, 105, s.Mint1)
	putPubkey(buf, 137, s.Vault0)
	putPubkey(buf, 169, s.Vault1)
	buf[233] = s.Decimals0
	buf[234] = s.Decimals1
	binary.LittleEndian.PutUint16(buf[235:], s.TickSpacing)
	putU128(buf, 237, s.Liquidity)
	putU128(buf, 253, s.SqrtPriceX64)
	binary.LittleEndian.PutUint32(buf[269:], uint32(s.TickCurrent))
	return buf
}

// AmmConfig returns a Raydium CLMM AmmConfig account with the given trade
// fee rate in hundredths of a basis point.
func AmmConfig(tradeFeeRate uint32) []byte {
	buf := make([]byte, 117)
	binary.LittleEndian.PutUint32(buf[47:], tradeFeeRate)
	return buf
}

// DLMM describes a Meteora DLMM LbPair account.
type DLMM struct {
	TokenX, TokenY     solana.PublicKey
	ReserveX, ReserveY solana.PublicKey
	Oracle             solana.PublicKey
	ActiveID           int32
	BinStep            uint16
	BaseFactor         uint16
}

func (s DLMM) Bytes() []byte {
	buf := make([]byte, 904)
	binary.LittleEndian.PutUint16(buf[8:], s.BaseFactor)
	binary.LittleEndian.PutUint32(buf[76:], uint32(s.ActiveID))
	binary.LittleEndian.PutUint16(buf[80:], s.BinStep)
	putPubkey(buf, 88, s.TokenX)
	putPubkey(buf, 120, s.TokenY)
	putPubkey(buf, 152, s.ReserveX)
	putPubkey(buf, 184, s.ReserveY)
	putPubkey(buf, 552, s.Oracle)
	return buf
}

// SqrtPriceX64 returns multiple * 2^64.
func SqrtPriceX64(multiple uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(multiple), 64)
}
