package dex

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// DefaultMintCacheSize bounds the number of mints whose decimals are kept.
const DefaultMintCacheSize = 4096

// MintCache caches mint decimals by mint address. Decimals never change
// after a mint is created, so entries are only evicted for size.
type MintCache struct {
	cache *lru.Cache
}

func NewMintCache(size int) (*MintCache, error) {
	if size <= 0 {
		size = DefaultMintCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create mint cache: %w", err)
	}
	return &MintCache{cache: cache}, nil
}

func (c *MintCache) Get(mint solana.PublicKey) (uint8, bool) {
	if c == nil {
		return 0, false
	}
	val, ok := c.cache.Get(mint)
	if !ok {
		return 0, false
	}
	decimals, ok := val.(uint8)
	return decimals, ok
}

func (c *MintCache) Set(mint solana.PublicKey, decimals uint8) {
	if c == nil {
		return
	}
	c.cache.Add(mint, decimals)
}

func (c *MintCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// FetchMintDecimals loads mint decimals from the cache or the account source.
func FetchMintDecimals(ctx context.Context, accounts AccountSource, mint solana.PublicKey, cache *MintCache, logger *zap.Logger) (uint8, error) {
	if decimals, ok := cache.Get(mint); ok {
		return decimals, nil
	}
	if accounts == nil {
		return 0, fmt.Errorf("account source is nil")
	}

	data, err := accounts.FetchAccount(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("fetch mint %s: %w", mint, err)
	}
	decimals, err := MintDecimals(data)
	if err != nil {
		return 0, fmt.Errorf("mint %s: %w", mint, err)
	}

	cache.Set(mint, decimals)
	if logger != nil {
		logger.Debug("mint decimals loaded", zap.String("mint", mint.String()), zap.Uint8("decimals", decimals))
	}
	return decimals, nil
}
