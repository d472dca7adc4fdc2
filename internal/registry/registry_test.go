package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbScope/internal/dex"
	"arbScope/internal/dex/dextest"
)

var (
	sol  = dextest.Key(1)
	usdc = dextest.Key(2)
	bonk = dextest.Key(3)

	ammPool  = dextest.Key(40)
	clmmPool = dextest.Key(41)
	dlmmPool = dextest.Key(42)
)

// testAccounts holds one pool per protocol: SOL/USDC AMM, SOL/BONK CLMM and
// USDC/BONK DLMM.
func testAccounts() *dextest.Accounts {
	accounts := dextest.NewAccounts()
	accounts.Set(ammPool, dextest.AMM{
		BaseMint: sol, QuoteMint: usdc,
		BaseVault: dextest.Key(50), QuoteVault: dextest.Key(51),
		BaseDecimals: 9, QuoteDecimals: 6,
		FeeNum: 25, FeeDen: 10_000,
	}.Bytes())

	accounts.Set(clmmPool, dextest.CLMM{
		AmmConfig: dextest.Key(60),
		Mint0:     sol, Mint1: bonk,
		Decimals0: 9, Decimals1: 5,
		Liquidity:    dextest.SqrtPriceX64(1),
		SqrtPriceX64: dextest.SqrtPriceX64(1),
	}.Bytes())
	accounts.Set(dextest.Key(60), dextest.AmmConfig(2500))

	accounts.Set(dlmmPool, dextest.DLMM{
		TokenX: usdc, TokenY: bonk,
		ActiveID: 0, BinStep: 10,
	}.Bytes())
	accounts.Set(usdc, dextest.MintAccount(6))
	accounts.Set(bonk, dextest.MintAccount(5))
	return accounts
}

func testSpecs() []PoolSpec {
	return []PoolSpec{
		{Asset: sol, Address: ammPool, Protocol: dex.ProtocolRaydiumAMM},
		{Asset: sol, Address: clmmPool, Protocol: dex.ProtocolRaydiumCLMM},
		{Asset: usdc, Address: dlmmPool, Protocol: dex.ProtocolMeteoraDLMM},
	}
}

func TestBuildIndexesBothAssets(t *testing.T) {
	reg, err := Build(context.Background(), testSpecs(), testAccounts())
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []solana.PublicKey{sol, usdc, bonk}, reg.Assets())

	solPools := reg.Pools(sol)
	require.Len(t, solPools, 2)
	assert.Equal(t, ammPool, solPools[0].ID())
	assert.Equal(t, clmmPool, solPools[1].ID())

	usdcPools := reg.Pools(usdc)
	require.Len(t, usdcPools, 2)
	assert.Equal(t, ammPool, usdcPools[0].ID())
	assert.Equal(t, dlmmPool, usdcPools[1].ID())

	bonkPools := reg.Pools(bonk)
	require.Len(t, bonkPools, 2)
	assert.Equal(t, clmmPool, bonkPools[0].ID())
	assert.Equal(t, dlmmPool, bonkPools[1].ID())

	// The same decoded pool is shared by both buckets.
	assert.Same(t, solPools[0], usdcPools[0])

	pool, ok := reg.Pool(dlmmPool)
	require.True(t, ok)
	assert.Equal(t, dex.ProtocolMeteoraDLMM, pool.Protocol())
	assert.Empty(t, reg.Pools(dextest.Key(99)))
}

func TestBuildDeduplicatesPools(t *testing.T) {
	accounts := testAccounts()
	specs := append(testSpecs(), PoolSpec{Asset: usdc, Address: ammPool, Protocol: dex.ProtocolRaydiumAMM})

	reg, err := Build(context.Background(), specs, accounts)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Len(t, reg.Pools(usdc), 2)
	assert.Equal(t, 1, accounts.Calls(ammPool))
}

func TestBuildRejectsConflictingDuplicate(t *testing.T) {
	specs := append(testSpecs(), PoolSpec{Asset: sol, Address: ammPool, Protocol: dex.ProtocolRaydiumCLMM})

	reg, err := Build(context.Background(), specs, testAccounts())
	assert.Nil(t, reg)
	assert.ErrorIs(t, err, dex.ErrDecode)
}

func TestBuildFailsFast(t *testing.T) {
	accounts := testAccounts()
	accounts.Set(clmmPool, make([]byte, 100))

	reg, err := Build(context.Background(), testSpecs(), accounts)
	require.Error(t, err)
	assert.Nil(t, reg)

	var decodeErr *dex.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, clmmPool, decodeErr.Pool)
	assert.Equal(t, dex.ProtocolRaydiumCLMM, decodeErr.Protocol)
	assert.Zero(t, accounts.Calls(dlmmPool), "build continued past the failing pool")
}

func TestBuildMissingAccount(t *testing.T) {
	accounts := testAccounts()
	accounts.Delete(ammPool)

	_, err := Build(context.Background(), testSpecs(), accounts)
	assert.ErrorIs(t, err, dex.ErrDecode)
	assert.ErrorIs(t, err, dextest.ErrNotFound)
}

func TestBuildAssetMismatch(t *testing.T) {
	specs := []PoolSpec{{Asset: bonk, Address: ammPool, Protocol: dex.ProtocolRaydiumAMM}}

	_, err := Build(context.Background(), specs, testAccounts())
	var decodeErr *dex.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, ammPool, decodeErr.Pool)
	assert.Contains(t, err.Error(), "does not trade")
}

func TestBuildUnknownProtocol(t *testing.T) {
	specs := []PoolSpec{{Asset: sol, Address: ammPool, Protocol: dex.Protocol("orca_whirlpool")}}

	_, err := Build(context.Background(), specs, testAccounts())
	assert.ErrorIs(t, err, dex.ErrDecode)
}

func TestBuildWithSharedMintCache(t *testing.T) {
	cache, err := dex.NewMintCache(16)
	require.NoError(t, err)
	accounts := testAccounts()

	_, err = Build(context.Background(), testSpecs(), accounts, WithMintCache(cache))
	require.NoError(t, err)
	_, err = Build(context.Background(), testSpecs(), accounts, WithMintCache(cache))
	require.NoError(t, err)

	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 1, accounts.Calls(usdc))
}

func TestFromPools(t *testing.T) {
	amm, err := dex.NewRaydiumAMM(ammPool, sol, usdc, dextest.Key(50), dextest.Key(51), 9, 6,
		dex.AMMFees{SwapFeeNumerator: 25, SwapFeeDenominator: 10_000})
	require.NoError(t, err)
	dlmm := dex.NewMeteoraDLMM(dlmmPool, dex.DLMMState{TokenXMint: usdc, TokenYMint: bonk, BinStep: 10})

	reg := FromPools(amm, dlmm, amm)
	require.NoError(t, reg.Validate())
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []dex.Pool{amm, dlmm}, reg.All())
	assert.Len(t, reg.Pools(usdc), 2)
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	assert.Zero(t, reg.Len())
	assert.Nil(t, reg.Pools(sol))
	assert.Nil(t, reg.All())
	assert.Error(t, reg.Validate())
	_, ok := reg.Pool(ammPool)
	assert.False(t, ok)
}

func TestValidateDetectsMisindexedPool(t *testing.T) {
	reg, err := Build(context.Background(), testSpecs(), testAccounts())
	require.NoError(t, err)

	dlmm, _ := reg.Pool(dlmmPool)
	reg.buckets[sol] = append(reg.buckets[sol], dlmm)
	assert.Error(t, reg.Validate())
}
