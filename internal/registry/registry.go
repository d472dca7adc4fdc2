package registry

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"arbScope/internal/dex"
)

// PoolSpec is one configured pool: the asset it was listed under, its
// account address and its protocol.
type PoolSpec struct {
	Asset    solana.PublicKey
	Address  solana.PublicKey
	Protocol dex.Protocol
}

// Registry maps each asset to the pools that trade it. It is read-only
// after Build and safe for concurrent readers.
type Registry struct {
	buckets map[solana.PublicKey][]dex.Pool
	pools   map[solana.PublicKey]dex.Pool
	order   []dex.Pool
	assets  []solana.PublicKey
}

type options struct {
	logger   *zap.Logger
	mints    *dex.MintCache
	decoders map[dex.Protocol]dex.Decoder
}

// Option configures Build.
type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMintCache(cache *dex.MintCache) Option {
	return func(o *options) { o.mints = cache }
}

func WithDecoders(decoders map[dex.Protocol]dex.Decoder) Option {
	return func(o *options) { o.decoders = decoders }
}

// Build decodes every configured pool and indexes it under both of its
// assets. The first failure aborts the build and no registry is returned.
func Build(ctx context.Context, specs []PoolSpec, accounts dex.AccountSource, opts ...Option) (*Registry, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.decoders == nil {
		o.decoders = dex.DefaultDecoders()
	}
	if o.mints == nil {
		cache, err := dex.NewMintCache(dex.DefaultMintCacheSize)
		if err != nil {
			return nil, err
		}
		o.mints = cache
	}

	dc := dex.DecodeContext{
		Context:  ctx,
		Accounts: accounts,
		Mints:    o.mints,
		Logger:   o.logger,
	}

	reg := New()
	for _, spec := range specs {
		if existing, ok := reg.pools[spec.Address]; ok {
			if existing.Protocol() != spec.Protocol {
				return nil, &dex.DecodeError{
					Pool:     spec.Address,
					Protocol: spec.Protocol,
					Err:      fmt.Errorf("pool already configured as %s", existing.Protocol()),
				}
			}
			if !dex.Trades(existing, spec.Asset) {
				return nil, assetMismatch(spec)
			}
			continue
		}

		pool, err := dex.DecodeAccount(dc, o.decoders, spec.Protocol, spec.Address)
		if err != nil {
			return nil, err
		}
		if !dex.Trades(pool, spec.Asset) {
			return nil, assetMismatch(spec)
		}
		reg.add(pool)
	}

	o.logger.Info("pool registry built",
		zap.Int("pools", reg.Len()),
		zap.Int("assets", len(reg.assets)),
	)
	return reg, nil
}

func assetMismatch(spec PoolSpec) error {
	return &dex.DecodeError{
		Pool:     spec.Address,
		Protocol: spec.Protocol,
		Err:      fmt.Errorf("pool does not trade configured asset %s", spec.Asset),
	}
}

// New returns an empty registry. Pools are added with FromPools or Build.
func New() *Registry {
	return &Registry{
		buckets: make(map[solana.PublicKey][]dex.Pool),
		pools:   make(map[solana.PublicKey]dex.Pool),
	}
}

// FromPools indexes already decoded pools in the given order. Duplicate
// pool ids keep their first occurrence.
func FromPools(pools ...dex.Pool) *Registry {
	reg := New()
	for _, pool := range pools {
		if _, ok := reg.pools[pool.ID()]; ok {
			continue
		}
		reg.add(pool)
	}
	return reg
}

func (r *Registry) add(pool dex.Pool) {
	r.pools[pool.ID()] = pool
	r.order = append(r.order, pool)
	r.addToBucket(pool.AssetA(), pool)
	if !pool.AssetB().Equals(pool.AssetA()) {
		r.addToBucket(pool.AssetB(), pool)
	}
}

func (r *Registry) addToBucket(asset solana.PublicKey, pool dex.Pool) {
	if _, ok := r.buckets[asset]; !ok {
		r.assets = append(r.assets, asset)
	}
	r.buckets[asset] = append(r.buckets[asset], pool)
}

// Pools returns the pools trading asset in insertion order. The slice must
// not be modified.
func (r *Registry) Pools(asset solana.PublicKey) []dex.Pool {
	if r == nil {
		return nil
	}
	return r.buckets[asset]
}

// Pool looks up a pool by address.
func (r *Registry) Pool(id solana.PublicKey) (dex.Pool, bool) {
	if r == nil {
		return nil, false
	}
	pool, ok := r.pools[id]
	return pool, ok
}

// All returns every pool once, in insertion order.
func (r *Registry) All() []dex.Pool {
	if r == nil {
		return nil
	}
	out := make([]dex.Pool, len(r.order))
	copy(out, r.order)
	return out
}

// Assets returns every indexed asset in first-seen order.
func (r *Registry) Assets() []solana.PublicKey {
	if r == nil {
		return nil
	}
	out := make([]solana.PublicKey, len(r.assets))
	copy(out, r.assets)
	return out
}

// Len returns the number of distinct pools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Validate checks that every pool is indexed only under assets it trades
// and under both of them.
func (r *Registry) Validate() error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	for asset, pools := range r.buckets {
		for _, pool := range pools {
			if !dex.Trades(pool, asset) {
				return fmt.Errorf("pool %s indexed under %s which it does not trade", pool.ID(), asset)
			}
		}
	}
	for _, pool := range r.order {
		for _, asset := range []solana.PublicKey{pool.AssetA(), pool.AssetB()} {
			if !containsPool(r.buckets[asset], pool.ID()) {
				return fmt.Errorf("pool %s missing from %s bucket", pool.ID(), asset)
			}
		}
	}
	return nil
}

func containsPool(pools []dex.Pool, id solana.PublicKey) bool {
	for _, pool := range pools {
		if pool.ID().Equals(id) {
			return true
		}
	}
	return false
}
