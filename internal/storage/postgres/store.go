package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbScope/internal/model"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_address  TEXT PRIMARY KEY,
	protocol      TEXT NOT NULL,
	asset_a       TEXT NOT NULL,
	asset_b       TEXT NOT NULL,
	decimals_a    SMALLINT NOT NULL,
	decimals_b    SMALLINT NOT NULL,
	fee_bps       INTEGER NOT NULL,
	price         NUMERIC,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS opportunities (
	id            BIGSERIAL PRIMARY KEY,
	fingerprint   TEXT NOT NULL,
	start_asset   TEXT NOT NULL,
	start_amount  NUMERIC NOT NULL,
	final_amount  NUMERIC NOT NULL,
	profit        NUMERIC NOT NULL,
	profit_bps    NUMERIC NOT NULL,
	hop_count     SMALLINT NOT NULL,
	slot          BIGINT,
	found_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS opportunities_fingerprint_idx ON opportunities (fingerprint, found_at);

CREATE TABLE IF NOT EXISTS opportunity_hops (
	opportunity_id BIGINT NOT NULL REFERENCES opportunities (id) ON DELETE CASCADE,
	hop_index      SMALLINT NOT NULL,
	pool_address   TEXT NOT NULL,
	protocol       TEXT NOT NULL,
	asset_in       TEXT NOT NULL,
	asset_out      TEXT NOT NULL,
	amount_in      NUMERIC NOT NULL,
	amount_out     NUMERIC NOT NULL,
	PRIMARY KEY (opportunity_id, hop_index)
);
`

// Store provides Postgres persistence for pools and opportunities.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		var price *string
		if pool.Price != "" {
			p := pool.Price
			price = &p
		}
		batch.Queue(`
			INSERT INTO pools (
				pool_address, protocol, asset_a, asset_b, decimals_a, decimals_b, fee_bps, price, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				protocol = EXCLUDED.protocol,
				asset_a = EXCLUDED.asset_a,
				asset_b = EXCLUDED.asset_b,
				decimals_a = EXCLUDED.decimals_a,
				decimals_b = EXCLUDED.decimals_b,
				fee_bps = EXCLUDED.fee_bps,
				price = COALESCE(EXCLUDED.price, pools.price),
				updated_at = now()
		`,
			pool.Address,
			pool.Protocol,
			pool.AssetA,
			pool.AssetB,
			int16(pool.DecimalsA),
			int16(pool.DecimalsB),
			int64(pool.FeeBps),
			price,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutOpportunityBatch inserts opportunities and their hops in one
// transaction.
func (s *Store) PutOpportunityBatch(ctx context.Context, opportunities []model.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, opp := range opportunities {
		var slot *int64
		if opp.Slot > 0 {
			v := int64(opp.Slot)
			slot = &v
		}
		batch.Queue(`
			INSERT INTO opportunities (
				fingerprint, start_asset, start_amount, final_amount, profit, profit_bps, hop_count, slot, found_at
			) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9)
			RETURNING id
		`,
			opp.Fingerprint,
			opp.StartAsset,
			opp.StartAmount,
			opp.FinalAmount,
			opp.Profit,
			opp.ProfitBps,
			int16(len(opp.Hops)),
			slot,
			opp.FoundAt,
		)
	}

	ids := make([]int64, 0, len(opportunities))
	br := tx.SendBatch(ctx, batch)
	for range opportunities {
		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert opportunity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := br.Close(); err != nil {
		return err
	}

	hops := &pgx.Batch{}
	hopCount := 0
	for i, opp := range opportunities {
		for _, hop := range opp.Hops {
			hops.Queue(`
				INSERT INTO opportunity_hops (
					opportunity_id, hop_index, pool_address, protocol, asset_in, asset_out, amount_in, amount_out
				) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric)
			`,
				ids[i],
				int16(hop.Index),
				hop.Pool,
				hop.Protocol,
				hop.AssetIn,
				hop.AssetOut,
				hop.AmountIn,
				hop.AmountOut,
			)
			hopCount++
		}
	}
	if hopCount > 0 {
		hbr := tx.SendBatch(ctx, hops)
		for j := 0; j < hopCount; j++ {
			if _, err := hbr.Exec(); err != nil {
				_ = hbr.Close()
				return fmt.Errorf("insert opportunity hop: %w", err)
			}
		}
		if err := hbr.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
