package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolquote/internal/model"
	"poolquote/internal/storage"
)

// Schema creates the tables written by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id      BIGINT  NOT NULL,
	pool_id       TEXT    NOT NULL,
	currency0     TEXT    NOT NULL,
	currency1     TEXT    NOT NULL,
	fee           INTEGER NOT NULL,
	tick_spacing  INTEGER NOT NULL,
	hooks         TEXT    NOT NULL,
	known_fee     BOOLEAN NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_id)
);
CREATE TABLE IF NOT EXISTS quotes (
	id               BIGSERIAL PRIMARY KEY,
	chain_id         BIGINT  NOT NULL,
	observed_at      TIMESTAMPTZ NOT NULL,
	pool_id          TEXT    NOT NULL,
	token_in         TEXT    NOT NULL,
	token_out        TEXT    NOT NULL,
	amount_in        NUMERIC(78,0) NOT NULL,
	amount_out       NUMERIC(78,0) NOT NULL,
	fee              INTEGER NOT NULL,
	price            DOUBLE PRECISION NOT NULL,
	price_impact_pct DOUBLE PRECISION NOT NULL,
	sqrt_price_x96   NUMERIC(78,0) NOT NULL,
	tick             INTEGER NOT NULL,
	liquidity        NUMERIC(78,0) NOT NULL,
	cached           BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS quotes_pool_time ON quotes (pool_id, observed_at);
`

var _ storage.Storage = (*Store)(nil)

// Store provides Postgres persistence for resolved pools and quotes.
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

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Store) PutPools(ctx context.Context, pools []model.Pool) error {
	return s.UpsertPools(ctx, pools)
}

func (s *Store) PutQuotes(ctx context.Context, quotes []model.QuoteRecord) error {
	return s.InsertQuotes(ctx, quotes)
}

// UpsertPools inserts or refreshes resolved pools.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_id, currency0, currency1, fee, tick_spacing, hooks, known_fee, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (chain_id, pool_id)
			DO UPDATE SET
				known_fee = EXCLUDED.known_fee,
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.PoolID,
			pool.Currency0,
			pool.Currency1,
			int32(pool.Fee),
			pool.TickSpacing,
			pool.Hooks,
			pool.KnownFeeTier,
		)
	}
	return s.sendBatch(ctx, batch)
}

// InsertQuotes appends quote journal rows.
func (s *Store) InsertQuotes(ctx context.Context, quotes []model.QuoteRecord) error {
	if len(quotes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(`
			INSERT INTO quotes (
				chain_id, observed_at, pool_id, token_in, token_out, amount_in, amount_out, fee,
				price, price_impact_pct, sqrt_price_x96, tick, liquidity, cached
			) VALUES ($1,$2::timestamptz,$3,$4,$5,$6::numeric,$7::numeric,$8,$9,$10,$11::numeric,$12,$13::numeric,$14)
		`,
			int64(q.ChainID),
			q.ObservedAt,
			q.PoolID,
			q.TokenIn,
			q.TokenOut,
			q.AmountIn,
			q.AmountOut,
			int32(q.Fee),
			q.Price,
			q.PriceImpactPct,
			q.SqrtPriceX96,
			q.Tick,
			q.Liquidity,
			q.Cached,
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
