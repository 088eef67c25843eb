// Package storage persists fetched historical rates so repeat lookups
// can be served without an upstream round-trip.
package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type RateRepo struct {
	pool *pgxpool.Pool
}

func NewRateRepo(pool *pgxpool.Pool) *RateRepo {
	return &RateRepo{pool: pool}
}

// EnsureSchema creates the historical_rates table when missing.
func (r *RateRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS historical_rates (
			coin_id     TEXT        NOT NULL,
			currency    TEXT        NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			rate        NUMERIC     NOT NULL,
			PRIMARY KEY (coin_id, currency, recorded_at)
		)`)
	return err
}

// Save upserts one historical rate sample.
func (r *RateRepo) Save(ctx context.Context, coinID, currency string, timestamp time.Time, rate decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO historical_rates (coin_id, currency, recorded_at, rate)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (coin_id, currency, recorded_at) DO UPDATE SET rate = EXCLUDED.rate`,
		coinID, currency, timestamp, rate.String(),
	)
	return err
}

// Find returns the stored rate nearest to timestamp, if one exists
// within tolerance on either side.
func (r *RateRepo) Find(ctx context.Context, coinID, currency string, timestamp time.Time, tolerance time.Duration) (decimal.Decimal, bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT rate::text FROM historical_rates
		 WHERE coin_id = $1 AND currency = $2 AND recorded_at BETWEEN $3 AND $4
		 ORDER BY ABS(EXTRACT(EPOCH FROM (recorded_at - $5::timestamptz))) ASC
		 LIMIT 1`,
		coinID, currency, timestamp.Add(-tolerance), timestamp.Add(tolerance), timestamp,
	)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return rate, true, nil
}
