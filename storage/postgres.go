package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deal_scout/identity"
	"deal_scout/models"
)

// PostgresStore is the long-lived deal archive shared across runs and
// instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deals (
			id UUID PRIMARY KEY,
			fingerprint TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			address TEXT,
			url TEXT,
			source_url TEXT,
			host TEXT,
			purchase_price DOUBLE PRECISION,
			arv DOUBLE PRECISION,
			repairs DOUBLE PRECISION,
			mov DOUBLE PRECISION,
			additional_costs DOUBLE PRECISION,
			profit DOUBLE PRECISION,
			analysis TEXT,
			estimated BOOLEAN DEFAULT FALSE,
			last_run_id UUID,
			last_query TEXT,
			times_seen INTEGER DEFAULT 1,
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_deals_profit ON deals(profit DESC);
		CREATE INDEX IF NOT EXISTS idx_deals_host ON deals(host, last_seen_at DESC);
	`)
	return err
}

// NewDeal converts a result row into its archive form.
func NewDeal(run *models.SearchRun, p *models.AnalyzedProperty, now time.Time) *models.Deal {
	return &models.Deal{
		ID:              uuid.New(),
		Fingerprint:     identity.Fingerprint(&p.ListingCandidate),
		Title:           p.Title,
		Address:         p.Address,
		URL:             p.ResolvedURL,
		SourceURL:       p.SourceURL,
		Host:            identity.Host(p.ResolvedURL),
		PurchasePrice:   p.PurchasePrice,
		ARV:             p.ARV,
		Repairs:         p.Repairs,
		MOV:             p.MOV,
		AdditionalCosts: p.AdditionalCosts,
		Profit:          p.Profit,
		Analysis:        p.Analysis,
		Estimated:       p.Estimated,
		LastRunID:       run.ID,
		LastQuery:       run.Query,
		TimesSeen:       1,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
}

// UpsertDeal inserts d or, when its fingerprint is known, refreshes the
// economics and bumps times_seen. d.ID is set to the stored row's id.
func (s *PostgresStore) UpsertDeal(ctx context.Context, d *models.Deal) error {
	query := `
		INSERT INTO deals (
			id, fingerprint, title, address, url, source_url, host,
			purchase_price, arv, repairs, mov, additional_costs, profit,
			analysis, estimated, last_run_id, last_query, times_seen,
			first_seen_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			title = EXCLUDED.title,
			purchase_price = EXCLUDED.purchase_price,
			arv = EXCLUDED.arv,
			repairs = EXCLUDED.repairs,
			mov = EXCLUDED.mov,
			additional_costs = EXCLUDED.additional_costs,
			profit = EXCLUDED.profit,
			analysis = COALESCE(NULLIF(EXCLUDED.analysis, ''), deals.analysis),
			estimated = EXCLUDED.estimated,
			last_run_id = EXCLUDED.last_run_id,
			last_query = EXCLUDED.last_query,
			times_seen = deals.times_seen + 1,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING id, times_seen, first_seen_at`

	return s.pool.QueryRow(ctx, query,
		d.ID, d.Fingerprint, d.Title, d.Address, d.URL, d.SourceURL, d.Host,
		d.PurchasePrice, d.ARV, d.Repairs, d.MOV, d.AdditionalCosts, d.Profit,
		d.Analysis, d.Estimated, d.LastRunID, d.LastQuery, d.TimesSeen,
		d.FirstSeenAt, d.LastSeenAt,
	).Scan(&d.ID, &d.TimesSeen, &d.FirstSeenAt)
}

// Publish archives every property of a completed run. It satisfies the
// pipeline's result sink.
func (s *PostgresStore) Publish(ctx context.Context, run *models.SearchRun, props []models.AnalyzedProperty) error {
	now := time.Now()
	for i := range props {
		if err := s.UpsertDeal(ctx, NewDeal(run, &props[i], now)); err != nil {
			return fmt.Errorf("upsert deal %q: %w", props[i].Title, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetDealByFingerprint(ctx context.Context, fingerprint string) (*models.Deal, error) {
	query := `
		SELECT id, fingerprint, title, address, url, source_url, host,
			purchase_price, arv, repairs, mov, additional_costs, profit,
			analysis, estimated, last_run_id, last_query, times_seen,
			first_seen_at, last_seen_at
		FROM deals WHERE fingerprint = $1`

	d, err := scanDeal(s.pool.QueryRow(ctx, query, fingerprint))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// TopDeals returns archived deals seen within maxAge, most profitable first.
func (s *PostgresStore) TopDeals(ctx context.Context, maxAge time.Duration, limit int) ([]models.Deal, error) {
	query := `
		SELECT id, fingerprint, title, address, url, source_url, host,
			purchase_price, arv, repairs, mov, additional_costs, profit,
			analysis, estimated, last_run_id, last_query, times_seen,
			first_seen_at, last_seen_at
		FROM deals
		WHERE last_seen_at >= $1
		ORDER BY profit DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, time.Now().Add(-maxAge), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, rows.Err()
}

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var d models.Deal
	err := row.Scan(
		&d.ID, &d.Fingerprint, &d.Title, &d.Address, &d.URL, &d.SourceURL, &d.Host,
		&d.PurchasePrice, &d.ARV, &d.Repairs, &d.MOV, &d.AdditionalCosts, &d.Profit,
		&d.Analysis, &d.Estimated, &d.LastRunID, &d.LastQuery, &d.TimesSeen,
		&d.FirstSeenAt, &d.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
