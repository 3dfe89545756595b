package output

import (
	"context"
	"fmt"
	"strings"

	"tenderscan/internal/tender"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tenders (
	id BIGSERIAL PRIMARY KEY,
	tender_key TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	date_created TEXT NOT NULL,
	date_deadline TEXT NOT NULL,
	category TEXT,
	url TEXT NOT NULL,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tenders_date_deadline ON tenders(date_deadline);
`

const upsertTenderSQL = `
INSERT INTO tenders (tender_key, title, company, date_created, date_deadline, category, url, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tender_key) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	date_created = EXCLUDED.date_created,
	date_deadline = EXCLUDED.date_deadline,
	category = EXCLUDED.category,
	url = EXCLUDED.url,
	description = EXCLUDED.description,
	updated_at = NOW();
`

// pgPool is the part of *pgxpool.Pool the sink uses.
type pgPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// PostgresSink upserts tenders into a shared PostgreSQL table keyed by the
// tender identity, so repeated runs refresh rows instead of duplicating them.
type PostgresSink struct {
	pool pgPool
}

func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return newPostgresSink(ctx, pool)
}

// newPostgresSink checks the connection and bootstraps the schema. The pool
// is closed on failure.
func newPostgresSink(ctx context.Context, pool pgPool) (*PostgresSink, error) {
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Write(ctx context.Context, records []tender.Record) error {
	batch := buildTenderBatch(records)
	if batch.Len() == 0 {
		return nil
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch upsert failed at row %d: %w", i, err)
		}
	}
	return nil
}

func (s *PostgresSink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func buildTenderBatch(records []tender.Record) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertTenderSQL,
			r.Key(),
			r.Title,
			r.Company,
			r.DateCreated,
			r.DateDeadline,
			r.Category,
			r.URL,
			r.Description,
		)
	}
	return batch
}
