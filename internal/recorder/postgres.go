package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertQuoteSQL = `
	INSERT INTO quote_history (recorded_at, version, source, symbol, name, market, price, change, change_percent, high, low, volume, prev_close)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (symbol, recorded_at, version) DO NOTHING
`

// PostgresRecorder persists quote rows to PostgreSQL.
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder wraps an open pool. Close closes the pool.
func NewPostgresRecorder(db *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quote_history (
			recorded_at    TIMESTAMPTZ      NOT NULL,
			version        BIGINT           NOT NULL,
			source         TEXT             NOT NULL,
			symbol         TEXT             NOT NULL,
			name           TEXT,
			market         TEXT,
			price          DOUBLE PRECISION,
			change         DOUBLE PRECISION,
			change_percent DOUBLE PRECISION,
			high           DOUBLE PRECISION,
			low            DOUBLE PRECISION,
			volume         DOUBLE PRECISION,
			prev_close     DOUBLE PRECISION,
			PRIMARY KEY (symbol, recorded_at, version)
		);
		CREATE INDEX IF NOT EXISTS idx_quote_history_ts ON quote_history (recorded_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Insert writes rows using pgx.Batch; duplicates are skipped.
func (r *PostgresRecorder) Insert(ctx context.Context, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := buildInsertBatch(rows)
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (r *PostgresRecorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM quote_history WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *PostgresRecorder) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresRecorder) Close() error {
	r.db.Close()
	return nil
}

// buildInsertBatch queues one insert per row.
func buildInsertBatch(rows []Row) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, row := range rows {
		q := row.Quote
		batch.Queue(insertQuoteSQL,
			row.RecordedAt, int64(row.Version), string(row.Source),
			q.Symbol, q.Name, q.Market,
			q.Price, q.Change, q.ChangePercent, q.High, q.Low, q.Volume, q.PrevClose,
		)
	}
	return batch
}
