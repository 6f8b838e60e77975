package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists quote rows to a local SQLite file.
type SQLiteRecorder struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database at path.
func NewSQLiteRecorder(path string, logger *slog.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL lets readers query history while the writer appends.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	logger.Info("sqlite recorder opened", "path", path)

	return &SQLiteRecorder{db: db, logger: logger}, nil
}

func (r *SQLiteRecorder) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quote_history (
			recorded_at    INTEGER NOT NULL,
			version        INTEGER NOT NULL,
			source         TEXT    NOT NULL,
			symbol         TEXT    NOT NULL,
			name           TEXT,
			market         TEXT,
			price          REAL,
			change         REAL,
			change_percent REAL,
			high           REAL,
			low            REAL,
			volume         REAL,
			prev_close     REAL,
			PRIMARY KEY (symbol, recorded_at, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quote_history_ts ON quote_history(recorded_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Insert(ctx context.Context, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO quote_history
		(recorded_at, version, source, symbol, name, market,
		 price, change, change_percent, high, low, volume, prev_close)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		q := row.Quote
		res, err := stmt.ExecContext(ctx,
			row.RecordedAt.UnixMicro(), int64(row.Version), string(row.Source),
			q.Symbol, q.Name, q.Market,
			q.Price, q.Change, q.ChangePercent, q.High, q.Low, q.Volume, q.PrevClose,
		)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", q.Symbol, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *SQLiteRecorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM quote_history WHERE recorded_at < ?`, cutoff.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}

// History returns the recorded rows for symbol, oldest first.
func (r *SQLiteRecorder) History(ctx context.Context, symbol string) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		recorded_at, version, source, symbol, name, market,
		price, change, change_percent, high, low, volume, prev_close
		FROM quote_history WHERE symbol = ? ORDER BY recorded_at, version`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row        Row
			recordedAt int64
			version    int64
			source     string
		)
		q := &row.Quote
		if err := rows.Scan(&recordedAt, &version, &source, &q.Symbol, &q.Name, &q.Market,
			&q.Price, &q.Change, &q.ChangePercent, &q.High, &q.Low, &q.Volume, &q.PrevClose); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		row.RecordedAt = time.UnixMicro(recordedAt)
		row.Version = uint64(version)
		row.Source = storeSource(source)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
