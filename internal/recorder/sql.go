package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"BreakoutScanner/internal/model"
)

// SQLRecorder persists scan history to SQLite or PostgreSQL.
type SQLRecorder struct {
	db      *sqlx.DB
	driver  string
	timeout time.Duration
}

// NewSQLRecorder opens (or creates) the database and runs migrations.
// driver is "sqlite" or "postgres".
func NewSQLRecorder(driver, dsn string) (*SQLRecorder, error) {
	if driver != "sqlite" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver == "sqlite" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// One writer connection; WAL lets readers (dashboards) run alongside it.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	r := &SQLRecorder{db: db, driver: driver, timeout: 30 * time.Second}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("driver", driver).Msg("scan recorder opened")
	return r, nil
}

func (r *SQLRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_batches (
			id           TEXT PRIMARY KEY,
			horizon      TEXT NOT NULL,
			requested    INTEGER NOT NULL,
			succeeded    INTEGER NOT NULL,
			failed       INTEGER NOT NULL,
			buys         INTEGER NOT NULL,
			started_at   BIGINT NOT NULL,
			completed_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_started ON scan_batches(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_results (
			batch_id       TEXT NOT NULL,
			ticker         TEXT NOT NULL,
			horizon        TEXT NOT NULL,
			as_of          BIGINT NOT NULL,
			current_price  DOUBLE PRECISION,
			breakout_score DOUBLE PRECISION,
			threshold      DOUBLE PRECISION,
			decision       TEXT,
			target_price   DOUBLE PRECISION,
			stop_loss      DOUBLE PRECISION,
			indicators     TEXT,
			PRIMARY KEY (batch_id, ticker)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_ticker ON scan_results(ticker)`,

		`CREATE TABLE IF NOT EXISTS scan_failures (
			batch_id   TEXT NOT NULL,
			ticker     TEXT NOT NULL,
			error_kind TEXT,
			stage      TEXT,
			message    TEXT,
			PRIMARY KEY (batch_id, ticker)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordBatch writes the batch and all of its rows in one transaction.
func (r *SQLRecorder) RecordBatch(ctx context.Context, batch *model.ScanBatch) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO scan_batches
		(id, horizon, requested, succeeded, failed, buys, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?)`),
		batch.ID, batch.Horizon, len(batch.Requested), len(batch.Results), len(batch.Failures),
		len(batch.Buys()), batch.StartedAt.Unix(), batch.CompletedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", batch.ID, err)
	}

	insResult := tx.Rebind(`INSERT INTO scan_results
		(batch_id, ticker, horizon, as_of, current_price, breakout_score, threshold,
		 decision, target_price, stop_loss, indicators)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	for _, res := range batch.Results {
		ind, err := json.Marshal(res.Indicators)
		if err != nil {
			return fmt.Errorf("marshal indicators: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insResult,
			batch.ID, res.Ticker, res.Horizon, res.AsOf.Unix(), res.CurrentPrice, res.BreakoutScore,
			res.Threshold, string(res.Decision), res.TargetPrice, res.StopLoss, string(ind),
		); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Ticker, err)
		}
	}

	insFailure := tx.Rebind(`INSERT INTO scan_failures
		(batch_id, ticker, error_kind, stage, message) VALUES (?,?,?,?,?)`)
	for _, f := range batch.Failures {
		if _, err := tx.ExecContext(ctx, insFailure,
			batch.ID, f.Ticker, string(f.Kind), string(f.Stage), f.Message,
		); err != nil {
			return fmt.Errorf("insert failure %s: %w", f.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch %s: %w", batch.ID, err)
	}
	return nil
}

// Recent returns the latest batches, newest first.
func (r *SQLRecorder) Recent(ctx context.Context, limit int) ([]BatchSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if limit <= 0 {
		limit = 20
	}
	var out []BatchSummary
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT
		id, horizon, requested, succeeded, failed, buys, started_at, completed_at
		FROM scan_batches ORDER BY started_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	return out, nil
}

type resultRow struct {
	Ticker        string  `db:"ticker"`
	Horizon       string  `db:"horizon"`
	AsOf          int64   `db:"as_of"`
	CurrentPrice  float64 `db:"current_price"`
	BreakoutScore float64 `db:"breakout_score"`
	Threshold     float64 `db:"threshold"`
	Decision      string  `db:"decision"`
	TargetPrice   float64 `db:"target_price"`
	StopLoss      float64 `db:"stop_loss"`
	Indicators    string  `db:"indicators"`
}

// Results returns the stored results of one batch by descending score.
func (r *SQLRecorder) Results(ctx context.Context, batchID string) ([]model.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var rows []resultRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT
		ticker, horizon, as_of, current_price, breakout_score, threshold,
		decision, target_price, stop_loss, indicators
		FROM scan_results WHERE batch_id = ? ORDER BY breakout_score DESC, ticker`), batchID)
	if err != nil {
		return nil, fmt.Errorf("query results %s: %w", batchID, err)
	}
	out := make([]model.ScanResult, 0, len(rows))
	for _, row := range rows {
		res := model.ScanResult{
			Ticker:        row.Ticker,
			Horizon:       row.Horizon,
			AsOf:          time.Unix(row.AsOf, 0).UTC(),
			CurrentPrice:  row.CurrentPrice,
			BreakoutScore: row.BreakoutScore,
			Threshold:     row.Threshold,
			Decision:      model.Action(row.Decision),
			TargetPrice:   row.TargetPrice,
			StopLoss:      row.StopLoss,
		}
		if row.Indicators != "" {
			if err := json.Unmarshal([]byte(row.Indicators), &res.Indicators); err != nil {
				return nil, fmt.Errorf("decode indicators %s: %w", row.Ticker, err)
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *SQLRecorder) Close() error {
	log.Info().Str("driver", r.driver).Msg("closing scan recorder")
	return r.db.Close()
}
