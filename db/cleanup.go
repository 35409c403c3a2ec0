package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CleanupResult reports what a retention pass removed.
type CleanupResult struct {
	Expired  int64 // older than the retention window
	Trimmed  int64 // beyond the newest keep runs
	Duration time.Duration
}

// Total is the number of deleted runs.
func (r CleanupResult) Total() int64 { return r.Expired + r.Trimmed }

// Cleanup deletes runs that started more than retention ago, then all but
// the newest keep runs. A zero retention or keep disables that rule. Both
// deletes share a transaction; VACUUM runs afterwards when anything was
// removed.
//
// Example:
//
//	res, err := d.Cleanup(ctx, 30*24*time.Hour, 10000)
func (d *Database) Cleanup(ctx context.Context, retention time.Duration, keep int) (CleanupResult, error) {
	start := time.Now()
	var result CleanupResult
	if retention < 0 || keep < 0 {
		return result, fmt.Errorf("retention and keep must be non-negative, got %v and %d", retention, keep)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return result, ErrClosed
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if retention > 0 {
		cutoff := formatTime(time.Now().Add(-retention))
		result.Expired, err = execCount(ctx, tx, "DELETE FROM render_runs WHERE started_at < ?", cutoff)
		if err != nil {
			return result, fmt.Errorf("failed to delete expired runs: %w", err)
		}
	}
	if keep > 0 {
		result.Trimmed, err = execCount(ctx, tx, `
			DELETE FROM render_runs WHERE id NOT IN (
				SELECT id FROM render_runs ORDER BY started_at DESC, id DESC LIMIT ?
			)`, keep)
		if err != nil {
			return result, fmt.Errorf("failed to trim runs: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	if result.Total() > 0 {
		if _, err := d.conn.ExecContext(ctx, "VACUUM"); err != nil {
			return result, fmt.Errorf("failed to vacuum: %w", err)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
