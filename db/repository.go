package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rawdevelop/params"
)

// Run sources.
const (
	SourceServer = "server"
	SourceCLI    = "cli"
)

// List limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 1000
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is one row of render_runs.
type RunRecord struct {
	ID         int64                `json:"id"`
	RequestID  string               `json:"request_id"`
	Generation uint64               `json:"generation"`
	Source     string               `json:"source"`
	Path       string               `json:"path"`
	Outcome    string               `json:"outcome"`
	Stage      string               `json:"stage,omitempty"`
	Width      int                  `json:"width,omitempty"`
	Height     int                  `json:"height,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	DurationMS int64                `json:"duration_ms"`
	Params     *params.ParameterSet `json:"params,omitempty"`
	Error      string               `json:"error,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Path    string
	Outcome string
	Source  string
	Since   time.Time
	Limit   int
}

// OutcomeSummary aggregates runs with one outcome.
type OutcomeSummary struct {
	Outcome       string  `json:"outcome"`
	Count         int64   `json:"count"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

const insertRunQuery = `
	INSERT INTO render_runs (
		request_id, generation, source, path, outcome, stage,
		width, height, started_at, duration_ms, params, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertRun stores r and returns its row id.
func (d *Database) InsertRun(ctx context.Context, r RunRecord) (int64, error) {
	args, err := insertArgs(r)
	if err != nil {
		return 0, err
	}
	var id int64
	err = d.withConn(func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, insertRunQuery, args...)
		if err != nil {
			return fmt.Errorf("failed to insert render run: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		return nil
	})
	return id, err
}

// InsertRuns stores rs in one transaction.
func (d *Database) InsertRuns(ctx context.Context, rs []RunRecord) error {
	if len(rs) == 0 {
		return nil
	}
	return d.withConn(func(conn *sql.DB) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, insertRunQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rs {
			args, err := insertArgs(r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert render run: %w", err)
			}
		}
		return tx.Commit()
	})
}

func insertArgs(r RunRecord) ([]any, error) {
	if r.Source == "" {
		r.Source = SourceServer
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	var ps any
	if r.Params != nil {
		b, err := json.Marshal(r.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		ps = string(b)
	}
	return []any{
		r.RequestID,
		int64(r.Generation),
		r.Source,
		r.Path,
		r.Outcome,
		nullString(r.Stage),
		r.Width,
		r.Height,
		formatTime(r.StartedAt),
		r.DurationMS,
		ps,
		nullString(r.Error),
	}, nil
}

// ListRuns returns runs matching f, newest first.
func (d *Database) ListRuns(ctx context.Context, f RunFilter) ([]RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Path != "" {
		where = append(where, "path = ?")
		args = append(args, f.Path)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if !f.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(f.Since))
	}

	query := `
		SELECT id, request_id, generation, source, path, outcome,
		       COALESCE(stage, ''), width, height, started_at, duration_ms,
		       COALESCE(params, ''), COALESCE(error_message, ''), created_at
		FROM render_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	var runs []RunRecord
	err := d.withConn(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query render runs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating render runs: %w", err)
		}
		return nil
	})
	return runs, err
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		r                          RunRecord
		gen                        int64
		started, created, psString string
	)
	err := rows.Scan(
		&r.ID,
		&r.RequestID,
		&gen,
		&r.Source,
		&r.Path,
		&r.Outcome,
		&r.Stage,
		&r.Width,
		&r.Height,
		&started,
		&r.DurationMS,
		&psString,
		&r.Error,
		&created,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to scan render run: %w", err)
	}
	r.Generation = uint64(gen)
	r.StartedAt = parseTime(started)
	r.CreatedAt = parseTime(created)
	if psString != "" {
		var ps params.ParameterSet
		if err := json.Unmarshal([]byte(psString), &ps); err != nil {
			return RunRecord{}, fmt.Errorf("failed to decode params of run %d: %w", r.ID, err)
		}
		r.Params = &ps
	}
	return r, nil
}

// CountRuns returns the number of stored runs.
func (d *Database) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := d.withConn(func(conn *sql.DB) error {
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM render_runs").Scan(&n); err != nil {
			return fmt.Errorf("failed to count render runs: %w", err)
		}
		return nil
	})
	return n, err
}

// Summary aggregates runs per outcome, ordered by outcome name.
func (d *Database) Summary(ctx context.Context) ([]OutcomeSummary, error) {
	var out []OutcomeSummary
	err := d.withConn(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT outcome, COUNT(*), AVG(duration_ms)
			FROM render_runs
			GROUP BY outcome
			ORDER BY outcome`)
		if err != nil {
			return fmt.Errorf("failed to summarize render runs: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var s OutcomeSummary
			if err := rows.Scan(&s.Outcome, &s.Count, &s.AvgDurationMS); err != nil {
				return fmt.Errorf("failed to scan summary row: %w", err)
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

// nullString stores an empty string as NULL.
func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	default:
		return n
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// parseTime accepts stored timestamps, SQLite's CURRENT_TIMESTAMP text and
// the RFC 3339 form database/sql produces when the driver returns a time.
func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
