package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// Summary is the level/debug-category breakdown show_log_summary reports.
type Summary struct {
	ByLevel    map[Level]int64
	ByCategory map[string]int64
	Runs       []RunSummary
}

// RunSummary is one run's record counts, ordered most-recent-first.
type RunSummary struct {
	RunID   string
	RunName string
	Total   int64
	Errors  int64
}

// query opens an in-memory DuckDB handle and points it at the run log
// directory's JSONL files via read_json_auto, the same pattern
// accessionsdb.Build uses for read_csv: no separate ingest step, DuckDB
// reads the source files directly. logsDir is typically paths.Paths.LogsDir().
func query(ctx context.Context, logsDir string) (*sql.DB, func(), error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, nil, fmt.Errorf("runlog: open duckdb: %w", err)
	}
	glob := filepath.Join(logsDir, "*.log.jsonl")
	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE VIEW logs AS SELECT * FROM read_json_auto('%s', union_by_name=true)`, glob,
	)); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("runlog: open log view over %s: %w", glob, err)
	}
	return db, func() { db.Close() }, nil
}

// Tail returns the most recent n log records across all run log files,
// optionally filtered to one run_id, for show_log.
func Tail(ctx context.Context, logsDir, runID string, n int) ([]Record, error) {
	db, closeFn, err := query(ctx, logsDir)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	q := `SELECT ts, level, run_id, run_name, msg,
	             coalesce(file, ''), coalesce(accession, ''),
	             coalesce(source, ''), coalesce(debug_category, ''), coalesce(error, '')
	      FROM logs`
	args := []any{}
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, n)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("runlog: tail query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Timestamp, &r.Level, &r.RunID, &r.RunName, &r.Message,
			&r.File, &r.Accession, &r.Source, &r.DebugCategory, &r.Error); err != nil {
			return nil, fmt.Errorf("runlog: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summarize aggregates every run log file under logsDir into per-level and
// per-debug-category counts plus a per-run rollup, for show_log_summary.
func Summarize(ctx context.Context, logsDir string) (Summary, error) {
	db, closeFn, err := query(ctx, logsDir)
	if err != nil {
		return Summary{}, err
	}
	defer closeFn()

	summary := Summary{ByLevel: make(map[Level]int64), ByCategory: make(map[string]int64)}

	levelRows, err := db.QueryContext(ctx, `SELECT level, count(*) FROM logs GROUP BY level`)
	if err != nil {
		return Summary{}, fmt.Errorf("runlog: level summary: %w", err)
	}
	for levelRows.Next() {
		var level Level
		var count int64
		if err := levelRows.Scan(&level, &count); err != nil {
			levelRows.Close()
			return Summary{}, err
		}
		summary.ByLevel[level] = count
	}
	levelRows.Close()
	if err := levelRows.Err(); err != nil {
		return Summary{}, err
	}

	catRows, err := db.QueryContext(ctx,
		`SELECT debug_category, count(*) FROM logs WHERE debug_category != '' GROUP BY debug_category`)
	if err != nil {
		return Summary{}, fmt.Errorf("runlog: category summary: %w", err)
	}
	for catRows.Next() {
		var category string
		var count int64
		if err := catRows.Scan(&category, &count); err != nil {
			catRows.Close()
			return Summary{}, err
		}
		summary.ByCategory[category] = count
	}
	catRows.Close()
	if err := catRows.Err(); err != nil {
		return Summary{}, err
	}

	runRows, err := db.QueryContext(ctx, `
		SELECT run_id, run_name, count(*),
		       sum(CASE WHEN level IN ('ERROR', 'CRITICAL') THEN 1 ELSE 0 END)
		FROM logs GROUP BY run_id, run_name ORDER BY max(ts) DESC`)
	if err != nil {
		return Summary{}, fmt.Errorf("runlog: run summary: %w", err)
	}
	defer runRows.Close()
	for runRows.Next() {
		var rs RunSummary
		if err := runRows.Scan(&rs.RunID, &rs.RunName, &rs.Total, &rs.Errors); err != nil {
			return Summary{}, err
		}
		summary.Runs = append(summary.Runs, rs)
	}
	return summary, runRows.Err()
}
