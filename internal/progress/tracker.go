// Package progress tracks which JSONL shards a generate_*_jsonl run has
// already written, backing the --resume flag (spec 4.7: "a resumed run
// skips any shard already committed"). It is the teacher's tar-ingestion
// Tracker generalized from byte-offset/tar-position checkpoints to
// shard-file completion records: the same SQLite-backed, cache-then-DB
// resume shape, applied to a different unit of work.
package progress

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ddbj/dblinkd/internal/database"
)

// RunState is one emitter run's lifecycle state, the same vocabulary the
// teacher's ingestion Tracker uses for a tar sync.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// Run identifies one generate_*_jsonl invocation: one family on one run
// date. A full run (--full) always starts a fresh Run rather than resuming
// a prior one, since --full and --resume are mutually exclusive per spec 6.
type Run struct {
	ID        int64
	Family    string
	RunDate   string
	State     RunState
	StartedAt time.Time
	UpdatedAt time.Time
}

// Tracker manages shard-completion bookkeeping for one open database
// connection. Callers share one Tracker across a run's worker pool;
// MarkShardDone is safe to call concurrently.
type Tracker struct {
	db             *sql.DB
	runID          int64
	completedCache map[string]bool
}

// NewTracker opens (creating if necessary) the shard-progress tables in db.
func NewTracker(db *database.DB) (*Tracker, error) {
	t := &Tracker{db: db.GetSQLDB(), completedCache: make(map[string]bool)}
	if err := t.createTables(); err != nil {
		return nil, fmt.Errorf("progress: create tables: %w", err)
	}
	return t, nil
}

func (t *Tracker) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS emitter_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			family TEXT NOT NULL,
			run_date TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'running',
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			error_message TEXT,
			UNIQUE(family, run_date)
		)`,
		`CREATE TABLE IF NOT EXISTS emitter_shards (
			run_id INTEGER NOT NULL,
			shard_key TEXT NOT NULL,
			records_written INTEGER DEFAULT 0,
			completed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, shard_key),
			FOREIGN KEY (run_id) REFERENCES emitter_runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emitter_shards_run ON emitter_shards(run_id)`,
	}
	for _, q := range queries {
		if _, err := t.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// ShardKey builds the identity a shard's completion record is keyed by:
// stable across resumed runs because it derives from the shard's own
// (source, type, shard-index) triple, not from wall-clock state.
func ShardKey(source, typ string, shardIndex int) string {
	return fmt.Sprintf("%s/%s/%04d", source, typ, shardIndex)
}

// StartRun opens a bookkeeping run for family on runDate. When resume is
// true and an incomplete run already exists for that (family, runDate)
// pair, it is reused and its already-completed shard keys are preloaded
// into the cache so IsShardDone reports them immediately; otherwise (fresh
// run, or resume requested but nothing to resume) a new run record is
// created and any stale shard records for a same-day retry are cleared.
func (t *Tracker) StartRun(family, runDate string, resume bool) error {
	t.completedCache = make(map[string]bool)

	if resume {
		var id int64
		var state RunState
		err := t.db.QueryRow(
			`SELECT id, state FROM emitter_runs WHERE family = ? AND run_date = ?`,
			family, runDate,
		).Scan(&id, &state)
		if err == nil && state != RunStateCompleted {
			t.runID = id
			if _, err := t.db.Exec(
				`UPDATE emitter_runs SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				RunStateRunning, id,
			); err != nil {
				return fmt.Errorf("progress: resume run: %w", err)
			}
			return t.loadCompletedShards(id)
		}
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("progress: query run: %w", err)
		}
	}

	res, err := t.db.Exec(
		`INSERT INTO emitter_runs (family, run_date, state) VALUES (?, ?, ?)
		 ON CONFLICT(family, run_date) DO UPDATE SET
		   state = excluded.state, started_at = CURRENT_TIMESTAMP,
		   updated_at = CURRENT_TIMESTAMP, error_message = NULL`,
		family, runDate, RunStateRunning,
	)
	if err != nil {
		return fmt.Errorf("progress: create run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		if qerr := t.db.QueryRow(
			`SELECT id FROM emitter_runs WHERE family = ? AND run_date = ?`, family, runDate,
		).Scan(&id); qerr != nil {
			return fmt.Errorf("progress: resolve run id: %w", qerr)
		}
	}
	t.runID = id
	_, err = t.db.Exec(`DELETE FROM emitter_shards WHERE run_id = ?`, id)
	return err
}

func (t *Tracker) loadCompletedShards(runID int64) error {
	rows, err := t.db.Query(`SELECT shard_key FROM emitter_shards WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("progress: load completed shards: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		t.completedCache[key] = true
	}
	return rows.Err()
}

// IsShardDone reports whether shardKey was already committed by a prior
// attempt at the current run, so --resume can skip it.
func (t *Tracker) IsShardDone(shardKey string) bool {
	return t.completedCache[shardKey]
}

// MarkShardDone records shardKey as committed with records written, and
// updates the in-memory cache so a later IsShardDone call in the same
// process sees it immediately.
func (t *Tracker) MarkShardDone(shardKey string, records int) error {
	_, err := t.db.Exec(
		`INSERT INTO emitter_shards (run_id, shard_key, records_written) VALUES (?, ?, ?)
		 ON CONFLICT(run_id, shard_key) DO UPDATE SET
		   records_written = excluded.records_written, completed_at = CURRENT_TIMESTAMP`,
		t.runID, shardKey, records,
	)
	if err != nil {
		return fmt.Errorf("progress: mark shard done %s: %w", shardKey, err)
	}
	t.completedCache[shardKey] = true
	return nil
}

// CompleteRun marks the current run finished successfully.
func (t *Tracker) CompleteRun() error {
	_, err := t.db.Exec(
		`UPDATE emitter_runs SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		RunStateCompleted, t.runID,
	)
	return err
}

// FailRun marks the current run failed, recording msg so a later --resume
// can still pick it up (only Completed runs are treated as done).
func (t *Tracker) FailRun(msg string) error {
	_, err := t.db.Exec(
		`UPDATE emitter_runs SET state = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		RunStateFailed, msg, t.runID,
	)
	return err
}

// ShardsCompleted returns how many shards the current run has committed so
// far, for show-log-summary-style reporting.
func (t *Tracker) ShardsCompleted() int {
	return len(t.completedCache)
}

// CleanupOldRuns removes completed or failed run records (and their shard
// records) older than olderThan, the same retention sweep the teacher's
// CleanupOldProgress performs.
func (t *Tracker) CleanupOldRuns(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	_, err := t.db.Exec(
		`DELETE FROM emitter_shards WHERE run_id IN (
			SELECT id FROM emitter_runs WHERE (state = ? OR state = ?) AND updated_at < ?
		)`, RunStateCompleted, RunStateFailed, cutoff,
	)
	if err != nil {
		return err
	}
	_, err = t.db.Exec(
		`DELETE FROM emitter_runs WHERE (state = ? OR state = ?) AND updated_at < ?`,
		RunStateCompleted, RunStateFailed, cutoff,
	)
	return err
}
