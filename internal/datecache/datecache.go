// Package datecache snapshots the external PostgreSQL date-of-record
// tables into a columnar DuckDB store for random-access lookup during
// JSONL emission, rebuilt once per run per DESIGN NOTES: "the cache is
// authoritative during one pipeline run."
package datecache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ddbj/dblinkd/internal/datesource"
)

// DB wraps the date cache DuckDB store.
type DB struct {
	*sql.DB
	path    string
	builtAt time.Time
}

const dateCacheDDL = `
CREATE TABLE IF NOT EXISTS date_cache (
	accession TEXT NOT NULL,
	date_created TIMESTAMP,
	date_modified TIMESTAMP,
	date_published TIMESTAMP
);
`

// Build queries every family from src and writes a fresh date_cache table
// at path, replacing any prior content. A connection failure from src
// during FetchAll propagates to the caller, which must raise CRITICAL.
func Build(ctx context.Context, path string, src *datesource.Client, families []datesource.Family) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("datecache: remove stale store: %w", err)
	}

	sqlDB, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("datecache: open %s: %w", path, err)
	}
	defer sqlDB.Close()

	if _, err := sqlDB.ExecContext(ctx, dateCacheDDL); err != nil {
		return fmt.Errorf("datecache: create table: %w", err)
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("datecache: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO date_cache (accession, date_created, date_modified, date_published) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("datecache: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, family := range families {
		err := src.FetchAll(ctx, family, func(rec datesource.DateRecord) error {
			_, err := stmt.ExecContext(ctx, rec.Accession, rec.DateCreated, rec.DateModified, rec.DatePublished)
			return err
		})
		if err != nil {
			return fmt.Errorf("datecache: fetch family %s: %w", family, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datecache: commit: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_date_cache_accession ON date_cache(accession)`); err != nil {
		return fmt.Errorf("datecache: create unique index: %w", err)
	}
	return nil
}

// Open opens an existing date cache store for read-only lookup during
// JSONL emission.
func Open(path string) (*DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("datecache: stat %s: %w", path, err)
	}
	sqlDB, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("datecache: open %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path, builtAt: info.ModTime()}, nil
}

// BuiltAt returns the cache file's modification time, used to fail fast
// when the cache predates the current run.
func (db *DB) BuiltAt() time.Time { return db.builtAt }

// Dates is one accession's cached timestamps.
type Dates struct {
	Accession     string
	DateCreated   time.Time
	DateModified  time.Time
	DatePublished time.Time
}

// Lookup returns the cached dates for acc, or false if absent. Per
// invariant I5, a present value always overrides any XML-derived date.
func (db *DB) Lookup(ctx context.Context, acc string) (Dates, bool, error) {
	var d Dates
	d.Accession = acc
	var created, modified, published sql.NullTime
	err := db.QueryRowContext(ctx, `SELECT date_created, date_modified, date_published FROM date_cache WHERE accession = $1`, acc).
		Scan(&created, &modified, &published)
	if err == sql.ErrNoRows {
		return Dates{}, false, nil
	}
	if err != nil {
		return Dates{}, false, fmt.Errorf("datecache: lookup %s: %w", acc, err)
	}
	if created.Valid {
		d.DateCreated = created.Time
	}
	if modified.Valid {
		d.DateModified = modified.Time
	}
	if published.Valid {
		d.DatePublished = published.Time
	}
	return d, true, nil
}

// LookupBulk is the batched counterpart to Lookup, used once per shard
// rather than once per record per DESIGN NOTES §9.
func (db *DB) LookupBulk(ctx context.Context, accs []string) (map[string]Dates, error) {
	result := make(map[string]Dates, len(accs))
	if len(accs) == 0 {
		return result, nil
	}
	args := make([]any, len(accs))
	placeholders := ""
	for i, a := range accs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args[i] = a
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT accession, date_created, date_modified, date_published FROM date_cache WHERE accession IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("datecache: lookup bulk: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d Dates
		var created, modified, published sql.NullTime
		if err := rows.Scan(&d.Accession, &created, &modified, &published); err != nil {
			return nil, fmt.Errorf("datecache: scan bulk row: %w", err)
		}
		if created.Valid {
			d.DateCreated = created.Time
		}
		if modified.Valid {
			d.DateModified = modified.Time
		}
		if published.Valid {
			d.DatePublished = published.Time
		}
		result[d.Accession] = d
	}
	return result, rows.Err()
}

// Close closes the underlying DuckDB connection.
func (db *DB) Close() error { return db.DB.Close() }
