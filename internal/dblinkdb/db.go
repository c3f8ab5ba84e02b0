package dblinkdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ddbj/dblinkd/internal/accession"
)

// DB wraps the DuckDB-backed relation table. Writers must hold a
// runlog.WriteLock for the lifetime of the handle; the table has exactly one
// writer at a time by construction (internal/dblink's extractor sequencing).
type DB struct {
	*sql.DB
	path string
}

const relationTableDDL = `
CREATE TABLE IF NOT EXISTS relation (
	src_type TEXT NOT NULL,
	src_accession TEXT NOT NULL,
	dst_type TEXT NOT NULL,
	dst_accession TEXT NOT NULL
);
`

// Open creates (if absent) and opens the DBLink DuckDB file at path and
// ensures the relation table exists.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("dblinkdb: open %s: %w", path, err)
	}
	if _, err := sqlDB.Exec(relationTableDDL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("dblinkdb: create relation table: %w", err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the on-disk location of the DuckDB file this handle was
// opened against.
func (db *DB) Path() string { return db.path }

// InsertBatch appends rels in a single transaction via a multi-row INSERT,
// matching the teacher's single-transaction-per-batch discipline. Batch
// size is the caller's concern (10,000-100,000 rows per DESIGN NOTES §9).
func (db *DB) InsertBatch(ctx context.Context, rels []Relation) error {
	if len(rels) == 0 {
		return nil
	}
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dblinkdb: begin tx: %w", err)
	}
	defer tx.Rollback()

	var sb strings.Builder
	sb.WriteString("INSERT INTO relation (src_type, src_accession, dst_type, dst_accession) VALUES ")
	args := make([]any, 0, len(rels)*4)
	for i, r := range rels {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, r.SrcType.String(), r.SrcAccession, r.DstType.String(), r.DstAccession)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("dblinkdb: insert batch of %d: %w", len(rels), err)
	}
	return tx.Commit()
}

// CountRelations returns the number of rows currently in the relation
// table, used by show_dblink_counts.
func (db *DB) CountRelations(ctx context.Context) (int64, error) {
	var n int64
	err := db.DB.QueryRowContext(ctx, "SELECT count(*) FROM relation").Scan(&n)
	return n, err
}

// EdgeKindCount is one (src_type, dst_type) pair's row count.
type EdgeKindCount struct {
	SrcType accession.Type
	DstType accession.Type
	Count   int64
}

// CountByEdgeKind breaks CountRelations down by (src_type, dst_type) pair,
// the per-kind detail show_dblink_counts prints alongside the grand total.
func (db *DB) CountByEdgeKind(ctx context.Context) ([]EdgeKindCount, error) {
	rows, err := db.DB.QueryContext(ctx,
		`SELECT src_type, dst_type, count(*) FROM relation GROUP BY src_type, dst_type ORDER BY count(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("dblinkdb: count by edge kind: %w", err)
	}
	defer rows.Close()

	var out []EdgeKindCount
	for rows.Next() {
		var srcStr, dstStr string
		var count int64
		if err := rows.Scan(&srcStr, &dstStr, &count); err != nil {
			return nil, fmt.Errorf("dblinkdb: scan edge kind count: %w", err)
		}
		srcType, _ := accession.ParseType(srcStr)
		dstType, _ := accession.ParseType(dstStr)
		out = append(out, EdgeKindCount{SrcType: srcType, DstType: dstType, Count: count})
	}
	return out, rows.Err()
}

// Close closes the underlying DuckDB connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// RemoveFiles deletes the DuckDB file (and its WAL sidecar, if any) at
// path. Used when rebuilding a tmp DB from scratch.
func RemoveFiles(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	wal := path + ".wal"
	if err := os.Remove(wal); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// scanAccession is a small helper for queries selecting (type, accession)
// pairs; nothing in the package calls it at present.
func scanAccession(rows *sql.Rows) (accession.Type, string, error) {
	var typStr, acc string
	if err := rows.Scan(&typStr, &acc); err != nil {
		return accession.Unknown, "", err
	}
	t, ok := accession.ParseType(typStr)
	if !ok {
		return accession.Unknown, "", fmt.Errorf("dblinkdb: unknown accession type %q", typStr)
	}
	return t, acc, nil
}
