package dblinkdb

import (
	"context"
	"fmt"
	"os"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
)

// Finalize canonicalizes, blacklist-filters, dedups, and indexes the
// relation table in place, then renames tmpPath to finalPath. It assumes
// exclusive access to tmpPath (caller holds the runlog.WriteLock).
func Finalize(ctx context.Context, tmpPath, finalPath string, blacklists blacklist.BySource) error {
	db, err := Open(tmpPath)
	if err != nil {
		return fmt.Errorf("dblinkdb: finalize open: %w", err)
	}
	defer db.Close()

	// Canonicalize by Less's order: AccessionType ordinal ascending, then
	// accession lexical, not src_type/dst_type's raw TEXT collation (the
	// stored strings' alphabetical order does not match Ordinal()).
	srcOrd := accession.OrdinalSQLCase("src_type")
	dstOrd := accession.OrdinalSQLCase("dst_type")
	swapCond := fmt.Sprintf(`(%s) > (%s) OR ((%s) = (%s) AND dst_accession < src_accession)`, srcOrd, dstOrd, srcOrd, dstOrd)
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE relation SET
			src_type = CASE WHEN %s THEN dst_type ELSE src_type END,
			src_accession = CASE WHEN %s THEN dst_accession ELSE src_accession END,
			dst_type = CASE WHEN %s THEN src_type ELSE dst_type END,
			dst_accession = CASE WHEN %s THEN src_accession ELSE dst_accession END
	`, swapCond, swapCond, swapCond, swapCond)); err != nil {
		return fmt.Errorf("dblinkdb: canonicalize: %w", err)
	}

	if err := deleteBlacklisted(ctx, db, blacklists); err != nil {
		return fmt.Errorf("dblinkdb: blacklist filter: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE relation_dedup AS SELECT DISTINCT src_type, src_accession, dst_type, dst_accession FROM relation`); err != nil {
		return fmt.Errorf("dblinkdb: dedup: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DROP TABLE relation`); err != nil {
		return fmt.Errorf("dblinkdb: drop pre-dedup table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE relation_dedup RENAME TO relation`); err != nil {
		return fmt.Errorf("dblinkdb: rename dedup table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE UNIQUE INDEX idx_relation_canonical ON relation(src_type, src_accession, dst_type, dst_accession)`); err != nil {
		return fmt.Errorf("dblinkdb: create canonical index: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX idx_relation_src ON relation(src_type, src_accession)`); err != nil {
		return fmt.Errorf("dblinkdb: create src index: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX idx_relation_dst ON relation(dst_type, dst_accession)`); err != nil {
		return fmt.Errorf("dblinkdb: create dst index: %w", err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("dblinkdb: close before rename: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("dblinkdb: rename tmp to final: %w", err)
	}
	return nil
}

// deleteBlacklisted removes any relation row whose endpoint accession is a
// member of its family's blacklist, per I3.
func deleteBlacklisted(ctx context.Context, db *DB, sets blacklist.BySource) error {
	if sets == nil {
		return nil
	}
	for source, set := range sets {
		if set.Len() == 0 {
			continue
		}
		accs := set.Slice()
		placeholders := make([]any, len(accs))
		for i, a := range accs {
			placeholders[i] = a
		}
		query, args := inClauseQuery(
			`DELETE FROM relation WHERE src_accession IN (%s) OR dst_accession IN (%s)`,
			placeholders,
		)
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("blacklist source %s: %w", source, err)
		}
	}
	return nil
}

// inClauseQuery expands a two-%s query template where both placeholders
// share the same IN-list, duplicating the args for the second occurrence.
func inClauseQuery(template string, args []any) (string, []any) {
	n := len(args)
	left := placeholderList(1, n)
	right := placeholderList(n+1, n)
	query := fmt.Sprintf(template, left, right)
	full := make([]any, 0, n*2)
	full = append(full, args...)
	full = append(full, args...)
	return query, full
}

func placeholderList(start, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("$%d", start+i)
	}
	return s
}
