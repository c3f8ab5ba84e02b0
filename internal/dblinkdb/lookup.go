package dblinkdb

import (
	"context"
	"fmt"

	"github.com/ddbj/dblinkd/internal/accession"
)

// Xref is one cross-referenced endpoint discovered for a queried accession.
type Xref struct {
	Type       accession.Type
	Accession  string
}

// RelatedBulk looks up, for every accession in accs, the set of edges where
// it appears as either endpoint, and returns the opposite endpoint keyed by
// the queried accession. Batched per shard (callers pass every accession a
// shard will need in one call) rather than per record, per DESIGN NOTES §9.
func (db *DB) RelatedBulk(ctx context.Context, accs []string) (map[string][]Xref, error) {
	result := make(map[string][]Xref, len(accs))
	if len(accs) == 0 {
		return result, nil
	}

	args := make([]any, len(accs))
	for i, a := range accs {
		args[i] = a
		result[a] = nil
	}
	leftList := placeholderList(1, len(args))
	rightList := placeholderList(len(args)+1, len(args))

	query := fmt.Sprintf(`
		SELECT src_accession, dst_type, dst_accession FROM relation WHERE src_accession IN (%s)
		UNION ALL
		SELECT dst_accession, src_type, src_accession FROM relation WHERE dst_accession IN (%s)
	`, leftList, rightList)

	fullArgs := make([]any, 0, len(args)*2)
	fullArgs = append(fullArgs, args...)
	fullArgs = append(fullArgs, args...)

	rows, err := db.QueryContext(ctx, query, fullArgs...)
	if err != nil {
		return nil, fmt.Errorf("dblinkdb: related bulk query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var queried, dstTypeStr, dstAcc string
		if err := rows.Scan(&queried, &dstTypeStr, &dstAcc); err != nil {
			return nil, fmt.Errorf("dblinkdb: scan related row: %w", err)
		}
		dstType, ok := accession.ParseType(dstTypeStr)
		if !ok {
			continue
		}
		result[queried] = append(result[queried], Xref{Type: dstType, Accession: dstAcc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dblinkdb: related bulk rows: %w", err)
	}
	return result, nil
}
