package dblinkdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
)

// TestFinalizeCanonicalizesByOrdinalNotText inserts an edge whose type
// names sort the opposite way under TEXT collation versus Ordinal():
// "jga-study" < "sra-run" alphabetically, but SRARun's ordinal (7) is
// lower than JGAStudy's (10). Finalize must pick the lower-ordinal type
// as src, matching Relation.Canonicalize's in-Go behavior.
func TestFinalizeCanonicalizesByOrdinalNotText(t *testing.T) {
	dir := t.TempDir()
	tmpPath := filepath.Join(dir, "dblink.duckdb.tmp")
	finalPath := filepath.Join(dir, "dblink.duckdb")

	db, err := Open(tmpPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := context.Background()
	if err := db.InsertBatch(ctx, []Relation{
		{SrcType: accession.JGAStudy, SrcAccession: "JGAS00001", DstType: accession.SRARun, DstAccession: "SRR000001"},
	}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close before finalize failed: %v", err)
	}

	if err := Finalize(ctx, tmpPath, finalPath, blacklist.BySource{}); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	out, err := Open(finalPath)
	if err != nil {
		t.Fatalf("reopen finalized DB failed: %v", err)
	}
	defer out.Close()

	var srcType, srcAcc, dstType, dstAcc string
	if err := out.QueryRowContext(ctx, `SELECT src_type, src_accession, dst_type, dst_accession FROM relation`).
		Scan(&srcType, &srcAcc, &dstType, &dstAcc); err != nil {
		t.Fatalf("query finalized row failed: %v", err)
	}

	if srcType != accession.SRARun.String() || srcAcc != "SRR000001" {
		t.Errorf("expected sra-run first (lower ordinal), got src=%s/%s dst=%s/%s", srcType, srcAcc, dstType, dstAcc)
	}
	if dstType != accession.JGAStudy.String() || dstAcc != "JGAS00001" {
		t.Errorf("expected jga-study second, got src=%s/%s dst=%s/%s", srcType, srcAcc, dstType, dstAcc)
	}
}
