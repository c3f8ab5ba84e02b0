package dblinkdb

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ddbj/dblinkd/internal/accession"
)

// DumpPair names one of the 16 configured output orientations for the TSV
// dump. Orientation may differ from canonical storage; Dump unswaps rows
// that were canonicalized the other way.
type DumpPair struct {
	SrcType  accession.Type
	DstType  accession.Type
	FileName string
}

// DumpPairs is the fixed 16-pair configuration mirroring db.py's
// export_relations table: every (family, family) combination the original
// DBLink publishes as a standalone TSV.
var DumpPairs = []DumpPair{
	{accession.BioProject, accession.BioSample, "bioproject_biosample.tsv"},
	{accession.BioProject, accession.UmbrellaBioProject, "bioproject_umbrella.tsv"},
	{accession.BioProject, accession.HumID, "bioproject_hum.tsv"},
	{accession.BioProject, accession.INSDCAssembly, "bioproject_assembly.tsv"},
	{accession.BioProject, accession.INSDCMaster, "bioproject_master.tsv"},
	{accession.BioSample, accession.INSDCAssembly, "biosample_assembly.tsv"},
	{accession.BioSample, accession.INSDCMaster, "biosample_master.tsv"},
	{accession.BioProject, accession.GEA, "bioproject_gea.tsv"},
	{accession.BioSample, accession.GEA, "biosample_gea.tsv"},
	{accession.BioProject, accession.MetaboBank, "bioproject_metabobank.tsv"},
	{accession.BioSample, accession.MetaboBank, "biosample_metabobank.tsv"},
	{accession.JGAStudy, accession.JGADataset, "jga_study_dataset.tsv"},
	{accession.JGAStudy, accession.PubMedID, "jga_study_pubmed.tsv"},
	{accession.JGAStudy, accession.HumID, "jga_study_hum.tsv"},
	{accession.JGADataset, accession.JGAPolicy, "jga_dataset_policy.tsv"},
	{accession.JGAPolicy, accession.JGADAC, "jga_policy_dac.tsv"},
}

// DumpFiles writes each configured pair to outDir/<FileName>, two columns,
// tab-separated, sorted ascending by column 1, no header.
func DumpFiles(ctx context.Context, db *DB, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("dblinkdb: ensure dump dir: %w", err)
	}
	for _, pair := range DumpPairs {
		if err := dumpOne(ctx, db, pair, outDir); err != nil {
			return fmt.Errorf("dblinkdb: dump %s: %w", pair.FileName, err)
		}
	}
	return nil
}

// dumpOne selects rows matching pair in either canonical storage
// orientation, unswaps them back to the pair's declared (SrcType, DstType)
// orientation, sorts by the first column, and writes the TSV.
func dumpOne(ctx context.Context, db *DB, pair DumpPair, outDir string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT src_type, src_accession, dst_type, dst_accession FROM relation
		WHERE (src_type = $1 AND dst_type = $2) OR (src_type = $2 AND dst_type = $1)
		ORDER BY
			CASE WHEN src_type = $1 THEN src_accession ELSE dst_accession END
	`, pair.SrcType.String(), pair.DstType.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	path := filepath.Join(outDir, pair.FileName)
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	for rows.Next() {
		var srcType, srcAcc, dstType, dstAcc string
		if err := rows.Scan(&srcType, &srcAcc, &dstType, &dstAcc); err != nil {
			f.Close()
			return err
		}
		left, right := srcAcc, dstAcc
		if srcType != pair.SrcType.String() {
			left, right = dstAcc, srcAcc
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", left, right); err != nil {
			f.Close()
			return err
		}
	}
	if err := rows.Err(); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
