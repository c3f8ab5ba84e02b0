package dblink

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ddbj/dblinkd/internal/accessionsdb"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/config"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/paths"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// Build runs the seven relation extractors in sequence against one tmp
// DuckDB file, holding the runlog write lock for the full build so no other
// process can race the rebuild, then finalizes and dumps the result. The
// create_dblink_*_relations CLI steps do not go through Build; they call the
// extractors directly.
func Build(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, httpClient *http.Client) error {
	lock, err := runlog.AcquireWriteLock(p.DBLinkStorePath())
	if err != nil {
		return err
	}
	defer lock.Release()

	tmpPath := p.DBLinkTmpPath()
	if err := dblinkdb.RemoveFiles(tmpPath); err != nil {
		return fmt.Errorf("dblink: clear stale tmp store: %w", err)
	}

	db, err := dblinkdb.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("dblink: open tmp store: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			db.Close()
		}
	}()

	bl, err := blacklist.LoadAll(p.ConstDir + "/blacklist")
	if err != nil {
		return fmt.Errorf("dblink: load blacklists: %w", err)
	}

	workers := cfg.DBLink.Workers
	if workers <= 0 {
		workers = 4
	}
	batchSize := cfg.DBLink.BatchSize
	if batchSize <= 0 {
		batchSize = 50000
	}

	insert := func(step string, rels []dblinkdb.Relation, err error) error {
		if err != nil {
			return fmt.Errorf("dblink: %s: %w", step, err)
		}
		for start := 0; start < len(rels); start += batchSize {
			end := start + batchSize
			if end > len(rels) {
				end = len(rels)
			}
			if err := db.InsertBatch(ctx, rels[start:end]); err != nil {
				return fmt.Errorf("dblink: %s: insert batch: %w", step, err)
			}
		}
		if logr != nil {
			logr.Info(fmt.Sprintf("%s: %d relations", step, len(rels)))
		}
		return nil
	}

	sraDB, err := accessionsdb.Open(p.AccessionsStorePath("sra"))
	if err != nil {
		return fmt.Errorf("dblink: open sra accessions store: %w", err)
	}
	defer sraDB.Close()
	draDB, err := accessionsdb.Open(p.AccessionsStorePath("dra"))
	if err != nil {
		return fmt.Errorf("dblink: open dra accessions store: %w", err)
	}
	defer draDB.Close()

	rels, err := BPBS(ctx, logr, workers, p.TmpXMLDir("bs"), sraDB, draDB, p.PreservedPath("bp_bs"), bl)
	if err := insert("bp_bs", rels, err); err != nil {
		return err
	}

	rels, err = BPInternal(ctx, logr, workers, p.TmpXMLDir("bp"))
	if err := insert("bp_internal", rels, err); err != nil {
		return err
	}

	rels, err = AssemblyMaster(ctx, logr, httpClient, cfg.Sources.AssemblySummaryURL, defaultTRADFiles(p.TRADBaseDir()), bl)
	if err := insert("assembly_master", rels, err); err != nil {
		return err
	}

	rels, err = GEA(ctx, logr, workers, p.GEABaseDir(), bl)
	if err := insert("gea", rels, err); err != nil {
		return err
	}

	rels, err = MetaboBank(ctx, logr, workers, p.MetaboBankBaseDir())
	if err := insert("metabobank", rels, err); err != nil {
		return err
	}

	rels, err = JGA(p.JGAStudyXMLPath(), jgaCSVPaths(p), logr)
	if err := insert("jga", rels, err); err != nil {
		return err
	}

	rels, err = SRAInternal(ctx, logr, sraDB, "sra", bl)
	if err := insert("sra_internal", rels, err); err != nil {
		return err
	}
	rels, err = SRAInternal(ctx, logr, draDB, "dra", bl)
	if err := insert("dra_internal", rels, err); err != nil {
		return err
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("dblink: close tmp store before finalize: %w", err)
	}
	closed = true

	if err := dblinkdb.Finalize(ctx, tmpPath, p.DBLinkStorePath(), bl); err != nil {
		return fmt.Errorf("dblink: finalize: %w", err)
	}

	finalDB, err := dblinkdb.Open(p.DBLinkStorePath())
	if err != nil {
		return fmt.Errorf("dblink: reopen final store for dump: %w", err)
	}
	defer finalDB.Close()
	if err := dblinkdb.DumpFiles(ctx, finalDB, cfg.DBLinkPath); err != nil {
		return fmt.Errorf("dblink: dump tsv: %w", err)
	}

	return nil
}

// jgaCSVPaths resolves the seven relation CSVs the JGA extractor joins,
// named per idf.py/gea.py's own file-naming convention of one
// "<kind>-relation.csv" per edge kind under JGA_BASE_PATH.
func jgaCSVPaths(p paths.Paths) JGARelationCSVPaths {
	return JGARelationCSVPaths{
		DatasetAnalysis: p.JGARelationCSVPath("dataset-analysis"),
		AnalysisStudy:   p.JGARelationCSVPath("analysis-study"),
		DatasetData:     p.JGARelationCSVPath("dataset-data"),
		DataExperiment:  p.JGARelationCSVPath("data-experiment"),
		ExperimentStudy: p.JGARelationCSVPath("experiment-study"),
		DatasetPolicy:   p.JGARelationCSVPath("dataset-policy"),
		PolicyDAC:       p.JGARelationCSVPath("policy-dac"),
	}
}

// JGACSVPaths exports jgaCSVPaths for callers outside this package that
// need to invoke JGA as a standalone step (the create_dblink_jga_relations
// CLI command), rather than through Build's all-in-one sequencing.
func JGACSVPaths(p paths.Paths) JGARelationCSVPaths {
	return jgaCSVPaths(p)
}

// DefaultTRADFiles exports defaultTRADFiles for the same reason: the
// create_dblink_assembly_master_relations CLI command runs AssemblyMaster
// on its own, outside Build.
func DefaultTRADFiles(base string) []string {
	return defaultTRADFiles(base)
}
