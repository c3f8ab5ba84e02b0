package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ddbj/dblinkd/internal/accessionsdb"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/config"
	"github.com/ddbj/dblinkd/internal/dblink"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/paths"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/spf13/cobra"
)

var initDBLinkDBCmd = &cobra.Command{
	Use:   "init_dblink_db",
	Short: "Reset the DBLink tmp store before a fresh relation-graph build",
	RunE:  runInitDBLinkDB,
}

func runInitDBLinkDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "init_dblink_db")
	if err != nil {
		return err
	}

	var stepErr error
	tmpPath := p.DBLinkTmpPath()
	if err := dblinkdb.RemoveFiles(tmpPath); err != nil {
		stepErr = logr.Critical("clear stale tmp store", err)
	} else if db, oerr := dblinkdb.Open(tmpPath); oerr != nil {
		stepErr = logr.Critical("open tmp store", oerr)
	} else {
		db.Close()
		logr.Info("tmp store reinitialized at " + tmpPath)
	}
	return finishRun(logr, stepErr)
}

// relationStep is one of the seven create_dblink_*_relations extractors:
// open the tmp store, run exactly one extractor, insert its edges, close.
// Each invocation acquires the tmp store's write lock for its own
// duration, so operators can run the seven steps sequentially (or any
// subset, for a partial rebuild) without racing each other.
type relationStep struct {
	use     string
	short   string
	extract func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error)
}

var relationSteps = []relationStep{
	{"create_dblink_bp_bs_relations", "Extract BioProject<->BioSample cross-references from BioSample XML + accessions stores",
		func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error) {
			sraDB, err := accessionsdb.Open(p.AccessionsStorePath("sra"))
			if err != nil {
				return nil, fmt.Errorf("open sra accessions store: %w", err)
			}
			defer sraDB.Close()
			draDB, err := accessionsdb.Open(p.AccessionsStorePath("dra"))
			if err != nil {
				return nil, fmt.Errorf("open dra accessions store: %w", err)
			}
			defer draDB.Close()
			return dblink.BPBS(ctx, logr, cfg.DBLink.Workers, p.TmpXMLDir("bs"), sraDB, draDB, p.PreservedPath("bp_bs"), bl)
		}},
	{"create_dblink_bp_internal_relations", "Extract BioProject umbrella/member relations from BioProject XML",
		func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error) {
			return dblink.BPInternal(ctx, logr, cfg.DBLink.Workers, p.TmpXMLDir("bp"))
		}},
	{"create_dblink_assembly_master_relations", "Extract assembly<->BioProject/BioSample relations from the GenBank assembly summary and TRAD files",
		func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error) {
			client := &http.Client{Timeout: 5 * time.Minute}
			return dblink.AssemblyMaster(ctx, logr, client, cfg.Sources.AssemblySummaryURL, dblink.DefaultTRADFiles(p.TRADBaseDir()), bl)
		}},
	{"create_dblink_gea_relations", "Extract GEA<->BioProject/BioSample relations from GEA IDF/SDRF files",
		func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error) {
			return dblink.GEA(ctx, logr, cfg.DBLink.Workers, p.GEABaseDir(), bl)
		}},
	{"create_dblink_metabobank_relations", "Extract MetaboBank<->BioProject/BioSample relations",
		func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error) {
			return dblink.MetaboBank(ctx, logr, cfg.DBLink.Workers, p.MetaboBankBaseDir())
		}},
	{"create_dblink_jga_relations", "Build JGA study<->hum-id/pubmed/dataset, dataset<->policy and policy<->dac edges from jga-study.xml and the relation CSVs",
		func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error) {
			return dblink.JGA(p.JGAStudyXMLPath(), dblink.JGACSVPaths(p), logr)
		}},
	{"create_dblink_sra_internal_relations", "Extract SRA/DRA internal submission<->study/experiment/run/sample/analysis relations",
		func(ctx context.Context, logr *runlog.Coordinator, cfg *config.Config, p paths.Paths, bl blacklist.BySource) ([]dblinkdb.Relation, error) {
			sraDB, err := accessionsdb.Open(p.AccessionsStorePath("sra"))
			if err != nil {
				return nil, fmt.Errorf("open sra accessions store: %w", err)
			}
			defer sraDB.Close()
			sraRels, err := dblink.SRAInternal(ctx, logr, sraDB, "sra", bl)
			if err != nil {
				return nil, err
			}
			draDB, err := accessionsdb.Open(p.AccessionsStorePath("dra"))
			if err != nil {
				return nil, fmt.Errorf("open dra accessions store: %w", err)
			}
			defer draDB.Close()
			draRels, err := dblink.SRAInternal(ctx, logr, draDB, "dra", bl)
			if err != nil {
				return nil, err
			}
			return append(sraRels, draRels...), nil
		}},
}

var createDBLinkRelationCmds = buildRelationCmds()

func buildRelationCmds() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(relationSteps))
	for _, step := range relationSteps {
		step := step
		cmds = append(cmds, &cobra.Command{
			Use:   step.use,
			Short: step.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRelationStep(step)
			},
		})
	}
	return cmds
}

func runRelationStep(step relationStep) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, step.use)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var stepErr error

	lock, lerr := runlog.AcquireWriteLock(p.DBLinkTmpPath())
	if lerr != nil {
		return finishRun(logr, logr.Critical("acquire dblink tmp store write lock", lerr))
	}
	defer lock.Release()

	bl, err := blacklist.LoadAll(p.ConstDir + "/blacklist")
	if err != nil {
		return finishRun(logr, logr.Critical("load blacklists", err))
	}

	rels, err := step.extract(ctx, logr, cfg, p, bl)
	if err != nil {
		stepErr = logr.Critical(step.use+" failed", err)
		return finishRun(logr, stepErr)
	}

	db, err := dblinkdb.Open(p.DBLinkTmpPath())
	if err != nil {
		return finishRun(logr, logr.Critical("open tmp store", err))
	}
	defer db.Close()

	batchSize := cfg.DBLink.BatchSize
	if batchSize <= 0 {
		batchSize = 50000
	}
	for start := 0; start < len(rels); start += batchSize {
		end := start + batchSize
		if end > len(rels) {
			end = len(rels)
		}
		if err := db.InsertBatch(ctx, rels[start:end]); err != nil {
			return finishRun(logr, logr.Critical("insert batch", err))
		}
	}
	logr.Info(fmt.Sprintf("%s: inserted %d relations", step.use, len(rels)))
	return finishRun(logr, nil)
}

var finalizeDBLinkDBCmd = &cobra.Command{
	Use:   "finalize_dblink_db",
	Short: "Deduplicate, canonicalize, and blacklist-filter the tmp store into the published DBLink store",
	RunE:  runFinalizeDBLinkDB,
}

func runFinalizeDBLinkDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "finalize_dblink_db")
	if err != nil {
		return err
	}

	bl, err := blacklist.LoadAll(p.ConstDir + "/blacklist")
	if err != nil {
		return finishRun(logr, logr.Critical("load blacklists", err))
	}

	var stepErr error
	if err := dblinkdb.Finalize(context.Background(), p.DBLinkTmpPath(), p.DBLinkStorePath(), bl); err != nil {
		stepErr = logr.Critical("finalize failed", err)
	} else {
		logr.Info("finalized DBLink store at " + p.DBLinkStorePath())
	}
	return finishRun(logr, stepErr)
}

var dumpDBLinkFilesCmd = &cobra.Command{
	Use:   "dump_dblink_files",
	Short: "Dump the published DBLink store's relations to per-kind TSV files under DBLINK_PATH",
	RunE:  runDumpDBLinkFiles,
}

func runDumpDBLinkFiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "dump_dblink_files")
	if err != nil {
		return err
	}

	var stepErr error
	db, err := dblinkdb.Open(p.DBLinkStorePath())
	if err != nil {
		stepErr = logr.Critical("open DBLink store", err)
	} else {
		defer db.Close()
		if err := dblinkdb.DumpFiles(context.Background(), db, cfg.DBLinkPath); err != nil {
			stepErr = logr.Critical("dump failed", err)
		} else {
			logr.Info("dumped TSV files to " + cfg.DBLinkPath)
		}
	}
	return finishRun(logr, stepErr)
}
