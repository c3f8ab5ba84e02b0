package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/config"
	"github.com/ddbj/dblinkd/internal/database"
	"github.com/ddbj/dblinkd/internal/emitter"
	"github.com/ddbj/dblinkd/internal/emitter/regenerate"
	"github.com/ddbj/dblinkd/internal/paths"
	"github.com/ddbj/dblinkd/internal/progress"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/spf13/cobra"
)

var genFull bool
var genResume bool

func addGenFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&genFull, "full", false, "ignore last_run.json and regenerate every record")
	cmd.Flags().BoolVar(&genResume, "resume", false, "continue a prior incomplete run for today's run date instead of restarting it")
}

// openTracker opens (creating if absent) the sqlite progress-tracking
// database for one family, used to support --resume across process
// restarts (spec 4.7's per-shard checkpoint discipline).
func openTracker(p paths.Paths, family string) (*progress.Tracker, func(), error) {
	db, err := database.Initialize(p.ResumeStatePath(family))
	if err != nil {
		return nil, nil, fmt.Errorf("open progress store: %w", err)
	}
	tracker, err := progress.NewTracker(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init progress tracker: %w", err)
	}
	return tracker, func() { db.Close() }, nil
}

func loadAndSaveLastRun(p paths.Paths, update func(lr *emitter.LastRun) error) error {
	lr, err := emitter.LoadLastRun(p.LastRunPath())
	if err != nil {
		return fmt.Errorf("load last_run.json: %w", err)
	}
	if err := update(lr); err != nil {
		return err
	}
	return emitter.SaveLastRun(p.LastRunPath(), lr)
}

var generateBPJSONLCmd = &cobra.Command{
	Use:   "generate_bp_jsonl",
	Short: "Materialize BioProject JSONL shards, cross-referenced against the DBLink store and date cache",
	RunE:  runGenerateBPJSONL,
}

func runGenerateBPJSONL(cmd *cobra.Command, args []string) error {
	return runGenerate("generate_bp_jsonl", "bioproject", func(ctx context.Context, cfg *config.Config, p paths.Paths, logr *runlog.Coordinator, tracker *progress.Tracker, lr *emitter.LastRun, runStart time.Time) (int, error) {
		shards, records, err := emitter.RunBioProject(ctx, p, logr, lr, tracker, cfg.Emitter.ParallelNum, cfg.Incremental.MarginDays, genFull, genResume, runStart)
		if err == nil {
			logr.Info(fmt.Sprintf("wrote %d shards, %d records", shards, records))
		}
		return records, err
	})
}

var generateBSJSONLCmd = &cobra.Command{
	Use:   "generate_bs_jsonl",
	Short: "Materialize BioSample JSONL shards, cross-referenced against the DBLink store and date cache",
	RunE:  runGenerateBSJSONL,
}

func runGenerateBSJSONL(cmd *cobra.Command, args []string) error {
	return runGenerate("generate_bs_jsonl", "biosample", func(ctx context.Context, cfg *config.Config, p paths.Paths, logr *runlog.Coordinator, tracker *progress.Tracker, lr *emitter.LastRun, runStart time.Time) (int, error) {
		shards, records, err := emitter.RunBioSample(ctx, p, logr, lr, tracker, cfg.Emitter.ParallelNum, cfg.Incremental.MarginDays, genFull, genResume, runStart)
		if err == nil {
			logr.Info(fmt.Sprintf("wrote %d shards, %d records", shards, records))
		}
		return records, err
	})
}

var generateSRAJSONLCmd = &cobra.Command{
	Use:   "generate_sra_jsonl",
	Short: "Materialize SRA/DRA JSONL shards from the accessions stores",
	RunE:  runGenerateSRAJSONL,
}

func runGenerateSRAJSONL(cmd *cobra.Command, args []string) error {
	return runGenerate("generate_sra_jsonl", "sra", func(ctx context.Context, cfg *config.Config, p paths.Paths, logr *runlog.Coordinator, tracker *progress.Tracker, lr *emitter.LastRun, runStart time.Time) (int, error) {
		records, err := emitter.RunSRA(ctx, p, logr, lr, tracker, cfg.Incremental.MarginDays, cfg.Emitter.SRABatchSize, genFull, genResume, runStart)
		if err == nil {
			logr.Info(fmt.Sprintf("wrote %d records", records))
		}
		return records, err
	})
}

var generateJGAJSONLCmd = &cobra.Command{
	Use:   "generate_jga_jsonl",
	Short: "Materialize JGA JSONL shards (always a full regeneration, JGA has no incremental cutoff)",
	RunE:  runGenerateJGAJSONL,
}

func runGenerateJGAJSONL(cmd *cobra.Command, args []string) error {
	return runGenerate("generate_jga_jsonl", "jga", func(ctx context.Context, cfg *config.Config, p paths.Paths, logr *runlog.Coordinator, tracker *progress.Tracker, lr *emitter.LastRun, runStart time.Time) (int, error) {
		records, err := emitter.RunJGA(ctx, p, logr, tracker, genResume, runStart)
		if err == nil {
			logr.Info(fmt.Sprintf("wrote %d records", records))
		}
		return records, err
	})
}

func init() {
	for _, c := range []*cobra.Command{generateBPJSONLCmd, generateBSJSONLCmd, generateSRAJSONLCmd, generateJGAJSONLCmd} {
		addGenFlags(c)
	}
}

// runGenerate is the four generate_*_jsonl commands' shared body: open a
// resume tracker, run the family-specific generator, and persist last_run.json
// whenever the generator returns without error, including a run that wrote
// zero records.
func runGenerate(stepName, family string, run func(ctx context.Context, cfg *config.Config, p paths.Paths, logr *runlog.Coordinator, tracker *progress.Tracker, lr *emitter.LastRun, runStart time.Time) (int, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, stepName)
	if err != nil {
		return err
	}

	tracker, closeTracker, err := openTracker(p, family)
	if err != nil {
		return finishRun(logr, logr.Critical("open progress tracker", err))
	}
	defer closeTracker()

	runStart, perr := time.Parse("20060102", cfg.RunDate())
	if perr != nil {
		return finishRun(logr, logr.Critical("invalid run date", perr))
	}

	var stepErr error
	err = loadAndSaveLastRun(p, func(lr *emitter.LastRun) error {
		_, runErr := run(context.Background(), cfg, p, logr, tracker, lr, runStart)
		return runErr
	})
	if err != nil {
		stepErr = logr.Critical(stepName+" failed", err)
	}
	return finishRun(logr, stepErr)
}

var (
	regenerateType          string
	regenerateAccessions    []string
	regenerateAccessionFile string
	regenerateOutDir        string
)

var regenerateJSONLCmd = &cobra.Command{
	Use:   "regenerate_jsonl",
	Short: "Regenerate JSONL for an explicit list of accessions, bypassing the incremental cutoff and last_run.json entirely",
	RunE:  runRegenerateJSONL,
}

func init() {
	regenerateJSONLCmd.Flags().StringVar(&regenerateType, "type", "", "accession.Type name (bioproject, biosample, sra, dra, jga-study, ...)")
	regenerateJSONLCmd.Flags().StringSliceVar(&regenerateAccessions, "accessions", nil, "comma-separated accession list")
	regenerateJSONLCmd.Flags().StringVar(&regenerateAccessionFile, "accession-file", "", "path to a newline-delimited accession list")
	regenerateJSONLCmd.Flags().StringVar(&regenerateOutDir, "output-dir", "", "override output directory (default: RESULT_DIR/regenerate/<today>)")
	regenerateJSONLCmd.MarkFlagRequired("type")
}

func runRegenerateJSONL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "regenerate_jsonl")
	if err != nil {
		return err
	}

	typ, ok := accession.ParseType(regenerateType)
	if !ok {
		return finishRun(logr, logr.Critical("invalid --type", fmt.Errorf("%q is not a known accession type", regenerateType)))
	}

	accessions := append([]string{}, regenerateAccessions...)
	if regenerateAccessionFile != "" {
		fromFile, ferr := regenerate.ParseAccessionFile(regenerateAccessionFile)
		if ferr != nil {
			return finishRun(logr, logr.Critical("read --accession-file", ferr))
		}
		accessions = append(accessions, fromFile...)
	}
	if len(accessions) == 0 {
		return finishRun(logr, logr.Critical("no accessions given", fmt.Errorf("pass --accessions or --accession-file")))
	}

	outDir := regenerateOutDir
	if outDir == "" {
		outDir = p.RegenerateDir(cfg.RunDate())
	}

	withDateCache := typ == accession.BioProject || typ == accession.BioSample
	deps, closeDeps, err := emitter.OpenDeps(p, logr, withDateCache, nil)
	if err != nil {
		return finishRun(logr, logr.Critical("open dependencies", err))
	}
	defer closeDeps()

	var stepErr error
	n, err := regenerate.Generate(context.Background(), deps, typ, accessions, outDir)
	if err != nil {
		stepErr = logr.Critical("regenerate failed", err)
	} else {
		logr.Info(fmt.Sprintf("regenerated %d records to %s/%s", n, outDir, regenerate.OutputFileName))
	}
	return finishRun(logr, stepErr)
}
