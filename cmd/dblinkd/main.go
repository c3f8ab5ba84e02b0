package main

import (
	"fmt"
	"os"

	"github.com/ddbj/dblinkd/internal/config"
	"github.com/ddbj/dblinkd/internal/paths"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/spf13/cobra"
)

var (
	version = "0.0.1-alpha"
	commit  = "dev"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "dblinkd",
	Short: "DBLink relation-graph builder and JSONL materializer",
	Long: `dblinkd builds the DBLink cross-reference graph from BioProject, BioSample,
SRA/DRA, and JGA metadata, and materializes per-family JSONL documents for
downstream search-index ingestion.

Each subcommand is one pipeline step (spec's CLI surface): prepare the daily
XML shards, build the accessions stores, build the relation graph, build the
date cache, sync the SRA/DRA metadata archives, generate JSONL, and ingest
into the document sink.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to dblinkd.yaml (default: $DBLINKD_CONFIG or ./dblinkd.yaml)")

	rootCmd.AddCommand(checkExternalResourcesCmd)
	rootCmd.AddCommand(prepareBioProjectXMLCmd)
	rootCmd.AddCommand(prepareBioSampleXMLCmd)
	rootCmd.AddCommand(buildSRAAndDRAAccessionsDBCmd)
	rootCmd.AddCommand(initDBLinkDBCmd)
	for _, c := range createDBLinkRelationCmds {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(finalizeDBLinkDBCmd)
	rootCmd.AddCommand(dumpDBLinkFilesCmd)
	rootCmd.AddCommand(buildBPBSDateCacheCmd)
	rootCmd.AddCommand(syncNCBITarCmd)
	rootCmd.AddCommand(syncDRATarCmd)
	rootCmd.AddCommand(generateBPJSONLCmd)
	rootCmd.AddCommand(generateBSJSONLCmd)
	rootCmd.AddCommand(generateSRAJSONLCmd)
	rootCmd.AddCommand(generateJGAJSONLCmd)
	rootCmd.AddCommand(regenerateJSONLCmd)
	rootCmd.AddCommand(esIngestCmd)
	rootCmd.AddCommand(esDeleteBlacklistedCmd)
	rootCmd.AddCommand(showLogCmd)
	rootCmd.AddCommand(showLogSummaryCmd)
	rootCmd.AddCommand(showDBLinkCountsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the step's configuration: --config flag, falling back
// to config.GetConfigPath's env/file-default search.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return cfg, nil
}

// stepPaths resolves the RESULT_DIR/CONST_DIR pair a step operates under.
func stepPaths(cfg *config.Config) paths.Paths {
	return paths.Paths{ResultDir: cfg.ResultDir, ConstDir: cfg.ConstDir}
}

// openRun opens one step's run-log coordinator. Each step name gets its own
// continuously-appended log file under RESULT_DIR/logs rather than one file
// per invocation, so show_log/show_log_summary can glob every step's
// history without tracking run_id-to-file mappings separately.
func openRun(p paths.Paths, stepName string) (*runlog.Coordinator, error) {
	logr, err := runlog.NewRun(stepName, p.LogPath(stepName))
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return logr, nil
}

// finishRun ends the run-log coordinator and turns a FAILED status into a
// non-nil error for cobra to report, without double-wrapping an existing
// step error.
func finishRun(logr *runlog.Coordinator, stepErr error) error {
	rec := logr.End(stepErr != nil)
	if stepErr != nil {
		return stepErr
	}
	if rec.Status == runlog.StatusFailed {
		return fmt.Errorf("%s: completed with errors (run_id=%s)", rec.RunName, rec.RunID)
	}
	return nil
}
