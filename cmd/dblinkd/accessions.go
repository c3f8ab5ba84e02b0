package main

import (
	"context"
	"fmt"

	"github.com/ddbj/dblinkd/internal/accessionsdb"
	"github.com/spf13/cobra"
)

var (
	buildAccessionsSource string
	buildAccessionsInput  string
)

var buildSRAAndDRAAccessionsDBCmd = &cobra.Command{
	Use:   "build_sra_and_dra_accessions_db",
	Short: "Load the daily SRA_Accessions.tab or DRA_Accessions.tab into its columnar store",
	RunE:  runBuildAccessionsDB,
}

func init() {
	buildSRAAndDRAAccessionsDBCmd.Flags().StringVar(&buildAccessionsSource, "source", "", "Which store to (re)build: sra or dra")
	buildSRAAndDRAAccessionsDBCmd.Flags().StringVar(&buildAccessionsInput, "input", "", "Path to SRA_Accessions.tab / DRA_Accessions.tab")
	buildSRAAndDRAAccessionsDBCmd.MarkFlagRequired("source")
	buildSRAAndDRAAccessionsDBCmd.MarkFlagRequired("input")
}

func runBuildAccessionsDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "build_sra_and_dra_accessions_db")
	if err != nil {
		return err
	}

	var source accessionsdb.Source
	switch buildAccessionsSource {
	case "sra":
		source = accessionsdb.SourceNCBISRA
	case "dra":
		source = accessionsdb.SourceDDBJDRA
	default:
		return finishRun(logr, logr.Critical("invalid --source", fmt.Errorf("%q: must be sra or dra", buildAccessionsSource)))
	}

	storePath := p.AccessionsStorePath(string(source))
	var stepErr error
	if err := accessionsdb.Build(context.Background(), storePath, buildAccessionsInput, source); err != nil {
		stepErr = logr.Critical("build accessions store failed", err)
	} else {
		logr.Info(fmt.Sprintf("rebuilt %s accessions store at %s", source, storePath))
	}
	return finishRun(logr, stepErr)
}
