package main

import (
	"context"
	"fmt"

	"github.com/ddbj/dblinkd/internal/datecache"
	"github.com/ddbj/dblinkd/internal/datesource"
	"github.com/spf13/cobra"
)

var buildBPBSDateCacheCmd = &cobra.Command{
	Use:   "build_bp_bs_date_cache",
	Short: "Snapshot BioProject/BioSample first-public and last-update dates from POSTGRES_URL",
	RunE:  runBuildBPBSDateCache,
}

func runBuildBPBSDateCache(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "build_bp_bs_date_cache")
	if err != nil {
		return err
	}

	var stepErr error
	if cfg.PostgresURL == "" {
		return finishRun(logr, logr.Critical("POSTGRES_URL not configured", fmt.Errorf("build_bp_bs_date_cache requires POSTGRES_URL")))
	}

	ctx := context.Background()
	src, cerr := datesource.Connect(ctx, cfg.PostgresURL)
	if cerr != nil {
		return finishRun(logr, logr.Critical("connect to POSTGRES_URL", cerr))
	}
	defer src.Close()

	storePath := p.DateCacheStorePath()
	if err := datecache.Build(ctx, storePath, src, []datesource.Family{datesource.FamilyBioProject, datesource.FamilyBioSample}); err != nil {
		stepErr = logr.Critical("build date cache failed", err)
	} else {
		logr.Info("rebuilt date cache at " + storePath)
	}
	return finishRun(logr, stepErr)
}
