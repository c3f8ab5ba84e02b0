package main

import (
	"context"

	"github.com/ddbj/dblinkd/internal/download"
	"github.com/ddbj/dblinkd/internal/paths"
	"github.com/spf13/cobra"
)

var syncNCBITarCmd = &cobra.Command{
	Use:   "sync_ncbi_tar",
	Short: "Fetch the latest NCBI SRA metadata archive and decompress it for sharding",
	RunE:  runSyncNCBITar,
}

func runSyncNCBITar(cmd *cobra.Command, args []string) error {
	return runSyncTar("sync_ncbi_tar", func(ctx context.Context, destPath string) error {
		return download.SyncNCBITar(ctx, destPath)
	}, func(p paths.Paths) string { return p.NCBISRATarPath() })
}

var syncDRATarCmd = &cobra.Command{
	Use:   "sync_dra_tar",
	Short: "Fetch the latest DDBJ DRA metadata archive and decompress it for sharding",
	RunE:  runSyncDRATar,
}

func runSyncDRATar(cmd *cobra.Command, args []string) error {
	return runSyncTar("sync_dra_tar", func(ctx context.Context, destPath string) error {
		return download.SyncDRATar(ctx, destPath)
	}, func(p paths.Paths) string { return p.DRATarPath() })
}

func runSyncTar(stepName string, sync func(ctx context.Context, destPath string) error, destPath func(p paths.Paths) string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, stepName)
	if err != nil {
		return err
	}

	var stepErr error
	dest := destPath(p)
	if err := sync(context.Background(), dest); err != nil {
		stepErr = logr.Critical(stepName+" failed", err)
	} else {
		logr.Info("synced archive to " + dest)
	}
	return finishRun(logr, stepErr)
}
