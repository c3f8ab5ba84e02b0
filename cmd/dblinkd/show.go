package main

import (
	"context"
	"fmt"

	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/spf13/cobra"
)

var (
	showLogRunID string
	showLogTail  int
)

var showLogCmd = &cobra.Command{
	Use:   "show_log",
	Short: "Print the most recent run-log records, optionally filtered to one run",
	RunE:  runShowLog,
}

func init() {
	showLogCmd.Flags().StringVar(&showLogRunID, "run-id", "", "restrict to one run_id")
	showLogCmd.Flags().IntVar(&showLogTail, "tail", 100, "number of most recent records to print")
}

func runShowLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)

	records, err := runlog.Tail(context.Background(), p.LogsDir(), showLogRunID, showLogTail)
	if err != nil {
		return fmt.Errorf("show_log: %w", err)
	}
	for _, r := range records {
		line := fmt.Sprintf("%s [%s] %s: %s", r.Timestamp.Format("2006-01-02T15:04:05Z"), r.Level, r.RunName, r.Message)
		if r.Accession != "" {
			line += " accession=" + r.Accession
		}
		if r.Error != "" {
			line += " error=" + r.Error
		}
		fmt.Println(line)
	}
	return nil
}

var showLogSummaryCmd = &cobra.Command{
	Use:   "show_log_summary",
	Short: "Print per-level, per-debug-category, and per-run record counts across the run-log history",
	RunE:  runShowLogSummary,
}

func runShowLogSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)

	summary, err := runlog.Summarize(context.Background(), p.LogsDir())
	if err != nil {
		return fmt.Errorf("show_log_summary: %w", err)
	}

	fmt.Println("By level:")
	for _, level := range []runlog.Level{runlog.Critical, runlog.Error, runlog.Warning, runlog.Info, runlog.Debug} {
		if n, ok := summary.ByLevel[level]; ok {
			fmt.Printf("  %-10s %d\n", level, n)
		}
	}

	if len(summary.ByCategory) > 0 {
		fmt.Println("By debug category:")
		for category, n := range summary.ByCategory {
			fmt.Printf("  %-30s %d\n", category, n)
		}
	}

	fmt.Println("By run:")
	for _, rs := range summary.Runs {
		fmt.Printf("  %-40s %-30s total=%-6d errors=%d\n", rs.RunID, rs.RunName, rs.Total, rs.Errors)
	}
	return nil
}

var showDBLinkCountsCmd = &cobra.Command{
	Use:   "show_dblink_counts",
	Short: "Print the published DBLink store's total and per-(src_type, dst_type) relation counts",
	RunE:  runShowDBLinkCounts,
}

func runShowDBLinkCounts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)

	db, err := dblinkdb.Open(p.DBLinkStorePath())
	if err != nil {
		return fmt.Errorf("show_dblink_counts: open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	total, err := db.CountRelations(ctx)
	if err != nil {
		return fmt.Errorf("show_dblink_counts: count: %w", err)
	}
	fmt.Printf("total relations: %d\n", total)

	byKind, err := db.CountByEdgeKind(ctx)
	if err != nil {
		return fmt.Errorf("show_dblink_counts: count by edge kind: %w", err)
	}
	for _, ek := range byKind {
		fmt.Printf("  %s <-> %s: %d\n", ek.SrcType, ek.DstType, ek.Count)
	}
	return nil
}
