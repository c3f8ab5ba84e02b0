package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/es"
	"github.com/ddbj/dblinkd/internal/essink"
	"github.com/spf13/cobra"
)

var (
	esIngestFamily string
	esIngestIndex  string
	esIngestDir    string
)

var esIngestCmd = &cobra.Command{
	Use:   "es_ingest",
	Short: "Batch-ingest one family's JSONL shards into ES_URL, retrying transient failures",
	RunE:  runESIngest,
}

func init() {
	esIngestCmd.Flags().StringVar(&esIngestFamily, "family", "", "bioproject, biosample, sra, or jga")
	esIngestCmd.Flags().StringVar(&esIngestIndex, "index", "", "destination index name (default: the family name)")
	esIngestCmd.Flags().StringVar(&esIngestDir, "dir", "", "override the JSONL shard directory (default: RESULT_DIR/jsonl/<today>/<family>)")
	esIngestCmd.MarkFlagRequired("family")
}

func runESIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "es_ingest")
	if err != nil {
		return err
	}

	if cfg.ESURL == "" {
		return finishRun(logr, logr.Critical("ES_URL not configured", fmt.Errorf("es_ingest requires ES_URL")))
	}
	client, err := es.Connect(cfg.ESURL)
	if err != nil {
		return finishRun(logr, logr.Critical("connect to ES_URL", err))
	}

	dir := esIngestDir
	if dir == "" {
		dir = filepath.Join(p.JSONLDir(cfg.RunDate()), esIngestFamily)
	}
	index := esIngestIndex
	if index == "" {
		index = esIngestFamily
	}

	var stepErr error
	n, err := ingestDir(context.Background(), client, index, dir)
	if err != nil {
		stepErr = logr.Critical("es_ingest failed", err)
	} else {
		logr.Info(fmt.Sprintf("ingested %d documents from %s into %s", n, dir, index))
	}
	return finishRun(logr, stepErr)
}

// ingestDir reads every *.jsonl shard under dir, batches documents at the
// sink's 5,000-line granularity, and puts each batch with retry.
func ingestDir(ctx context.Context, client *es.Client, index, dir string) (int, error) {
	shards, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("glob %s: %w", dir, err)
	}

	var docs []essink.Document
	for _, shard := range shards {
		shardDocs, err := readShardDocuments(shard)
		if err != nil {
			return 0, err
		}
		docs = append(docs, shardDocs...)
	}

	total := 0
	for _, batch := range essink.Batch(docs, 5000) {
		if err := essink.PutBatchWithRetry(ctx, client, index, batch, essink.DefaultBackoff, es.IsTransient); err != nil {
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}

func readShardDocuments(path string) ([]essink.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shard %s: %w", path, err)
	}
	defer f.Close()

	var docs []essink.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var head struct {
			Accession string `json:"accession"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			return nil, fmt.Errorf("decode shard %s: %w", path, err)
		}
		src := make([]byte, len(line))
		copy(src, line)
		docs = append(docs, essink.Document{Accession: head.Accession, Source: src})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan shard %s: %w", path, err)
	}
	return docs, nil
}

var (
	esDeleteFamily string
	esDeleteIndex  string
)

var esDeleteBlacklistedCmd = &cobra.Command{
	Use:   "es_delete_blacklisted",
	Short: "Delete documents whose accession is on the blacklist for one family's index",
	RunE:  runESDeleteBlacklisted,
}

func init() {
	esDeleteBlacklistedCmd.Flags().StringVar(&esDeleteFamily, "family", "", "bioproject, biosample, sra, or jga")
	esDeleteBlacklistedCmd.Flags().StringVar(&esDeleteIndex, "index", "", "destination index name (default: the family name)")
	esDeleteBlacklistedCmd.MarkFlagRequired("family")
}

func runESDeleteBlacklisted(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "es_delete_blacklisted")
	if err != nil {
		return err
	}

	if cfg.ESURL == "" {
		return finishRun(logr, logr.Critical("ES_URL not configured", fmt.Errorf("es_delete_blacklisted requires ES_URL")))
	}
	client, err := es.Connect(cfg.ESURL)
	if err != nil {
		return finishRun(logr, logr.Critical("connect to ES_URL", err))
	}

	bl, err := blacklist.LoadAll(p.ConstDir + "/blacklist")
	if err != nil {
		return finishRun(logr, logr.Critical("load blacklists", err))
	}
	src, ok := blacklistSourceForFamily(esDeleteFamily)
	if !ok {
		return finishRun(logr, logr.Critical("invalid --family", fmt.Errorf("%q has no blacklist", esDeleteFamily)))
	}
	accessions := bl[src].Slice()

	index := esDeleteIndex
	if index == "" {
		index = esDeleteFamily
	}

	var stepErr error
	deleted, notFound, err := essink.DeleteBlacklisted(context.Background(), client, index, accessions)
	if err != nil {
		stepErr = logr.Critical("es_delete_blacklisted failed", err)
	} else {
		logr.Info(fmt.Sprintf("deleted %d, not-found %d, out of %d blacklisted accessions in %s", deleted, notFound, len(accessions), index))
	}
	return finishRun(logr, stepErr)
}

func blacklistSourceForFamily(family string) (blacklist.Source, bool) {
	switch family {
	case "bioproject":
		return blacklist.SourceBioProject, true
	case "biosample":
		return blacklist.SourceBioSample, true
	case "sra":
		return blacklist.SourceSRA, true
	case "jga":
		return blacklist.SourceJGA, true
	default:
		return "", false
	}
}
