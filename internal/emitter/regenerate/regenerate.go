// Package regenerate implements the regenerate_jsonl hotfix path: given an
// operator-supplied accession set (not a shard sweep, not last_run.json's
// cutoff), materialize exactly those documents into a dedicated output
// file, bypassing incremental bookkeeping entirely (spec 4.7: "never
// touches this file and never reads the cutoff").
package regenerate

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/emitter"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// OutputFileName is the single JSONL file one regenerate invocation
// produces, matching spec.md §8's worked example ("produces run.jsonl").
const OutputFileName = "run.jsonl"

// ParseAccessionFile reads one accession per line, skipping blank lines,
// for the --accession-file form of the CLI flag.
func ParseAccessionFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("regenerate: open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("regenerate: scan %s: %w", path, err)
	}
	return out, nil
}

// Generate classifies each accession against typ, drops invalid ones with a
// DEBUG record and blacklisted ones without logging, enriches the survivors
// via DBLink cross-
// references (and the date cache, when deps.DateCache is set for a BP/BS
// type), and writes the result to outDir/run.jsonl, overwriting whatever
// that file previously held — each regenerate invocation is self-contained,
// not merged with a prior run's output or with last_run.json-governed
// incremental shards.
func Generate(ctx context.Context, deps emitter.Deps, typ accession.Type, accessions []string, outDir string) (int, error) {
	blacklistSource, ok := blacklistSourceFor(typ)
	if !ok {
		return 0, fmt.Errorf("regenerate: no blacklist source for accession type %s", typ)
	}

	var docs []*emitter.Document
	for _, raw := range accessions {
		norm, tOK := classifyAs(raw, typ)
		if !tOK {
			if deps.Logger != nil {
				deps.Logger.Debug("skipping invalid accession: "+raw, runlog.DebugCategoryClassifySkip,
					runlog.WithAccession(raw))
			}
			continue
		}
		if deps.Blacklist.Contains(blacklistSource, norm) {
			continue
		}
		docs = append(docs, &emitter.Document{
			Accession: norm,
			Type:      typ.String(),
			Source:    "regenerate",
		})
	}

	if err := emitter.EnrichBatch(ctx, deps, docs); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("regenerate: create output dir: %w", err)
	}
	outPath := filepath.Join(outDir, OutputFileName)
	w, err := emitter.NewShardWriter(outPath)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		if err := w.WriteDocument(d); err != nil {
			_ = w.Discard()
			return 0, err
		}
	}
	if err := w.Commit(); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func classifyAs(raw string, want accession.Type) (string, bool) {
	t, norm, _, ok := accession.Classify(raw)
	if !ok || t != want {
		return "", false
	}
	return norm, true
}

func blacklistSourceFor(t accession.Type) (blacklist.Source, bool) {
	switch accession.FamilyOf(t) {
	case accession.FamilyBioProject:
		return blacklist.SourceBioProject, true
	case accession.FamilyBioSample:
		return blacklist.SourceBioSample, true
	case accession.FamilySRA:
		return blacklist.SourceSRA, true
	case accession.FamilyJGA:
		return blacklist.SourceJGA, true
	default:
		return "", false
	}
}
