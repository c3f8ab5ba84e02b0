package emitter

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/ddbj/dblinkd/internal/workerpool"
)

// bpPackageSet is one BioProject shard's top-level shape, grounded on the
// same Package/ProjectID/ArchiveID structure internal/dblink/bp_internal.go
// already parses for its umbrella/hum-id edges, extended here with the
// descriptive fields the JSONL document carries.
type bpPackageSet struct {
	XMLName  xml.Name    `xml:"PackageSet"`
	Packages []bpPackage `xml:"Package"`
}

type bpPackage struct {
	Project bpProject `xml:"Project"`
}

type bpProject struct {
	ProjectID    bpProjectID    `xml:"ProjectID"`
	ProjectDescr bpProjectDescr `xml:"ProjectDescr"`
	Submission   bpSubmission   `xml:"Submission"`
}

type bpProjectID struct {
	ArchiveID bpArchiveID `xml:"ArchiveID"`
}

type bpArchiveID struct {
	Accession string `xml:"accession,attr"`
}

type bpProjectDescr struct {
	Title       string     `xml:"Title"`
	Description string     `xml:"Description"`
	Organism    bpOrganism `xml:"Organism"`
}

type bpOrganism struct {
	OrganismName string `xml:"OrganismName"`
}

type bpSubmission struct {
	LastUpdate  string            `xml:"last_update,attr"`
	Submitted   string            `xml:"submitted,attr"`
	Description bpSubmissionDescr `xml:"Description"`
}

type bpSubmissionDescr struct {
	Organization bpOrganization `xml:"Organization"`
}

type bpOrganization struct {
	Name string `xml:"Name"`
}

// bpSubmissionModified parses the Submission's last_update attribute,
// falling back to submitted when last_update is absent, matching spec
// 4.7's incremental-cutoff table ("@last_update (or date_modified)").
func bpSubmissionModified(sub bpSubmission) (time.Time, bool) {
	raw := sub.LastUpdate
	if raw == "" {
		raw = sub.Submitted
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func bpSourceFromFile(path string) string {
	base := filepath.Base(path)
	if len(base) >= 5 && base[:5] == "ncbi_" {
		return "ncbi"
	}
	return "ddbj"
}

func globSortedXML(dir, prefix string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, prefix+"*.xml"))
	sort.Strings(matches)
	return matches
}

// GenerateBioProjectJSONL emits one JSONL shard per BioProject source shard
// file, applying the full per-record pipeline: classify, blacklist,
// incremental cutoff, DBLink xref lookup, date-cache override, string
// normalization.
func GenerateBioProjectJSONL(ctx context.Context, deps Deps, workers int, shardDir, resultDir, yyyymmdd string, cutoff time.Time, hasCutoff bool) (shardsWritten, recordsWritten int, err error) {
	files := append(globSortedXML(shardDir, "ncbi_"), globSortedXML(shardDir, "ddbj_")...)
	if len(files) == 0 {
		return 0, 0, nil
	}

	results := workerpool.Run(ctx, workers, files, func(_ context.Context, job workerpool.Job[string]) (int, error) {
		return processBioProjectShard(ctx, deps, job.Value, resultDir, yyyymmdd, cutoff, hasCutoff)
	})

	err = workerpool.Drain(results, func(r workerpool.Result[string, int]) error {
		if r.Err != nil {
			if deps.Logger != nil {
				deps.Logger.ErrorLog("bioproject shard failed", r.Err, runlog.WithFile(r.Job.Value))
			}
			return nil
		}
		shardsWritten++
		recordsWritten += r.Out
		return nil
	})
	return shardsWritten, recordsWritten, err
}

func processBioProjectShard(ctx context.Context, deps Deps, path, resultDir, yyyymmdd string, cutoff time.Time, hasCutoff bool) (int, error) {
	source := bpSourceFromFile(path)
	if skipIfShardDone(deps, source, accession.BioProject.String(), shardIndexFromPath(path)) {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("emitter: read %s: %w", path, err)
	}
	var set bpPackageSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return 0, fmt.Errorf("emitter: parse %s: %w", path, err)
	}

	var docs []*Document
	for _, pkg := range set.Packages {
		raw := pkg.Project.ProjectID.ArchiveID.Accession
		norm, ok := classifyAs(raw, accession.BioProject)
		if !ok {
			logEmitterSkip(deps.Logger, raw, runlog.DebugCategoryInvalidBioProjectID, source, path)
			continue
		}
		if deps.Blacklist.Contains(blacklist.SourceBioProject, norm) {
			continue
		}
		if hasCutoff {
			if modified, ok := bpSubmissionModified(pkg.Project.Submission); ok && modified.Before(cutoff) {
				continue
			}
		}

		d := &Document{
			Accession: norm,
			Type:      accession.BioProject.String(),
			Source:    source,
			Attributes: map[string]any{
				"title":                  pkg.Project.ProjectDescr.Title,
				"description":            pkg.Project.ProjectDescr.Description,
				"_raw_organism":          pkg.Project.ProjectDescr.Organism.OrganismName,
				"_raw_organization_name": pkg.Project.Submission.Description.Organization.Name,
			},
		}
		docs = append(docs, d)
	}

	if err := enrichBatch(ctx, deps, docs); err != nil {
		return 0, err
	}
	for _, d := range docs {
		applyNormalization(deps.Logger, d)
	}

	return writeShard(deps, docs, resultDir, "bioproject", yyyymmdd, source, accession.BioProject.String(), path)
}

// writeShard assigns docs to a single output file keyed by (source, type),
// shard index derived from the input shard's own name so re-running a shard
// in isolation (--resume) reproduces the same output file name. Whether or
// not any document survived filtering, the shard is recorded as done for
// --resume bookkeeping: a shard that legitimately produced zero documents
// must not be reprocessed on the next resumed attempt.
func writeShard(deps Deps, docs []*Document, resultDir, family, yyyymmdd, source, typ, inputPath string) (int, error) {
	idx := shardIndexFromPath(inputPath)
	if len(docs) == 0 {
		if err := markShardDone(deps, source, typ, idx, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	outPath := ShardOutputPath(resultDir, family, yyyymmdd, source, typ, idx)
	w, err := NewShardWriter(outPath)
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
	if err := markShardDone(deps, source, typ, idx, len(docs)); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// shardIndexFromPath extracts the split_NNNN numeric suffix from a shard
// file name, matching internal/splitter's split_%04d.xml naming.
func shardIndexFromPath(path string) int {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	var idx int
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] < '0' || name[i] > '9' {
			fmt.Sscanf(name[i+1:], "%d", &idx)
			return idx
		}
	}
	fmt.Sscanf(name, "%d", &idx)
	return idx
}

func logEmitterSkip(logr *runlog.Coordinator, acc, category, source, file string) {
	if logr == nil {
		return
	}
	logr.Debug("skipping invalid accession: "+acc, category,
		runlog.WithAccession(acc), runlog.WithSource(source), runlog.WithFile(file))
}
