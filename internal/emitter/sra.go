package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/accessionsdb"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// sraTypeOutputName maps an accession.Type to the index name its JSONL
// shard file is written under, the six indices one SRA submission can
// expand into (spec 4.7 "Batching for SRA").
func sraTypeOutputName(t accession.Type) string {
	switch t {
	case accession.SRASubmission:
		return "submission"
	case accession.SRAStudy:
		return "study"
	case accession.SRAExperiment:
		return "experiment"
	case accession.SRARun:
		return "run"
	case accession.SRASample:
		return "sample"
	case accession.SRAAnalysis:
		return "analysis"
	default:
		return ""
	}
}

// sraSubmissionDocs builds one Document per accession belonging to a single
// submission (the submission row itself plus everything accessionsdb.
// Downstream returns for it), keyed by their own type. A document is
// dropped, not the whole submission, when its own accession fails
// classification or is individually blacklisted — the atomicity spec 4.7
// names is about the shard write, not per-document validity.
func sraSubmissionDocs(ctx context.Context, deps Deps, db *accessionsdb.DB, source string, sub accessionsdb.Accession) ([]*Document, error) {
	all := []accessionsdb.Accession{sub}
	children, err := db.Downstream(ctx, sub.Accession)
	if err != nil {
		return nil, fmt.Errorf("emitter: sra downstream %s: %w", sub.Accession, err)
	}
	all = append(all, children...)

	var docs []*Document
	for _, a := range all {
		outName := sraTypeOutputName(a.Type)
		if outName == "" {
			continue
		}
		norm, ok := classifyAs(a.Accession, a.Type)
		if !ok {
			logEmitterSkip(deps.Logger, a.Accession, runlog.DebugCategoryClassifySkip, source, "")
			continue
		}
		if deps.Blacklist.Contains(blacklist.SourceSRA, norm) {
			continue
		}
		docs = append(docs, &Document{
			Accession: norm,
			Type:      a.Type.String(),
			Source:    source,
			Attributes: map[string]any{
				"submission": sub.Accession,
				"bioproject": a.BioProject,
				"biosample":  a.BioSample,
			},
		})
	}
	return docs, nil
}

// GenerateSRAJSONL materializes SRA/DRA documents from the accessions
// store. Submissions are grouped into batches of sraBatchSize (default
// 5,000 per spec 4.7); each batch's six index buffers are written and
// committed together, so a batch's shard files either all land or none do.
func GenerateSRAJSONL(ctx context.Context, deps Deps, db *accessionsdb.DB, source, resultDir, yyyymmdd string, cutoff time.Time, hasCutoff bool, sraBatchSize int) (recordsWritten int, err error) {
	if sraBatchSize <= 0 {
		sraBatchSize = 5000
	}
	effectiveCutoff := cutoff
	if !hasCutoff {
		effectiveCutoff = time.Time{}
	}

	it, err := db.UpdatedSince(ctx, effectiveCutoff)
	if err != nil {
		return 0, fmt.Errorf("emitter: sra updated_since: %w", err)
	}

	buffers := make(map[string][]*Document, 6)
	batchIndex := 0
	submissionsInBatch := 0

	flush := func() error {
		if submissionsInBatch == 0 {
			return nil
		}
		for typeName, docs := range buffers {
			if err := enrichBatch(ctx, deps, docs); err != nil {
				return err
			}
			for _, d := range docs {
				applyNormalization(deps.Logger, d)
			}
			n, err := writeShard(deps, docs, resultDir, "sra", yyyymmdd, source, typeName, shardInputName(batchIndex))
			if err != nil {
				return err
			}
			recordsWritten += n
		}
		buffers = make(map[string][]*Document, 6)
		batchIndex++
		submissionsInBatch = 0
		return nil
	}

	var flushErr error
	for acc := range it {
		if acc.Type != accession.SRASubmission {
			continue
		}
		docs, derr := sraSubmissionDocs(ctx, deps, db, source, acc)
		if derr != nil {
			flushErr = derr
			break
		}
		for _, d := range docs {
			outName := sraTypeOutputName(mustParseType(d.Type))
			buffers[outName] = append(buffers[outName], d)
		}
		submissionsInBatch++
		if submissionsInBatch >= sraBatchSize {
			if err := flush(); err != nil {
				flushErr = err
				break
			}
		}
	}
	if flushErr == nil {
		flushErr = flush()
	}
	return recordsWritten, flushErr
}

func mustParseType(s string) accession.Type {
	t, _ := accession.ParseType(s)
	return t
}

func shardInputName(index int) string {
	return fmt.Sprintf("split_%04d.xml", index)
}
