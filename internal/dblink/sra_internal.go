package dblink

import (
	"context"
	"fmt"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/accessionsdb"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// sraInternalRelation names one edge this extractor pulls straight out of
// the accessions store: recordType is the row's own Type, parentCol names
// the ancestor column that becomes the edge's other endpoint, and
// {srcType, dstType} are the accession.Types the (parentCol, own accession)
// pair classify to.
type sraInternalRelation struct {
	recordType       string
	parentCol        string
	srcType, dstType accession.Type
}

// internalRelations enumerates the seven SRA-internal edges. Each is one
// RelationPairs query against a single row Type, replacing sra_internal.py's
// seven iter_*_relations calls: a row's own type+accession already names it
// (e.g. a RUN row's "experiment" column is that run's parent experiment),
// so no join across rows is needed, only a column pick per Type.
var internalRelations = []sraInternalRelation{
	{"STUDY", "submission", accession.SRASubmission, accession.SRAStudy},
	{"EXPERIMENT", "study", accession.SRAStudy, accession.SRAExperiment},
	{"ANALYSIS", "study", accession.SRAStudy, accession.SRAAnalysis},
	{"ANALYSIS", "submission", accession.SRASubmission, accession.SRAAnalysis},
	{"RUN", "experiment", accession.SRAExperiment, accession.SRARun},
	{"EXPERIMENT", "sample", accession.SRASample, accession.SRAExperiment},
	{"RUN", "sample", accession.SRASample, accession.SRARun},
}

// crossRelation names one BioProject/BioSample<->SRA edge: recordType is
// the SRA row type carrying the ancestor column, and ancestorType is
// BioProject or BioSample.
type crossRelation struct {
	recordType   string
	ancestorCol  string
	ancestorType accession.Type
	sraType      accession.Type
}

var bioProjectCrossRelations = []crossRelation{
	{"STUDY", "bioproject", accession.BioProject, accession.SRAStudy},
	{"EXPERIMENT", "bioproject", accession.BioProject, accession.SRAExperiment},
	{"RUN", "bioproject", accession.BioProject, accession.SRARun},
	{"ANALYSIS", "bioproject", accession.BioProject, accession.SRAAnalysis},
}

var bioSampleCrossRelations = []crossRelation{
	{"SAMPLE", "biosample", accession.BioSample, accession.SRASample},
	{"EXPERIMENT", "biosample", accession.BioSample, accession.SRAExperiment},
	{"RUN", "biosample", accession.BioSample, accession.SRARun},
	{"ANALYSIS", "biosample", accession.BioSample, accession.SRAAnalysis},
}

// SRAInternal builds every internal SRA relation plus the BioProject/
// BioSample<->SRA cross-links out of one accessions store (SRA or DRA).
// source names the store for logging ("sra" or "dra"). bl's SRA set filters
// on either SRA-side endpoint; its BioProject/BioSample sets filter the
// ancestor side of the cross relations only, matching sra_internal.py's asymmetric
// filter_pairs_by_blacklist(..., "left") calls.
func SRAInternal(
	ctx context.Context,
	logr *runlog.Coordinator,
	db *accessionsdb.DB,
	source string,
	bl blacklist.BySource,
) ([]dblinkdb.Relation, error) {
	var out []dblinkdb.Relation

	for _, r := range internalRelations {
		pairs, err := db.RelationPairs(ctx, r.recordType, r.parentCol, "accession")
		if err != nil {
			return nil, fmt.Errorf("dblink: sra_internal %s %s/%s: %w", source, r.recordType, r.parentCol, err)
		}
		set := make(pairSet)
		for _, pair := range pairs {
			parent, child := pair[0], pair[1]
			parentNorm, parentOK := classifyAs(parent, r.srcType)
			if !parentOK {
				logSkip(logr, parent, runlog.DebugCategoryInvalidAccessionID, source, "")
				continue
			}
			childNorm, childOK := classifyAs(child, r.dstType)
			if !childOK {
				logSkip(logr, child, runlog.DebugCategoryInvalidAccessionID, source, "")
				continue
			}
			if bl.Contains(blacklist.SourceSRA, parentNorm) || bl.Contains(blacklist.SourceSRA, childNorm) {
				continue
			}
			set.add(parentNorm, childNorm)
		}
		out = append(out, set.relations(r.srcType, r.dstType)...)
	}

	for _, r := range bioProjectCrossRelations {
		rel, err := crossEdges(ctx, db, r, source, bl, blacklist.SourceBioProject, logr)
		if err != nil {
			return nil, fmt.Errorf("dblink: sra_internal %s bp cross %s: %w", source, r.recordType, err)
		}
		out = append(out, rel...)
	}
	for _, r := range bioSampleCrossRelations {
		rel, err := crossEdges(ctx, db, r, source, bl, blacklist.SourceBioSample, logr)
		if err != nil {
			return nil, fmt.Errorf("dblink: sra_internal %s bs cross %s: %w", source, r.recordType, err)
		}
		out = append(out, rel...)
	}

	return out, nil
}

func crossEdges(
	ctx context.Context,
	db *accessionsdb.DB,
	r crossRelation,
	source string,
	bl blacklist.BySource,
	ancestorSource blacklist.Source,
	logr *runlog.Coordinator,
) ([]dblinkdb.Relation, error) {
	pairs, err := db.RelationPairs(ctx, r.recordType, r.ancestorCol, "accession")
	if err != nil {
		return nil, err
	}
	set := make(pairSet)
	for _, pair := range pairs {
		ancestor, sraAcc := pair[0], pair[1]
		ancestorNorm, ancestorOK := classifyAs(ancestor, r.ancestorType)
		if !ancestorOK {
			continue
		}
		sraNorm, sraOK := classifyAs(sraAcc, r.sraType)
		if !sraOK {
			logSkip(logr, sraAcc, runlog.DebugCategoryInvalidAccessionID, source, "")
			continue
		}
		if bl.Contains(blacklist.SourceSRA, sraNorm) {
			continue
		}
		if bl.Contains(ancestorSource, ancestorNorm) {
			continue
		}
		set.add(ancestorNorm, sraNorm)
	}
	return set.relations(r.ancestorType, r.sraType), nil
}
