package dblink

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/accessionsdb"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/ddbj/dblinkd/internal/workerpool"
)

// bioSampleFileResult is one shard file's extracted biosample->bioproject
// pairs plus the biosample accessions that failed classification, mirroring
// bp_bs.py's XmlProcessResult tuple.
type bioSampleFileResult struct {
	pairs   [][2]string
	skipped []string
}

func attrVal(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// extractNCBIBioSampleFile reads one ncbi_*.xml shard. The BioSample's own
// accession comes from the <BioSample accession="..."> attribute; its
// BioProject comes from <Link target="bioproject"> (label attribute or
// element text) or <Attribute attribute_name="bioproject_accession">.
func extractNCBIBioSampleFile(path string) (bioSampleFileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return bioSampleFileResult{}, fmt.Errorf("dblink: open %s: %w", path, err)
	}
	defer f.Close()

	var res bioSampleFileResult
	dec := xml.NewDecoder(f)

	var curBS string
	var curBSValid bool
	var chardata strings.Builder
	var linkTarget, linkLabel, attrName string

	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return bioSampleFileResult{}, fmt.Errorf("dblink: decode %s: %w", path, terr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			chardata.Reset()
			switch localName(t.Name.Local) {
			case "BioSample":
				raw := attrVal(t.Attr, "accession")
				norm, ok := classifyAs(raw, accession.BioSample)
				curBS, curBSValid = norm, ok
				if raw != "" && !ok {
					res.skipped = append(res.skipped, raw)
				}
			case "Link":
				linkTarget = attrVal(t.Attr, "target")
				linkLabel = attrVal(t.Attr, "label")
			case "Attribute":
				attrName = attrVal(t.Attr, "attribute_name")
			}

		case xml.CharData:
			chardata.Write(t)

		case xml.EndElement:
			switch localName(t.Name.Local) {
			case "BioSample":
				curBS, curBSValid = "", false

			case "Link":
				if curBSValid && linkTarget == "bioproject" {
					bp := linkLabel
					if bp == "" {
						bp = strings.TrimSpace(chardata.String())
					}
					if bp != "" && !strings.HasPrefix(bp, "PRJ") {
						bp = "PRJNA" + bp
					}
					if norm, ok := classifyAs(bp, accession.BioProject); ok {
						res.pairs = append(res.pairs, [2]string{curBS, norm})
					}
				}

			case "Attribute":
				if curBSValid && attrName == "bioproject_accession" {
					bp := strings.TrimSpace(chardata.String())
					if norm, ok := classifyAs(bp, accession.BioProject); ok {
						res.pairs = append(res.pairs, [2]string{curBS, norm})
					}
				}
			}
		}
	}
	return res, nil
}

// extractDDBJBioSampleFile reads one ddbj_*.xml shard. DDBJ's accession
// lives at <Ids><Id namespace="BioSample">, not a BioSample attribute; its
// BioProject comes from <Attribute attribute_name="bioproject_id"> (DDBJ's
// name) or "bioproject_accession" (kept for records that carry both).
func extractDDBJBioSampleFile(path string) (bioSampleFileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return bioSampleFileResult{}, fmt.Errorf("dblink: open %s: %w", path, err)
	}
	defer f.Close()

	var res bioSampleFileResult
	dec := xml.NewDecoder(f)

	var curBS string
	var curBSValid bool
	var inIDs bool
	var idNamespace, attrName string
	var chardata strings.Builder

	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return bioSampleFileResult{}, fmt.Errorf("dblink: decode %s: %w", path, terr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			chardata.Reset()
			switch localName(t.Name.Local) {
			case "BioSample":
				curBS, curBSValid = "", false
			case "Ids":
				inIDs = true
			case "Id":
				idNamespace = attrVal(t.Attr, "namespace")
			case "Attribute":
				attrName = attrVal(t.Attr, "attribute_name")
			}

		case xml.CharData:
			chardata.Write(t)

		case xml.EndElement:
			switch localName(t.Name.Local) {
			case "Ids":
				inIDs = false
			case "Id":
				if inIDs && idNamespace == "BioSample" {
					raw := strings.TrimSpace(chardata.String())
					norm, ok := classifyAs(raw, accession.BioSample)
					curBS, curBSValid = norm, ok
					if raw != "" && !ok {
						res.skipped = append(res.skipped, raw)
					}
				}
			case "BioSample":
				curBS, curBSValid = "", false
			case "Attribute":
				if curBSValid && (attrName == "bioproject_id" || attrName == "bioproject_accession") {
					bp := strings.TrimSpace(chardata.String())
					if norm, ok := classifyAs(bp, accession.BioProject); ok {
						res.pairs = append(res.pairs, [2]string{curBS, norm})
					}
				}
			}
		}
	}
	return res, nil
}

// bpBsXMLParallel fan-outs extractFn over files with a bounded worker pool,
// logging a DEBUG record per skipped accession, mirroring
// process_xml_files_parallel's ProcessPoolExecutor shape.
func bpBsXMLParallel(
	ctx context.Context,
	logr *runlog.Coordinator,
	workers int,
	files []string,
	extractFn func(string) (bioSampleFileResult, error),
	source string,
	out pairSet,
) error {
	if len(files) == 0 {
		return nil
	}
	results := workerpool.Run(ctx, workers, files, func(_ context.Context, job workerpool.Job[string]) (bioSampleFileResult, error) {
		return extractFn(job.Value)
	})
	return workerpool.Drain(results, func(r workerpool.Result[string, bioSampleFileResult]) error {
		if r.Err != nil {
			if logr != nil {
				logr.ErrorLog("error processing biosample shard", r.Err, runlog.WithFile(r.Job.Value))
			}
			return nil
		}
		for _, p := range r.Out.pairs {
			out.add(p[0], p[1])
		}
		for _, acc := range r.Out.skipped {
			logSkip(logr, acc, runlog.DebugCategoryInvalidBioSampleID, source, r.Job.Value)
		}
		return nil
	})
}

// BPBS builds the biosample<->bioproject edge set: NCBI/DDBJ BioSample
// shards, the SRA/DRA accessions store's own bioproject/biosample columns,
// and the human-curated preserved TSV, then filters the union against both
// blacklists. Matches bp_bs.py::main's four-source union.
func BPBS(
	ctx context.Context,
	logr *runlog.Coordinator,
	workers int,
	bsShardDir string,
	sraDB, draDB *accessionsdb.DB,
	preservedPath string,
	bl blacklist.BySource,
) ([]dblinkdb.Relation, error) {
	pairs := make(pairSet)

	if err := bpBsXMLParallel(ctx, logr, workers, globSorted(bsShardDir, "ncbi_"), extractNCBIBioSampleFile, "ncbi", pairs); err != nil {
		return nil, fmt.Errorf("dblink: bp_bs ncbi: %w", err)
	}
	if err := bpBsXMLParallel(ctx, logr, workers, globSorted(bsShardDir, "ddbj_"), extractDDBJBioSampleFile, "ddbj", pairs); err != nil {
		return nil, fmt.Errorf("dblink: bp_bs ddbj: %w", err)
	}

	for _, entry := range []struct {
		db     *accessionsdb.DB
		source string
	}{{sraDB, "sra"}, {draDB, "dra"}} {
		if entry.db == nil {
			continue
		}
		bpBsPairs, err := entry.db.RelationPairs(ctx, "SAMPLE", "bioproject", "biosample")
		if err != nil {
			return nil, fmt.Errorf("dblink: bp_bs %s accessions: %w", entry.source, err)
		}
		for _, pair := range bpBsPairs {
			bp, bs := pair[0], pair[1]
			bpNorm, bpOK := classifyAs(bp, accession.BioProject)
			if !bpOK {
				logSkip(logr, bp, runlog.DebugCategoryInvalidBioProjectID, entry.source, "")
				continue
			}
			bsNorm, bsOK := classifyAs(bs, accession.BioSample)
			if !bsOK {
				logSkip(logr, bs, runlog.DebugCategoryInvalidBioSampleID, entry.source, "")
				continue
			}
			pairs.add(bsNorm, bpNorm)
		}
	}

	if preservedPath != "" {
		preserved, skipped, err := blacklist.LoadPreservedWithSkips(preservedPath)
		if err != nil {
			return nil, fmt.Errorf("dblink: bp_bs preserved: %w", err)
		}
		for _, p := range preserved {
			if p.FromType == accession.BioSample && p.ToType == accession.BioProject {
				pairs.add(p.From, p.To)
			} else if p.FromType == accession.BioProject && p.ToType == accession.BioSample {
				pairs.add(p.To, p.From)
			}
		}
		if logr != nil {
			for _, line := range skipped {
				logr.Debug("skipping unclassifiable preserved row: "+line, runlog.DebugCategoryPreservedSkip, runlog.WithFile(preservedPath))
			}
		}
	}

	filtered := make(pairSet, len(pairs))
	for pair := range pairs {
		bs, bp := pair[0], pair[1]
		if bl.Contains(blacklist.SourceBioSample, bs) || bl.Contains(blacklist.SourceBioProject, bp) {
			continue
		}
		filtered[pair] = struct{}{}
	}

	return filtered.relations(accession.BioSample, accession.BioProject), nil
}
