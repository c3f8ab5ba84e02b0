package emitter

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/ddbj/dblinkd/internal/workerpool"
)

func attrVal(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func localName(name string) string {
	if idx := strings.LastIndex(name, "}"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// bsRecord is one BioSample's extracted document fields, token-streamed the
// same way internal/dblink/bp_bs.go reads the accession/bioproject link,
// extended here with the descriptive fields an emitted document needs.
type bsRecord struct {
	accession   string
	lastUpdate  string
	title       string
	description string
	organism    string
	ownerName   string
	attributes  map[string]string
}

// extractBioSampleShard streams one BioSample shard, emitting one bsRecord
// per <BioSample> element. Organism comes from an <Attribute> whose tag is
// "organism" or "scientific_name", matching the teacher's own inline
// organism extraction rule referenced in DESIGN.md.
func extractBioSampleShard(path string) ([]bsRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("emitter: open %s: %w", path, err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	var records []bsRecord
	var cur bsRecord
	var inIDs bool
	var idNamespace string
	var inDescr, inOwner bool
	var attrName string
	var chardata strings.Builder

	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return nil, fmt.Errorf("emitter: decode %s: %w", path, terr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			chardata.Reset()
			switch localName(t.Name.Local) {
			case "BioSample":
				cur = bsRecord{lastUpdate: attrVal(t.Attr, "last_update"), attributes: map[string]string{}}
			case "Ids":
				inIDs = true
			case "Id":
				idNamespace = attrVal(t.Attr, "namespace")
			case "Description":
				inDescr = true
			case "Owner":
				inOwner = true
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
					cur.accession = strings.TrimSpace(chardata.String())
				}
			case "Title":
				if inDescr {
					cur.title = strings.TrimSpace(chardata.String())
				}
			case "Paragraph":
				if inDescr {
					cur.description = strings.TrimSpace(chardata.String())
				}
			case "Description":
				inDescr = false
			case "Name":
				if inOwner {
					cur.ownerName = strings.TrimSpace(chardata.String())
				}
			case "Owner":
				inOwner = false
			case "Attribute":
				val := strings.TrimSpace(chardata.String())
				if attrName == "organism" || attrName == "scientific_name" {
					cur.organism = val
				} else if attrName != "" {
					cur.attributes[attrName] = val
				}
			case "BioSample":
				records = append(records, cur)
			}
		}
	}
	return records, nil
}

func bsSourceFromFile(path string) string {
	return bpSourceFromFile(path)
}

func bsLastUpdate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// GenerateBioSampleJSONL mirrors GenerateBioProjectJSONL's pipeline for the
// BioSample family.
func GenerateBioSampleJSONL(ctx context.Context, deps Deps, workers int, shardDir, resultDir, yyyymmdd string, cutoff time.Time, hasCutoff bool) (shardsWritten, recordsWritten int, err error) {
	files := append(globSortedXML(shardDir, "ncbi_"), globSortedXML(shardDir, "ddbj_")...)
	if len(files) == 0 {
		return 0, 0, nil
	}

	results := workerpool.Run(ctx, workers, files, func(_ context.Context, job workerpool.Job[string]) (int, error) {
		return processBioSampleShard(ctx, deps, job.Value, resultDir, yyyymmdd, cutoff, hasCutoff)
	})

	err = workerpool.Drain(results, func(r workerpool.Result[string, int]) error {
		if r.Err != nil {
			if deps.Logger != nil {
				deps.Logger.ErrorLog("biosample shard failed", r.Err, runlog.WithFile(r.Job.Value))
			}
			return nil
		}
		shardsWritten++
		recordsWritten += r.Out
		return nil
	})
	return shardsWritten, recordsWritten, err
}

func processBioSampleShard(ctx context.Context, deps Deps, path, resultDir, yyyymmdd string, cutoff time.Time, hasCutoff bool) (int, error) {
	source := bsSourceFromFile(path)
	if skipIfShardDone(deps, source, accession.BioSample.String(), shardIndexFromPath(path)) {
		return 0, nil
	}
	raws, err := extractBioSampleShard(path)
	if err != nil {
		return 0, err
	}

	var docs []*Document
	for _, r := range raws {
		norm, ok := classifyAs(r.accession, accession.BioSample)
		if !ok {
			logEmitterSkip(deps.Logger, r.accession, runlog.DebugCategoryInvalidBioSampleID, source, path)
			continue
		}
		if deps.Blacklist.Contains(blacklist.SourceBioSample, norm) {
			continue
		}
		if hasCutoff {
			if modified, ok := bsLastUpdate(r.lastUpdate); ok && modified.Before(cutoff) {
				continue
			}
		}

		attrs := map[string]any{
			"title":                  r.title,
			"description":            r.description,
			"_raw_organism":          r.organism,
			"_raw_owner_name":        r.ownerName,
			"_raw_biosample_set_id":  r.attributes["biosample_set_id"],
		}
		for k, v := range r.attributes {
			if k == "biosample_set_id" {
				continue
			}
			attrs[k] = v
		}
		docs = append(docs, &Document{
			Accession:  norm,
			Type:       accession.BioSample.String(),
			Source:     source,
			Attributes: attrs,
		})
	}

	if err := enrichBatch(ctx, deps, docs); err != nil {
		return 0, err
	}
	for _, d := range docs {
		applyNormalization(deps.Logger, d)
	}

	return writeShard(deps, docs, resultDir, "biosample", yyyymmdd, source, accession.BioSample.String(), path)
}
