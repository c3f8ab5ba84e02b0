package emitter

import (
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/dblink"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// jgaStudySet mirrors internal/dblink/jga.go's own unexported shape; kept
// as a second small copy here rather than exporting the dblink package's
// internals, since the two packages read the same file for different
// purposes (edges vs. documents) and the shape is a handful of fields.
type jgaStudySet struct {
	XMLName xml.Name   `xml:"STUDY_SET"`
	Studies []jgaStudy `xml:"STUDY"`
}

type jgaStudy struct {
	Accession    string              `xml:"accession,attr"`
	Attributes   []jgaStudyAttribute `xml:"STUDY_ATTRIBUTES>STUDY_ATTRIBUTE"`
	Publications []jgaPublication    `xml:"PUBLICATIONS>PUBLICATION"`
}

type jgaStudyAttribute struct {
	Tag   string `xml:"TAG"`
	Value string `xml:"VALUE"`
}

type jgaPublication struct {
	DBType string `xml:"DB_TYPE,attr"`
	ID     string `xml:"id,attr"`
}

func loadJGAStudies(path string) ([]jgaStudy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("emitter: read jga study xml %s: %w", path, err)
	}
	var set jgaStudySet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("emitter: parse jga study xml %s: %w", path, err)
	}
	return set.Studies, nil
}

// uniqueCSVColumn collects the distinct values of one column from a
// (id,from_id,to_id) relation CSV, skipping a missing file or header.
func uniqueCSVColumn(path string, col int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for {
		row, rerr := r.Read()
		if rerr != nil {
			break
		}
		if col >= len(row) || row[col] == "" {
			continue
		}
		if _, ok := seen[row[col]]; !ok {
			seen[row[col]] = struct{}{}
			out = append(out, row[col])
		}
	}
	return out
}

// GenerateJGAJSONL emits one JGAStudy document per jga-study.xml entry and
// one minimal document per distinct dataset/policy/DAC accession the
// relation CSVs name. JGA's modification field is always null (spec 4.7
// table), so there is no incremental cutoff branch here: every run is full.
func GenerateJGAJSONL(ctx context.Context, deps Deps, studyXMLPath string, csvPaths dblink.JGARelationCSVPaths, resultDir, yyyymmdd string) (recordsWritten int, err error) {
	if skipIfShardDone(deps, "jga", "all", 0) {
		return 0, nil
	}
	studies, err := loadJGAStudies(studyXMLPath)
	if err != nil {
		return 0, err
	}

	var docs []*Document
	for _, s := range studies {
		norm, ok := classifyAs(s.Accession, accession.JGAStudy)
		if !ok {
			logEmitterSkip(deps.Logger, s.Accession, runlog.DebugCategoryClassifySkip, "jga", studyXMLPath)
			continue
		}
		if deps.Blacklist.Contains(blacklist.SourceJGA, norm) {
			continue
		}
		var humID string
		for _, a := range s.Attributes {
			if a.Tag == "NBDC Number" {
				humID = a.Value
			}
		}
		var pubmedIDs []string
		for _, p := range s.Publications {
			if p.DBType == "PUBMED" && p.ID != "" {
				pubmedIDs = append(pubmedIDs, p.ID)
			}
		}
		docs = append(docs, &Document{
			Accession: norm,
			Type:      accession.JGAStudy.String(),
			Source:    "jga",
			Attributes: map[string]any{
				"hum_id":      humID,
				"pubmed_ids":  pubmedIDs,
			},
		})
	}

	for _, acc := range uniqueCSVColumn(csvPaths.DatasetPolicy, 1) {
		addMinimalJGADoc(&docs, deps, acc, accession.JGADataset, blacklist.SourceJGA)
	}
	for _, acc := range uniqueCSVColumn(csvPaths.DatasetPolicy, 2) {
		addMinimalJGADoc(&docs, deps, acc, accession.JGAPolicy, blacklist.SourceJGA)
	}
	for _, acc := range uniqueCSVColumn(csvPaths.PolicyDAC, 2) {
		addMinimalJGADoc(&docs, deps, acc, accession.JGADAC, blacklist.SourceJGA)
	}

	if err := enrichBatch(ctx, deps, docs); err != nil {
		return 0, err
	}
	for _, d := range docs {
		applyNormalization(deps.Logger, d)
	}

	n, err := writeShard(deps, docs, resultDir, "jga", yyyymmdd, "jga", "all", "split_0000.xml")
	return n, err
}

func addMinimalJGADoc(docs *[]*Document, deps Deps, raw string, typ accession.Type, src blacklist.Source) {
	norm, ok := classifyAs(raw, typ)
	if !ok {
		logEmitterSkip(deps.Logger, raw, runlog.DebugCategoryClassifySkip, "jga", "")
		return
	}
	if deps.Blacklist.Contains(src, norm) {
		return
	}
	for _, d := range *docs {
		if d.Accession == norm && d.Type == typ.String() {
			return
		}
	}
	*docs = append(*docs, &Document{Accession: norm, Type: typ.String(), Source: "jga"})
}
