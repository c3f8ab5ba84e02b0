package dblink

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// jgaStudySet is jga-study.xml's top-level shape: one STUDY per JGA study,
// each carrying its own accession attribute, an NBDC Number study
// attribute (the hum-id link), and zero or more PUBMED publications.
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

// loadJGAStudyXML parses jga-study.xml in a single xml.Unmarshal pass: the
// whole file is one study catalog, not a multi-gigabyte shard, so streaming
// buys nothing here. Matches jga.py's load_jga_study_xml.
func loadJGAStudyXML(path string) ([]jgaStudy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dblink: read jga study xml %s: %w", path, err)
	}
	var set jgaStudySet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("dblink: parse jga study xml %s: %w", path, err)
	}
	return set.Studies, nil
}

// extractHumID returns the STUDY_ATTRIBUTE whose TAG is "NBDC Number",
// JGA's hum-id link. Matches jga.py's extract_hum_id.
func extractHumID(study jgaStudy) (string, bool) {
	for _, attr := range study.Attributes {
		if attr.Tag == "NBDC Number" {
			return attr.Value, attr.Value != ""
		}
	}
	return "", false
}

// extractPubMedIDs returns every PUBMED-typed publication id. Matches
// jga.py's extract_pubmed_ids.
func extractPubMedIDs(study jgaStudy) []string {
	var out []string
	for _, pub := range study.Publications {
		if pub.DBType == "PUBMED" && pub.ID != "" {
			out = append(out, pub.ID)
		}
	}
	return out
}

// readRelationCSV reads a JGA relation CSV (id,from_id,to_id, header row
// skipped) and returns the deduplicated (from_id, to_id) pairs. A missing
// file is treated as empty, matching jga.py's read_relation_csv.
func readRelationCSV(path string, logr *runlog.Coordinator) (pairSet, error) {
	out := make(pairSet)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if logr != nil {
				logr.Warning("jga relation csv not found: " + path)
			}
			return out, nil
		}
		return nil, fmt.Errorf("dblink: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return out, nil // empty or headerless file: nothing to join
	}
	for {
		row, rerr := r.Read()
		if rerr != nil {
			break
		}
		if len(row) < 3 {
			continue
		}
		out.add(row[1], row[2])
	}
	return out, nil
}

// joinRelations hash-joins (a, b) pairs in ab against (b, c) pairs in bc on
// the shared middle key, returning every (a, c). Matches jga.py's
// join_relations.
func joinRelations(ab, bc pairSet) pairSet {
	bToC := make(map[string][]string)
	for pair := range bc {
		bToC[pair[0]] = append(bToC[pair[0]], pair[1])
	}
	out := make(pairSet)
	for pair := range ab {
		a, b := pair[0], pair[1]
		for _, c := range bToC[b] {
			out.add(a, c)
		}
	}
	return out
}

func reversePairs(in pairSet) pairSet {
	out := make(pairSet, len(in))
	for pair := range in {
		out.add(pair[1], pair[0])
	}
	return out
}

func unionPairs(sets ...pairSet) pairSet {
	out := make(pairSet)
	for _, s := range sets {
		for pair := range s {
			out[pair] = struct{}{}
		}
	}
	return out
}

// JGARelationCSVPaths names the CSV files build_study_dataset_relation
// joins, plus the two SPEC_FULL.md names (dataset<->policy, policy<->dac)
// that jga.py's own main() never wires up: no JGA_DATASET_POLICY_CSV /
// JGA_POLICY_DAC_CSV constant exists in the reference material, so these
// two paths are an extrapolation of the other five's naming and CSV shape
// (id,from_id,to_id), not a transcription of working Python.
type JGARelationCSVPaths struct {
	DatasetAnalysis string
	AnalysisStudy   string
	DatasetData     string
	DataExperiment  string
	ExperimentStudy string
	DatasetPolicy   string
	PolicyDAC       string
}

// buildStudyDatasetRelation joins the five dataset/analysis/data/experiment/
// study CSVs into study->dataset pairs:
//
//	dataset_study = (dataset_analysis JOIN analysis_study)
//	              UNION (dataset_data JOIN data_experiment JOIN experiment_study)
//	study_dataset = reverse(dataset_study)
//
// Matches jga.py's build_study_dataset_relation.
func buildStudyDatasetRelation(paths JGARelationCSVPaths, logr *runlog.Coordinator) (pairSet, error) {
	datasetAnalysis, err := readRelationCSV(paths.DatasetAnalysis, logr)
	if err != nil {
		return nil, err
	}
	analysisStudy, err := readRelationCSV(paths.AnalysisStudy, logr)
	if err != nil {
		return nil, err
	}
	datasetData, err := readRelationCSV(paths.DatasetData, logr)
	if err != nil {
		return nil, err
	}
	dataExperiment, err := readRelationCSV(paths.DataExperiment, logr)
	if err != nil {
		return nil, err
	}
	experimentStudy, err := readRelationCSV(paths.ExperimentStudy, logr)
	if err != nil {
		return nil, err
	}

	path1 := joinRelations(datasetAnalysis, analysisStudy)
	dataStudy := joinRelations(dataExperiment, experimentStudy)
	path2 := joinRelations(datasetData, dataStudy)

	datasetStudy := unionPairs(path1, path2)
	return reversePairs(datasetStudy), nil
}

// JGA builds jga-study<->hum-id, jga-study<->pubmed-id, and
// jga-study<->jga-dataset edges from jga-study.xml plus the relation CSVs,
// and (per SPEC_FULL.md's extension of jga.py's scope, see
// JGARelationCSVPaths) jga-dataset<->jga-policy and jga-policy<->jga-dac
// edges read directly off their own relation CSVs (id,from_id,to_id).
func JGA(
	studyXMLPath string,
	csvPaths JGARelationCSVPaths,
	logr *runlog.Coordinator,
) ([]dblinkdb.Relation, error) {
	studies, err := loadJGAStudyXML(studyXMLPath)
	if err != nil {
		return nil, fmt.Errorf("dblink: jga: %w", err)
	}

	studyToHumID := make(pairSet)
	studyToPubMedID := make(pairSet)
	for _, study := range studies {
		if study.Accession == "" {
			continue
		}
		if humID, ok := extractHumID(study); ok {
			studyToHumID.add(study.Accession, humID)
		}
		for _, pubID := range extractPubMedIDs(study) {
			studyToPubMedID.add(study.Accession, pubID)
		}
	}

	studyToDataset, err := buildStudyDatasetRelation(csvPaths, logr)
	if err != nil {
		return nil, fmt.Errorf("dblink: jga dataset join: %w", err)
	}

	datasetToPolicy, err := readRelationCSV(csvPaths.DatasetPolicy, logr)
	if err != nil {
		return nil, fmt.Errorf("dblink: jga dataset_policy: %w", err)
	}
	policyToDAC, err := readRelationCSV(csvPaths.PolicyDAC, logr)
	if err != nil {
		return nil, fmt.Errorf("dblink: jga policy_dac: %w", err)
	}

	var out []dblinkdb.Relation
	out = append(out, studyToHumID.relations(accession.JGAStudy, accession.HumID)...)
	out = append(out, studyToPubMedID.relations(accession.JGAStudy, accession.PubMedID)...)
	out = append(out, studyToDataset.relations(accession.JGAStudy, accession.JGADataset)...)
	out = append(out, datasetToPolicy.relations(accession.JGADataset, accession.JGAPolicy)...)
	out = append(out, policyToDAC.relations(accession.JGAPolicy, accession.JGADAC)...)
	return out, nil
}
