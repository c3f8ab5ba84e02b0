package accession

import (
	"fmt"
	"strconv"
	"strings"
)

// Xref is a single cross-reference entry attached to an emitted JSONL
// document, grounded on jsonl/utils.py's Xref/to_xref.
type Xref struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
	URL        string `json:"url"`
}

var urlTemplate = map[Type]string{
	BioSample:          "https://ddbj.nig.ac.jp/search/entries/biosample/%s",
	BioProject:         "https://ddbj.nig.ac.jp/search/entries/bioproject/%s",
	UmbrellaBioProject: "https://ddbj.nig.ac.jp/search/entries/bioproject/%s",
	SRASubmission:      "https://ddbj.nig.ac.jp/search/entries/sra-submission/%s",
	SRAStudy:           "https://ddbj.nig.ac.jp/search/entries/sra-study/%s",
	SRAExperiment:      "https://ddbj.nig.ac.jp/search/entries/sra-experiment/%s",
	SRARun:             "https://ddbj.nig.ac.jp/search/entries/sra-run/%s",
	SRASample:          "https://ddbj.nig.ac.jp/search/entries/sra-sample/%s",
	SRAAnalysis:        "https://ddbj.nig.ac.jp/search/entries/sra-analysis/%s",
	JGAStudy:           "https://ddbj.nig.ac.jp/search/entries/jga-study/%s",
	JGADataset:         "https://ddbj.nig.ac.jp/search/entries/jga-dataset/%s",
	JGADAC:             "https://ddbj.nig.ac.jp/search/entries/jga-dac/%s",
	JGAPolicy:          "https://ddbj.nig.ac.jp/search/entries/jga-policy/%s",
	Geo:                "https://www.ncbi.nlm.nih.gov/geo/query/acc.cgi?acc=%s",
	INSDCAssembly:      "https://www.ncbi.nlm.nih.gov/datasets/genome/%s",
	INSDCMaster:        "https://www.ncbi.nlm.nih.gov/nuccore/%s",
	MetaboBank:         "https://mb2.ddbj.nig.ac.jp/study/%s.html",
	HumID:              "https://humandbs.dbcls.jp/%s",
	PubMedID:           "https://pubmed.ncbi.nlm.nih.gov/%s/",
	Taxonomy:           "https://www.ncbi.nlm.nih.gov/Taxonomy/Browser/wwwtax.cgi?mode=Info&id=%s",
}

// gea bucketing: experiment pages are grouped under a prefix floor to the
// nearest 1000, e.g. E-GEAD-7 -> E-GEAD-000.
func geaURL(id string) string {
	numStr := strings.TrimPrefix(id, "E-GEAD-")
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return fmt.Sprintf("https://ddbj.nig.ac.jp/public/ddbj_database/gea/experiment/E-GEAD-000/%s/", id)
	}
	prefix := fmt.Sprintf("E-GEAD-%03d", (n/1000)*1000)
	return fmt.Sprintf("https://ddbj.nig.ac.jp/public/ddbj_database/gea/experiment/%s/%s/", prefix, id)
}

// ToXref builds a Xref for id. When typeHint is known (Unknown if not), it
// is trusted directly; otherwise id is reclassified via the priority-ordered
// table, falling back to Taxonomy when nothing matches — an id that reached
// here at all already passed some upstream classification, so the fallback
// only governs presentation, not pipeline correctness.
func ToXref(id string, typeHint Type) Xref {
	t := typeHint
	if t == Unknown {
		if classified, _, _, ok := Classify(id); ok {
			t = classified
		} else {
			t = Taxonomy
		}
	}
	if t == GEA {
		return Xref{Identifier: id, Type: t.String(), URL: geaURL(id)}
	}
	tmpl, ok := urlTemplate[t]
	if !ok {
		tmpl = urlTemplate[Taxonomy]
	}
	return Xref{Identifier: id, Type: t.String(), URL: fmt.Sprintf(tmpl, id)}
}
