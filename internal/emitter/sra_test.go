package emitter

import (
	"testing"

	"github.com/ddbj/dblinkd/internal/accession"
)

func TestSraTypeOutputName(t *testing.T) {
	cases := map[accession.Type]string{
		accession.SRASubmission: "submission",
		accession.SRAStudy:      "study",
		accession.SRAExperiment: "experiment",
		accession.SRARun:        "run",
		accession.SRASample:     "sample",
		accession.SRAAnalysis:   "analysis",
		accession.BioProject:    "",
	}
	for typ, want := range cases {
		if got := sraTypeOutputName(typ); got != want {
			t.Errorf("sraTypeOutputName(%v) = %q, want %q", typ, got, want)
		}
	}
}

func TestShardInputName(t *testing.T) {
	if got, want := shardInputName(0), "split_0000.xml"; got != want {
		t.Errorf("shardInputName(0) = %q, want %q", got, want)
	}
	if got, want := shardInputName(12), "split_0012.xml"; got != want {
		t.Errorf("shardInputName(12) = %q, want %q", got, want)
	}
}

func TestMustParseType(t *testing.T) {
	if got := mustParseType("sra-run"); got != accession.SRARun {
		t.Errorf("mustParseType(sra-run) = %v, want SRARun", got)
	}
}
