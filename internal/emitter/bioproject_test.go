package emitter

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBpSubmissionModifiedPrefersLastUpdate(t *testing.T) {
	sub := bpSubmission{LastUpdate: "2026-06-15", Submitted: "2025-01-01"}
	got, ok := bpSubmissionModified(sub)
	if !ok {
		t.Fatal("expected a parsed time")
	}
	if want := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBpSubmissionModifiedFallsBackToSubmitted(t *testing.T) {
	sub := bpSubmission{Submitted: "2025-01-01"}
	got, ok := bpSubmissionModified(sub)
	if !ok {
		t.Fatal("expected a parsed time")
	}
	if want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBpSubmissionModifiedNeitherPresent(t *testing.T) {
	if _, ok := bpSubmissionModified(bpSubmission{}); ok {
		t.Error("expected false when neither last_update nor submitted is set")
	}
}

func TestBpSubmissionModifiedUnparseable(t *testing.T) {
	if _, ok := bpSubmissionModified(bpSubmission{LastUpdate: "not-a-date"}); ok {
		t.Error("expected false for an unparseable date")
	}
}

func TestBpSourceFromFile(t *testing.T) {
	cases := map[string]string{
		"/tmp/ncbi_bioproject.xml": "ncbi",
		"ncbi_001.xml":             "ncbi",
		"ddbj_001.xml":             "ddbj",
		"/tmp/other_file.xml":      "ddbj",
	}
	for path, want := range cases {
		if got := bpSourceFromFile(path); got != want {
			t.Errorf("bpSourceFromFile(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGlobSortedXMLReturnsSortedMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ncbi_0002.xml", "ncbi_0001.xml", "ddbj_0001.xml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("<x/>"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	got := globSortedXML(dir, "ncbi_")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if filepath.Base(got[0]) != "ncbi_0001.xml" || filepath.Base(got[1]) != "ncbi_0002.xml" {
		t.Errorf("expected sorted order, got %v", got)
	}
}

func TestShardIndexFromPath(t *testing.T) {
	cases := map[string]int{
		"split_0004.xml":       4,
		"/tmp/split_0123.xml":  123,
		"ncbi_bioproject.xml":  0,
		"split_0000.xml":       0,
	}
	for path, want := range cases {
		if got := shardIndexFromPath(path); got != want {
			t.Errorf("shardIndexFromPath(%q) = %d, want %d", path, got, want)
		}
	}
}
