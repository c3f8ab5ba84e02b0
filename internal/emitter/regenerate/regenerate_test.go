package regenerate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
)

func TestClassifyAsAcceptsMatchingType(t *testing.T) {
	norm, ok := classifyAs("PRJNA123", accession.BioProject)
	if !ok {
		t.Fatal("expected PRJNA123 to classify as bioproject")
	}
	if norm != "PRJNA123" {
		t.Errorf("got %q", norm)
	}
}

func TestClassifyAsRejectsWrongType(t *testing.T) {
	if _, ok := classifyAs("PRJNA123", accession.BioSample); ok {
		t.Error("a bioproject accession must not classify as biosample")
	}
}

func TestClassifyAsRejectsGarbage(t *testing.T) {
	if _, ok := classifyAs("not-an-accession", accession.BioProject); ok {
		t.Error("expected false for unparseable input")
	}
}

func TestBlacklistSourceFor(t *testing.T) {
	cases := map[accession.Type]blacklist.Source{
		accession.BioProject:    blacklist.SourceBioProject,
		accession.BioSample:     blacklist.SourceBioSample,
		accession.SRASubmission: blacklist.SourceSRA,
		accession.JGAStudy:      blacklist.SourceJGA,
	}
	for typ, want := range cases {
		got, ok := blacklistSourceFor(typ)
		if !ok {
			t.Fatalf("expected a blacklist source for %v", typ)
		}
		if got != want {
			t.Errorf("blacklistSourceFor(%v) = %v, want %v", typ, got, want)
		}
	}
}

func TestParseAccessionFileSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accessions.txt")
	content := "PRJNA1\n\nPRJNA2\n  \nPRJNA3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := ParseAccessionFile(path)
	if err != nil {
		t.Fatalf("ParseAccessionFile: %v", err)
	}
	want := []string{"PRJNA1", "PRJNA2", "PRJNA3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseAccessionFileMissingFile(t *testing.T) {
	if _, err := ParseAccessionFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
