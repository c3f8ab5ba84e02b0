package emitter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUniqueCSVColumnDedupesAndSkipsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset-policy.csv")
	content := "id,from_id,to_id\n1,JGAD001,JGAP001\n2,JGAD001,JGAP001\n3,JGAD002,JGAP002\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got := uniqueCSVColumn(path, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct values, got %v", got)
	}
	if got[0] != "JGAD001" || got[1] != "JGAD002" {
		t.Errorf("got %v", got)
	}
}

func TestUniqueCSVColumnMissingFileReturnsNil(t *testing.T) {
	if got := uniqueCSVColumn(filepath.Join(t.TempDir(), "nope.csv"), 1); got != nil {
		t.Errorf("expected nil for a missing file, got %v", got)
	}
}

func TestUniqueCSVColumnSkipsEmptyAndOutOfRangeCells(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy-dac.csv")
	content := "id,from_id,to_id\n1,JGAP001,\n2,JGAP002,JGAD001\n3,JGAP003\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got := uniqueCSVColumn(path, 2)
	if len(got) != 1 || got[0] != "JGAD001" {
		t.Errorf("got %v, want [JGAD001]", got)
	}
}

func TestLoadJGAStudiesMissingFileIsEmpty(t *testing.T) {
	studies, err := loadJGAStudies(filepath.Join(t.TempDir(), "nope.xml"))
	if err != nil {
		t.Fatalf("loadJGAStudies: %v", err)
	}
	if studies != nil {
		t.Errorf("expected nil studies for a missing file, got %v", studies)
	}
}

const jgaStudyFixture = `<?xml version="1.0"?>
<STUDY_SET>
  <STUDY accession="JGAS00001">
    <STUDY_ATTRIBUTES>
      <STUDY_ATTRIBUTE><TAG>NBDC Number</TAG><VALUE>hum0001</VALUE></STUDY_ATTRIBUTE>
    </STUDY_ATTRIBUTES>
    <PUBLICATIONS>
      <PUBLICATION DB_TYPE="PUBMED" id="12345"/>
    </PUBLICATIONS>
  </STUDY>
</STUDY_SET>
`

func TestLoadJGAStudiesParsesAttributesAndPublications(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jga-study.xml")
	if err := os.WriteFile(path, []byte(jgaStudyFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	studies, err := loadJGAStudies(path)
	if err != nil {
		t.Fatalf("loadJGAStudies: %v", err)
	}
	if len(studies) != 1 {
		t.Fatalf("expected 1 study, got %d", len(studies))
	}
	s := studies[0]
	if s.Accession != "JGAS00001" {
		t.Errorf("accession = %q", s.Accession)
	}
	if len(s.Attributes) != 1 || s.Attributes[0].Tag != "NBDC Number" || s.Attributes[0].Value != "hum0001" {
		t.Errorf("attributes = %v", s.Attributes)
	}
	if len(s.Publications) != 1 || s.Publications[0].DBType != "PUBMED" || s.Publications[0].ID != "12345" {
		t.Errorf("publications = %v", s.Publications)
	}
}
