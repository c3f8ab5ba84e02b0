package emitter

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBsLastUpdateParsesDateTime(t *testing.T) {
	got, ok := bsLastUpdate("2026-05-01T10:00:00Z")
	if !ok {
		t.Fatal("expected a parsed time")
	}
	if want := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBsLastUpdateParsesDateOnly(t *testing.T) {
	got, ok := bsLastUpdate("2026-05-01")
	if !ok {
		t.Fatal("expected a parsed time")
	}
	if want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBsLastUpdateEmptyOrInvalid(t *testing.T) {
	if _, ok := bsLastUpdate(""); ok {
		t.Error("expected false for empty input")
	}
	if _, ok := bsLastUpdate("not-a-date"); ok {
		t.Error("expected false for unparseable input")
	}
}

const bsFixture = `<?xml version="1.0"?>
<BioSampleSet>
  <BioSample last_update="2026-06-01T00:00:00Z">
    <Ids>
      <Id namespace="BioSample">SAMN00000001</Id>
      <Id namespace="SRA">SRS000001</Id>
    </Ids>
    <Description>
      <Title>a sample</Title>
      <Paragraph>a description</Paragraph>
    </Description>
    <Owner>
      <Name>Some Institute</Name>
    </Owner>
    <Attributes>
      <Attribute attribute_name="organism">Homo sapiens</Attribute>
      <Attribute attribute_name="tissue">liver</Attribute>
    </Attributes>
  </BioSample>
</BioSampleSet>
`

func TestExtractBioSampleShard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ncbi_0001.xml")
	if err := os.WriteFile(path, []byte(bsFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, err := extractBioSampleShard(path)
	if err != nil {
		t.Fatalf("extractBioSampleShard: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.accession != "SAMN00000001" {
		t.Errorf("accession = %q, want SAMN00000001 (not the SRA-namespace id)", r.accession)
	}
	if r.lastUpdate != "2026-06-01T00:00:00Z" {
		t.Errorf("lastUpdate = %q", r.lastUpdate)
	}
	if r.title != "a sample" {
		t.Errorf("title = %q", r.title)
	}
	if r.description != "a description" {
		t.Errorf("description = %q", r.description)
	}
	if r.ownerName != "Some Institute" {
		t.Errorf("ownerName = %q", r.ownerName)
	}
	if r.organism != "Homo sapiens" {
		t.Errorf("organism = %q", r.organism)
	}
	if r.attributes["tissue"] != "liver" {
		t.Errorf("expected tissue attribute to be captured, got %v", r.attributes)
	}
	if _, ok := r.attributes["organism"]; ok {
		t.Error("organism attribute should be routed to the organism field, not attributes map")
	}
}
