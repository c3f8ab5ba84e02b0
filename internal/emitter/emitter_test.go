package emitter

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestShardOutputPath(t *testing.T) {
	got := ShardOutputPath("/result", "bioproject", "20260801", "ncbi", "bioproject", 7)
	want := filepath.Join("/result", "bioproject", "jsonl", "20260801", "ncbi_bioproject_0007.jsonl")
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestApplyNormalizationFillsFromRawAndStripsScratchKeys(t *testing.T) {
	d := &Document{
		Accession: "PRJNA1",
		Attributes: map[string]any{
			"title":         "a study",
			"_raw_organism": "human",
		},
	}
	applyNormalization(nil, d)

	if d.Organism != "Homo sapiens" {
		t.Errorf("organism = %q, want Homo sapiens", d.Organism)
	}
	if _, ok := d.Attributes["_raw_organism"]; ok {
		t.Error("_raw_organism scratch key should have been removed")
	}
	if d.Attributes["title"] != "a study" {
		t.Error("non-scratch attribute should be preserved")
	}
}

func TestApplyNormalizationFallsBackOnRejection(t *testing.T) {
	d := &Document{
		Accession: "PRJNA1",
		Attributes: map[string]any{
			"_raw_platform": "some unknown sequencer",
		},
	}
	applyNormalization(nil, d)

	if d.Platform != "some unknown sequencer" {
		t.Errorf("expected raw fallback value, got %q", d.Platform)
	}
}

func TestApplyNormalizationEmptyAttributesBecomesNil(t *testing.T) {
	d := &Document{
		Accession:  "PRJNA1",
		Attributes: map[string]any{"_raw_organism": "mouse"},
	}
	applyNormalization(nil, d)
	if d.Attributes != nil {
		t.Errorf("expected Attributes to be nil once all scratch keys are drained, got %v", d.Attributes)
	}
}

func TestDocumentJSONOmitsEmptyFields(t *testing.T) {
	d := &Document{Accession: "PRJNA1", Type: "bioproject", Source: "ncbi"}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{"organism", "organization_name", "grant_agency", "owner_name",
		"platform", "locus_tag_prefix", "biosample_set_id", "local_id",
		"date_created", "date_modified", "date_published", "dbXrefs", "attributes"} {
		if _, ok := m[field]; ok {
			t.Errorf("expected field %q to be omitted when empty", field)
		}
	}
	for _, field := range []string{"accession", "type", "source"} {
		if _, ok := m[field]; !ok {
			t.Errorf("expected required field %q to be present", field)
		}
	}
}

func TestShardWriterCommitWritesJSONLAndRenames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.jsonl")

	w, err := NewShardWriter(path)
	if err != nil {
		t.Fatalf("NewShardWriter: %v", err)
	}
	if err := w.WriteDocument(&Document{Accession: "PRJNA1", Type: "bioproject", Source: "ncbi"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if err := w.WriteDocument(&Document{Accession: "PRJNA2", Type: "bioproject", Source: "ncbi"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected .tmp file to be gone after Commit")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open committed file: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		var doc Document
		if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}
}

func TestShardWriterDiscardRemovesTmp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	w, err := NewShardWriter(path)
	if err != nil {
		t.Fatalf("NewShardWriter: %v", err)
	}
	if err := w.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected .tmp file to be removed after Discard")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Discard must never publish the final path")
	}
}
