package splitter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleXML = `<BioSampleSet>
<BioSample accession="SAMN00000001"><Description>one</Description></BioSample>
<BioSample accession="SAMN00000002"><Description>two</Description></BioSample>
<BioSample accession="SAMN00000003"><Description>three</Description></BioSample>
</BioSampleSet>`

func TestSplitProducesShardsOfConfiguredSize(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "shards")

	shardCount, recordCount, err := Split(strings.NewReader(sampleXML), "sample.xml", Options{
		RecordTag: "BioSample",
		ShardSize: 2,
		OutDir:    outDir,
	})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if recordCount != 3 {
		t.Errorf("expected 3 records, got %d", recordCount)
	}
	if shardCount != 2 {
		t.Errorf("expected 2 shards (2 + 1), got %d", shardCount)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("failed to read out dir: %v", err)
	}
	if len(entries) != shardCount {
		t.Errorf("expected %d shard files on disk, found %d", shardCount, len(entries))
	}

	first, err := os.ReadFile(filepath.Join(outDir, "split_0000.xml"))
	if err != nil {
		t.Fatalf("failed to read first shard: %v", err)
	}
	if !strings.HasPrefix(string(first), "<BioSampleSet>") {
		t.Error("expected shard to be wrapped in root element open tag")
	}
	if !strings.Contains(string(first), "SAMN00000001") || !strings.Contains(string(first), "SAMN00000002") {
		t.Error("expected first shard to contain the first two records")
	}
	if strings.Contains(string(first), "SAMN00000003") {
		t.Error("first shard should not contain the third record")
	}
}

func TestSplitRejectsUnmatchedEndTag(t *testing.T) {
	dir := t.TempDir()
	broken := `<BioSampleSet><BioSample accession="SAMN1">foo</BioSampleSet>`

	_, _, err := Split(strings.NewReader(broken), "broken.xml", Options{
		RecordTag: "BioSample",
		ShardSize: 10,
		OutDir:    filepath.Join(dir, "shards"),
	})
	if err == nil {
		t.Error("expected an error for an unmatched end tag")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "shards")); statErr == nil {
		entries, _ := os.ReadDir(filepath.Join(dir, "shards"))
		if len(entries) != 0 {
			t.Error("expected no partial shards left behind on failure")
		}
	}
}

func TestSplitEmptyRecordSetProducesNoShards(t *testing.T) {
	dir := t.TempDir()
	shardCount, recordCount, err := Split(strings.NewReader(`<BioSampleSet></BioSampleSet>`), "empty.xml", Options{
		RecordTag: "BioSample",
		ShardSize: 10,
		OutDir:    filepath.Join(dir, "shards"),
	})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if shardCount != 0 || recordCount != 0 {
		t.Errorf("expected 0 shards and records, got %d/%d", shardCount, recordCount)
	}
}
