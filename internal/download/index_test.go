package download

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTestTar(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tar")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create tar: %v", err)
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	names := []string{}
	for name := range members {
		names = append(names, name)
	}
	for _, name := range names {
		body := members[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(body)), Mode: 0o644}); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("write body %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	return path
}

func TestBuildIndexRecordsEveryRegularFile(t *testing.T) {
	tarPath := writeTestTar(t, map[string]string{
		"ERA000/ERA000001/submission.xml": "<SUBMISSION/>",
		"ERA000/ERA000002/submission.xml": "<SUBMISSION id=\"2\"/>",
	})

	index, err := BuildIndex(tarPath)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(index))
	}
	for name, entry := range index {
		if entry.Size <= 0 {
			t.Errorf("%s: expected positive size, got %d", name, entry.Size)
		}
	}
}

func TestBuildIndexAndReadEntryRoundTrip(t *testing.T) {
	body := "<SUBMISSION id=\"roundtrip\"/>"
	tarPath := writeTestTar(t, map[string]string{"a/b.xml": body})

	index, err := BuildIndex(tarPath)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	entry, ok := index["a/b.xml"]
	if !ok {
		t.Fatalf("expected a/b.xml in index")
	}

	got, err := ReadEntry(tarPath, entry)
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(got, []byte(body)) {
		t.Errorf("ReadEntry = %q, want %q", got, body)
	}
}

func TestSaveAndLoadIndexRoundTrip(t *testing.T) {
	tarPath := writeTestTar(t, map[string]string{"x.xml": "<X/>"})
	index, err := BuildIndex(tarPath)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if err := SaveIndex(IndexPath(tarPath), index); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}

	loaded, err := LoadIndex(tarPath)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if loaded["x.xml"] != index["x.xml"] {
		t.Errorf("loaded index mismatch: got %+v, want %+v", loaded["x.xml"], index["x.xml"])
	}
}

func TestLoadIndexBuildsWhenSidecarMissing(t *testing.T) {
	tarPath := writeTestTar(t, map[string]string{"y.xml": "<Y/>"})

	index, err := LoadIndex(tarPath)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if _, ok := index["y.xml"]; !ok {
		t.Fatalf("expected y.xml in freshly built index")
	}
	if _, err := os.Stat(IndexPath(tarPath)); err != nil {
		t.Errorf("expected LoadIndex to persist a sidecar index: %v", err)
	}
}

func TestIndexPathIsSiblingOfTar(t *testing.T) {
	got := IndexPath("/data/sra/NCBI_SRA.tar")
	want := "/data/sra/NCBI_SRA.tar.idx.json"
	if got != want {
		t.Errorf("IndexPath = %q, want %q", got, want)
	}
}
