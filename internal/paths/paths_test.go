package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetPaths(t *testing.T) {
	t.Setenv("RESULT_DIR", "")
	t.Setenv("CONST_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")

	p := GetPaths()

	if p.ResultDir == "" {
		t.Error("ResultDir should not be empty")
	}
	if p.ConstDir == "" {
		t.Error("ConstDir should not be empty")
	}
	if !strings.Contains(p.ResultDir, "dblinkd") {
		t.Errorf("ResultDir should contain 'dblinkd', got %q", p.ResultDir)
	}
}

func TestGetPathsWithEnv(t *testing.T) {
	t.Setenv("RESULT_DIR", "/custom/result")
	t.Setenv("CONST_DIR", "/custom/const")

	p := GetPaths()
	if p.ResultDir != "/custom/result" {
		t.Errorf("expected ResultDir '/custom/result', got %q", p.ResultDir)
	}
	if p.ConstDir != "/custom/const" {
		t.Errorf("expected ConstDir '/custom/const', got %q", p.ConstDir)
	}
}

func TestGetPathsWithXDGFallback(t *testing.T) {
	t.Setenv("RESULT_DIR", "")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	p := GetPaths()
	if p.ResultDir != "/xdg/data/dblinkd/result" {
		t.Errorf("expected '/xdg/data/dblinkd/result', got %q", p.ResultDir)
	}
}

func TestLayoutHelpers(t *testing.T) {
	p := Paths{ResultDir: "/r", ConstDir: "/c"}

	if got := p.LogPath("dblink_build_20260803120000"); got != "/r/logs/dblink_build_20260803120000.log.jsonl" {
		t.Errorf("unexpected log path %q", got)
	}
	if got := p.TmpXMLDir("bp"); got != "/r/tmp_xml/bp" {
		t.Errorf("unexpected tmp xml dir %q", got)
	}
	if got := p.JSONLDir("20260803"); got != "/r/jsonl/20260803" {
		t.Errorf("unexpected jsonl dir %q", got)
	}
	if got := p.LastRunPath(); got != "/r/last_run.json" {
		t.Errorf("unexpected last_run path %q", got)
	}
	if got := p.AccessionsStorePath("sra"); got != "/c/sra/sra_accessions.duckdb" {
		t.Errorf("unexpected accessions store path %q", got)
	}
	if got := p.DBLinkStorePath(); got != "/c/dblink/dblink.duckdb" {
		t.Errorf("unexpected dblink store path %q", got)
	}
	if got := p.BlacklistPath("bp"); got != "/c/blacklist/bp.txt" {
		t.Errorf("unexpected blacklist path %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		ResultDir: filepath.Join(dir, "result"),
		ConstDir:  filepath.Join(dir, "const"),
	}

	if err := EnsureDirectories(p); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	expectedDirs := []string{
		p.LogsDir(),
		p.TmpXMLDir("bp"),
		p.TmpXMLDir("bs"),
		p.SRADir(),
		p.DBLinkDir(),
	}
	for _, d := range expectedDirs {
		if _, err := os.Stat(d); os.IsNotExist(err) {
			t.Errorf("expected directory %q to be created", d)
		}
	}
}
