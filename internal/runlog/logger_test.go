package runlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/ddbj/dblinkd/internal/errors"
)

func TestNewRunAssignsID(t *testing.T) {
	dir := t.TempDir()
	c, err := NewRun("init_dblink_db", filepath.Join(dir, "run.log.jsonl"))
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if !strings.HasPrefix(c.RunID(), "init_dblink_db_") {
		t.Errorf("expected run_id to start with run_name, got %q", c.RunID())
	}
	c.End(false)
}

func TestRecordLevelsAndTerminalStatus(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log.jsonl")
	c, err := NewRun("create_dblink_bp_bs_relations", logPath)
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}

	c.Info("processing shard")
	c.Warning("malformed field", WithFile("shard_0001.xml"))
	c.Debug("skip invalid id", "INVALID_ACCESSION_ID", WithAccession("bogus"))
	c.ErrorLog("shard failed", errors.New("boom"), WithFile("shard_0002.xml"))

	rec := c.End(false)
	if rec.Status != StatusFailed {
		t.Errorf("expected FAILED status after an ERROR record, got %v", rec.Status)
	}
	if rec.CountsByLevel[Error] != 1 {
		t.Errorf("expected 1 ERROR record counted, got %d", rec.CountsByLevel[Error])
	}
	if rec.CountsByLevel[Debug] != 1 {
		t.Errorf("expected 1 DEBUG record counted, got %d", rec.CountsByLevel[Debug])
	}

	lines := readLines(t, logPath)
	var sawDebugCategory, sawError bool
	for _, line := range lines {
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("failed to unmarshal log line: %v", err)
		}
		if r.Level == Debug {
			if r.DebugCategory == "" {
				t.Error("DEBUG record missing debug_category")
			}
			sawDebugCategory = true
		}
		if r.Level == Error {
			if r.Error == "" {
				t.Error("ERROR record missing error field")
			}
			sawError = true
		}
	}
	if !sawDebugCategory || !sawError {
		t.Error("expected both a DEBUG and an ERROR record in the log")
	}
}

func TestCriticalArmsCancellation(t *testing.T) {
	dir := t.TempDir()
	c, err := NewRun("build_sra_and_dra_accessions_db", filepath.Join(dir, "run.log.jsonl"))
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}

	if c.Canceled() {
		t.Fatal("should not be canceled before any CRITICAL record")
	}
	retErr := c.Critical("date source unreachable", errors.New("connection refused"))
	if retErr == nil {
		t.Error("Critical should return a non-nil error")
	}
	if !c.Canceled() {
		t.Error("Critical should arm cancellation")
	}

	if apperrors.GetKind(retErr) != apperrors.KindCritical {
		t.Errorf("expected Critical's returned error to carry KindCritical, got %v", apperrors.GetKind(retErr))
	}

	rec := c.End(false)
	if rec.Status != StatusFailed {
		t.Errorf("expected FAILED status after CRITICAL, got %v", rec.Status)
	}
}

func TestWriteLockExclusivity(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "dblink.duckdb.tmp")

	lock1, err := AcquireWriteLock(dbPath)
	if err != nil {
		t.Fatalf("first AcquireWriteLock failed: %v", err)
	}
	if _, err := AcquireWriteLock(dbPath); err == nil {
		t.Error("expected second AcquireWriteLock to fail while first is held")
	}
	if err := lock1.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	lock2, err := AcquireWriteLock(dbPath)
	if err != nil {
		t.Fatalf("AcquireWriteLock after release should succeed: %v", err)
	}
	_ = lock2.Release()
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
