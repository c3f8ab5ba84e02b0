package emitter

import (
	"path/filepath"
	"testing"

	"github.com/ddbj/dblinkd/internal/database"
	"github.com/ddbj/dblinkd/internal/progress"
)

func newTestTracker(t *testing.T) *progress.Tracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "progress.db")
	db, err := database.Initialize(dbPath)
	if err != nil {
		t.Fatalf("database.Initialize: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	tracker, err := progress.NewTracker(db)
	if err != nil {
		t.Fatalf("progress.NewTracker: %v", err)
	}
	return tracker
}

func TestSkipIfShardDoneNilTrackerNeverSkips(t *testing.T) {
	if skipIfShardDone(Deps{}, "ncbi", "bioproject", 1) {
		t.Error("a nil Progress tracker must never cause a skip")
	}
}

func TestMarkShardDoneNilTrackerIsNoop(t *testing.T) {
	if err := markShardDone(Deps{}, "ncbi", "bioproject", 1, 10); err != nil {
		t.Errorf("expected nil error with no tracker, got %v", err)
	}
}

func TestWriteShardMarksAndSkipsOnResume(t *testing.T) {
	tracker := newTestTracker(t)
	if err := tracker.StartRun("bioproject", "20260801", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	deps := Deps{Progress: tracker}
	dir := t.TempDir()

	docs := []*Document{{Accession: "PRJNA1", Type: "bioproject", Source: "ncbi"}}
	n, err := writeShard(deps, docs, dir, "bioproject", "20260801", "ncbi", "bioproject", "split_0003.xml")
	if err != nil {
		t.Fatalf("writeShard: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record written, got %d", n)
	}

	if !skipIfShardDone(deps, "ncbi", "bioproject", 3) {
		t.Error("expected the shard to be marked done after writeShard")
	}
}

func TestWriteShardMarksDoneEvenWithZeroDocuments(t *testing.T) {
	tracker := newTestTracker(t)
	if err := tracker.StartRun("bioproject", "20260801", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	deps := Deps{Progress: tracker}
	dir := t.TempDir()

	n, err := writeShard(deps, nil, dir, "bioproject", "20260801", "ncbi", "bioproject", "split_0005.xml")
	if err != nil {
		t.Fatalf("writeShard: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 records, got %d", n)
	}
	if !skipIfShardDone(deps, "ncbi", "bioproject", 5) {
		t.Error("a zero-document shard must still be recorded as done")
	}
}
