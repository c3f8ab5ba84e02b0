package progress

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ddbj/dblinkd/internal/database"
)

func setupTestDatabase(t *testing.T) *database.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Initialize(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStartRunFreshCreatesRunningState(t *testing.T) {
	db := setupTestDatabase(t)
	tracker, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	if err := tracker.StartRun("bioproject", "20260801", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if tracker.ShardsCompleted() != 0 {
		t.Errorf("expected 0 completed shards on a fresh run, got %d", tracker.ShardsCompleted())
	}
}

func TestMarkShardDoneAndIsShardDone(t *testing.T) {
	db := setupTestDatabase(t)
	tracker, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tracker.StartRun("bioproject", "20260801", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	key := ShardKey("ncbi", "bioproject", 3)
	if tracker.IsShardDone(key) {
		t.Fatal("shard should not be done before MarkShardDone")
	}
	if err := tracker.MarkShardDone(key, 120); err != nil {
		t.Fatalf("MarkShardDone: %v", err)
	}
	if !tracker.IsShardDone(key) {
		t.Error("shard should be done after MarkShardDone")
	}
	if tracker.ShardsCompleted() != 1 {
		t.Errorf("expected 1 completed shard, got %d", tracker.ShardsCompleted())
	}
}

func TestStartRunResumePreloadsCompletedShards(t *testing.T) {
	db := setupTestDatabase(t)
	tracker, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tracker.StartRun("bioproject", "20260801", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	key := ShardKey("ncbi", "bioproject", 1)
	if err := tracker.MarkShardDone(key, 50); err != nil {
		t.Fatalf("MarkShardDone: %v", err)
	}

	// Simulate a fresh process resuming the same run.
	resumed, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := resumed.StartRun("bioproject", "20260801", true); err != nil {
		t.Fatalf("StartRun (resume): %v", err)
	}
	if !resumed.IsShardDone(key) {
		t.Error("expected the resumed tracker to know about the already-completed shard")
	}
}

func TestStartRunFreshDoesNotResumeACompletedRun(t *testing.T) {
	db := setupTestDatabase(t)
	tracker, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tracker.StartRun("bioproject", "20260801", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	key := ShardKey("ncbi", "bioproject", 1)
	if err := tracker.MarkShardDone(key, 50); err != nil {
		t.Fatalf("MarkShardDone: %v", err)
	}
	if err := tracker.CompleteRun(); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	// --full always starts fresh, even over a completed run's date.
	if err := tracker.StartRun("bioproject", "20260801", false); err != nil {
		t.Fatalf("StartRun (fresh over completed): %v", err)
	}
	if tracker.IsShardDone(key) {
		t.Error("a fresh (non-resume) run must not carry over a prior run's completed shards")
	}
}

func TestFailRunRecordsState(t *testing.T) {
	db := setupTestDatabase(t)
	tracker, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tracker.StartRun("sra", "20260801", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := tracker.FailRun("disk full"); err != nil {
		t.Fatalf("FailRun: %v", err)
	}

	// A resume after a failed run should still pick it back up.
	resumed, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := resumed.StartRun("sra", "20260801", true); err != nil {
		t.Fatalf("StartRun (resume after failure): %v", err)
	}
}

func TestShardKeyFormat(t *testing.T) {
	got := ShardKey("ncbi", "bioproject", 42)
	want := "ncbi/bioproject/0042"
	if got != want {
		t.Errorf("ShardKey = %q, want %q", got, want)
	}
}

func TestCleanupOldRuns(t *testing.T) {
	db := setupTestDatabase(t)
	tracker, err := NewTracker(db)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tracker.StartRun("jga", "20260101", false); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := tracker.CompleteRun(); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	if err := tracker.CleanupOldRuns(-time.Hour); err != nil {
		t.Fatalf("CleanupOldRuns: %v", err)
	}
}
