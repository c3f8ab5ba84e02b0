package emitter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
)

func TestLastRunGetSetRoundTrip(t *testing.T) {
	var lr LastRun
	if _, ok := lr.Get(accession.FamilyBioProject); ok {
		t.Fatal("expected never-run family to report false")
	}
	ts := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	lr.Set(accession.FamilyBioProject, ts)
	got, ok := lr.Get(accession.FamilyBioProject)
	if !ok {
		t.Fatal("expected Get to report true after Set")
	}
	if !got.Equal(ts) {
		t.Errorf("got %v, want %v", got, ts)
	}
	if _, ok := lr.Get(accession.FamilyBioSample); ok {
		t.Error("setting bioproject must not affect biosample")
	}
}

func TestLastRunJGAFieldUnreachable(t *testing.T) {
	var lr LastRun
	lr.Set(accession.FamilyJGA, time.Now().UTC())
	if _, ok := lr.Get(accession.FamilyJGA); !ok {
		t.Error("JGA field itself still round-trips even though production never sets it")
	}
}

func TestEffectiveCutoffAppliesMargin(t *testing.T) {
	var lr LastRun
	last := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	lr.Set(accession.FamilySRA, last)

	cutoff, ok := EffectiveCutoff(&lr, accession.FamilySRA, 30)
	if !ok {
		t.Fatal("expected a cutoff for a family with a recorded run")
	}
	want := last.AddDate(0, 0, -30)
	if !cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", cutoff, want)
	}
}

func TestEffectiveCutoffNeverRun(t *testing.T) {
	var lr LastRun
	if _, ok := EffectiveCutoff(&lr, accession.FamilyBioProject, 30); ok {
		t.Error("expected false when the family has never run")
	}
}

func TestLoadLastRunMissingFileIsAllNil(t *testing.T) {
	dir := t.TempDir()
	lr, err := LoadLastRun(filepath.Join(dir, "last_run.json"))
	if err != nil {
		t.Fatalf("LoadLastRun: %v", err)
	}
	for _, f := range []accession.Family{accession.FamilyBioProject, accession.FamilyBioSample, accession.FamilySRA, accession.FamilyJGA} {
		if _, ok := lr.Get(f); ok {
			t.Errorf("expected family %s to be unset on first run", f)
		}
	}
}

func TestSaveAndLoadLastRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "last_run.json")

	var lr LastRun
	ts := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	lr.Set(accession.FamilyBioSample, ts)

	if err := SaveLastRun(path, &lr); err != nil {
		t.Fatalf("SaveLastRun: %v", err)
	}
	if _, err := filepath.Glob(path + ".tmp"); err != nil {
		t.Fatalf("unexpected glob error: %v", err)
	}

	loaded, err := LoadLastRun(path)
	if err != nil {
		t.Fatalf("LoadLastRun: %v", err)
	}
	got, ok := loaded.Get(accession.FamilyBioSample)
	if !ok {
		t.Fatal("expected biosample entry to survive round trip")
	}
	if !got.Equal(ts) {
		t.Errorf("got %v, want %v", got, ts)
	}
	if _, ok := loaded.Get(accession.FamilyBioProject); ok {
		t.Error("bioproject was never set and should remain nil")
	}
}
