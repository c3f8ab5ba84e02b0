package emitter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
)

// LastRun is the persisted last_run.json shape: four string-or-null fields,
// one per incremental-tracked family (spec §6). A nil entry means "never
// run" and forces full mode for that family regardless of --full.
type LastRun struct {
	BioProject *time.Time `json:"bioproject"`
	BioSample  *time.Time `json:"biosample"`
	SRA        *time.Time `json:"sra"`
	JGA        *time.Time `json:"jga"` // always nil in practice: JGA has no modification field (spec 4.7 table)
}

// Get returns the recorded timestamp for family, or false if never run.
func (l *LastRun) Get(family accession.Family) (time.Time, bool) {
	field := l.field(family)
	if field == nil || *field == nil {
		return time.Time{}, false
	}
	return **field, true
}

// Set records ts as family's last successful run time.
func (l *LastRun) Set(family accession.Family, ts time.Time) {
	field := l.field(family)
	if field == nil {
		return
	}
	t := ts.UTC()
	*field = &t
}

func (l *LastRun) field(family accession.Family) **time.Time {
	switch family {
	case accession.FamilyBioProject:
		return &l.BioProject
	case accession.FamilyBioSample:
		return &l.BioSample
	case accession.FamilySRA:
		return &l.SRA
	case accession.FamilyJGA:
		return &l.JGA
	default:
		return nil
	}
}

// LoadLastRun reads last_run.json, returning an all-nil LastRun if the file
// does not exist yet (the pipeline's first run).
func LoadLastRun(path string) (*LastRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LastRun{}, nil
		}
		return nil, fmt.Errorf("emitter: read %s: %w", path, err)
	}
	var lr LastRun
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, fmt.Errorf("emitter: parse %s: %w", path, err)
	}
	return &lr, nil
}

// SaveLastRun writes lr atomically: a .tmp sibling, fsync, then rename,
// matching the shared-resource policy's last_run.json discipline (spec 5).
// Callers must only call this after both JSONL emission and sink ingest
// have succeeded for the family whose entry changed.
func SaveLastRun(path string, lr *LastRun) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("emitter: create last_run dir: %w", err)
	}
	data, err := json.MarshalIndent(lr, "", "  ")
	if err != nil {
		return fmt.Errorf("emitter: marshal last_run: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("emitter: create %s: %w", tmpPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("emitter: write %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("emitter: fsync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("emitter: close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("emitter: rename %s into place: %w", tmpPath, err)
	}
	return nil
}

// EffectiveCutoff returns last_run[family] - marginDays, or false if the
// family has never run (forcing full mode).
func EffectiveCutoff(lr *LastRun, family accession.Family, marginDays int) (time.Time, bool) {
	ts, ok := lr.Get(family)
	if !ok {
		return time.Time{}, false
	}
	return ts.AddDate(0, 0, -marginDays), true
}
