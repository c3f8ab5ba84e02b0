// Package runlog implements the run coordinator and structured log facade:
// run_id assignment, start/end records, the JSONL log sink, and the
// single-writer-discipline lock the DBLink builder depends on. The schema
// is hand-rolled the same way the teacher hand-rolls its own errors.Error
// and the Python original hand-rolls logging/schema.py — neither reaches
// for a structured-logging library, so neither do we.
package runlog

import "time"

// Level is the run-log severity. Order matches the taxonomy in the error
// handling design: CRITICAL aborts the step, the rest are recovered.
type Level string

const (
	Critical Level = "CRITICAL"
	Error    Level = "ERROR"
	Warning  Level = "WARNING"
	Info     Level = "INFO"
	Debug    Level = "DEBUG"
)

// Record is one line of the run's JSONL log file.
type Record struct {
	Timestamp      time.Time `json:"ts"`
	Level          Level     `json:"level"`
	RunID          string    `json:"run_id"`
	RunName        string    `json:"run_name"`
	Message        string    `json:"msg"`
	File           string    `json:"file,omitempty"`
	Accession      string    `json:"accession,omitempty"`
	Source         string    `json:"source,omitempty"`
	DebugCategory  string    `json:"debug_category,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Status is the terminal state of a run.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// RunRecord is the persisted summary of one step's execution.
type RunRecord struct {
	RunID        string         `json:"run_id"`
	RunName      string         `json:"run_name"`
	StartTS      time.Time      `json:"start_ts"`
	EndTS        time.Time      `json:"end_ts,omitempty"`
	Status       Status         `json:"status"`
	CountsByLevel map[Level]int `json:"counts_by_level"`
}

// Debug categories: the closed set of debug_category names used across the
// pipeline.
const (
	DebugCategoryPrivateUmbrellaParent = "PRIVATE_UMBRELLA_PARENT"
	DebugCategoryInvalidBioSampleID    = "INVALID_BIOSAMPLE_ID"
	DebugCategoryInvalidBioProjectID   = "INVALID_BIOPROJECT_ID"
	DebugCategoryInvalidAccessionID    = "INVALID_ACCESSION_ID"
	DebugCategoryClassifySkip          = "CLASSIFY_SKIP"
	DebugCategoryPreservedSkip         = "PRESERVED_SKIP"
	DebugCategoryNormalizeFallback     = "NORMALIZE_FALLBACK"
	DebugCategoryDuplicateDownstream   = "DUPLICATE_DOWNSTREAM"
)
