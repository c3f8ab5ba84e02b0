package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/ddbj/dblinkd/internal/errors"
)

// Coordinator assigns a run_id, writes start/end records, fans out
// structured log lines, and exposes a cooperative cancellation flag workers
// poll on CRITICAL. One Coordinator is created per step invocation.
type Coordinator struct {
	runID   string
	runName string
	startTS time.Time

	mu       sync.Mutex
	file     *os.File
	counts   map[Level]int
	lastErr  error
	canceled atomic.Bool
}

// NewRun assigns run_id = {run_name}_{YYYYMMDDHHMMSS}, opens the JSONL log
// file under logPath, and writes the start record.
func NewRun(runName, logPath string) (*Coordinator, error) {
	now := time.Now().UTC()
	runID := fmt.Sprintf("%s_%s", runName, now.Format("20060102150405"))

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open log file: %w", err)
	}

	c := &Coordinator{
		runID:   runID,
		runName: runName,
		startTS: now,
		file:    f,
		counts:  make(map[Level]int),
	}
	c.write(Record{
		Timestamp: now,
		Level:     Info,
		RunID:     runID,
		RunName:   runName,
		Message:   "run started: " + runName,
		Source:    detectSource(),
	})
	return c, nil
}

// RunID returns the assigned run identifier.
func (c *Coordinator) RunID() string { return c.runID }

// Canceled reports whether a CRITICAL record has armed cooperative
// cancellation. Workers poll this between records.
func (c *Coordinator) Canceled() bool { return c.canceled.Load() }

func (c *Coordinator) write(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[r.Level]++
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	_, _ = c.file.Write(append(data, '\n'))
}

// Info logs an informational record.
func (c *Coordinator) Info(msg string) {
	c.write(Record{Timestamp: time.Now().UTC(), Level: Info, RunID: c.runID, RunName: c.runName, Message: msg, Source: detectSource()})
}

// Warning logs a recoverable problem; the operation continues.
func (c *Coordinator) Warning(msg string, opts ...Option) {
	r := Record{Timestamp: time.Now().UTC(), Level: Warning, RunID: c.runID, RunName: c.runName, Message: msg, Source: detectSource()}
	applyOptions(&r, opts)
	c.write(r)
}

// ErrorLog logs a shard/worker-level failure. error= is required by the
// schema and is taken from err, which must be non-nil.
func (c *Coordinator) ErrorLog(msg string, err error, opts ...Option) {
	r := Record{Timestamp: time.Now().UTC(), Level: Error, RunID: c.runID, RunName: c.runName, Message: msg, Error: err.Error(), Source: detectSource()}
	applyOptions(&r, opts)
	c.write(r)
}

// Debug logs a record-level skip. debug_category is required by the schema
// and is taken from category.
func (c *Coordinator) Debug(msg, category string, opts ...Option) {
	r := Record{Timestamp: time.Now().UTC(), Level: Debug, RunID: c.runID, RunName: c.runName, Message: msg, DebugCategory: category, Source: detectSource()}
	applyOptions(&r, opts)
	c.write(r)
}

// Critical logs a resource-missing/connection failure, arms cooperative
// cancellation, and returns an error the caller should propagate to abort
// the step.
func (c *Coordinator) Critical(msg string, err error) error {
	r := Record{Timestamp: time.Now().UTC(), Level: Critical, RunID: c.runID, RunName: c.runName, Message: msg, Source: detectSource()}
	if err != nil {
		r.Error = err.Error()
	}
	c.write(r)
	c.canceled.Store(true)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return apperrors.E(apperrors.Op(c.runName), apperrors.KindCritical, err, msg)
}

// End writes the terminal record and closes the log file. status is SUCCESS
// unless a CRITICAL or ERROR was logged or failed is true, in which case it
// is FAILED.
func (c *Coordinator) End(failed bool) RunRecord {
	c.mu.Lock()
	status := StatusSuccess
	if failed || c.canceled.Load() || c.counts[Error] > 0 {
		status = StatusFailed
	}
	endTS := time.Now().UTC()
	counts := make(map[Level]int, len(c.counts))
	for k, v := range c.counts {
		counts[k] = v
	}
	c.mu.Unlock()

	c.write(Record{
		Timestamp: endTS,
		Level:     Info,
		RunID:     c.runID,
		RunName:   c.runName,
		Message:   "run ended: " + string(status),
		Source:    detectSource(),
	})
	_ = c.file.Close()

	return RunRecord{
		RunID:         c.runID,
		RunName:       c.runName,
		StartTS:       c.startTS,
		EndTS:         endTS,
		Status:        status,
		CountsByLevel: counts,
	}
}

// Option mutates an in-flight Record before it is written; the With*
// constructors below are the schema's optional fields.
type Option func(*Record)

func WithFile(path string) Option      { return func(r *Record) { r.File = path } }
func WithAccession(acc string) Option  { return func(r *Record) { r.Accession = acc } }
func WithSource(source string) Option  { return func(r *Record) { r.Source = source } }

func applyOptions(r *Record, opts []Option) {
	for _, opt := range opts {
		opt(r)
	}
}

// detectSource walks up two stack frames to name the caller's package path,
// mirroring errors.LogAndContinue's runtime.Caller use but returning a Go
// package path instead of a bare filename.
func detectSource() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "<unknown>"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "<unknown>"
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		return name[:idx]
	}
	return name
}
