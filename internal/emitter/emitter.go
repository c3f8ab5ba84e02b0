// Package emitter implements the JSONL materializer: per-family (BP, BS,
// SRA, JGA) workers that join shard XML records with the DBLink graph and
// the date cache, normalize a handful of free-text fields, and write one
// JSON document per line under RESULT_DIR/{family}/jsonl/{YYYYMMDD}/. This
// generalizes the teacher's extractor_study.go decode-then-build-struct
// shape from a database.Study destination to a JSON-line destination, and
// its ExtractStudies batching loop from a database batch size to a shard
// output file.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/datecache"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/normalize"
	"github.com/ddbj/dblinkd/internal/progress"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// Document is the JSON shape written to one JSONL line. Family-specific
// builders populate Accession/Type/Attributes; enrich fills DBXrefs and the
// three date fields; normalization fills the normalized fields (organism,
// platform, ...) from the _raw_* scratch keys in Attributes, keeping the raw
// value when a normalizer rejects it, and then removes those scratch keys.
type Document struct {
	Accession     string           `json:"accession"`
	Type          string           `json:"type"`
	Source        string           `json:"source"`
	Organism      string           `json:"organism,omitempty"`
	OrganizationName string        `json:"organization_name,omitempty"`
	GrantAgency   string           `json:"grant_agency,omitempty"`
	OwnerName     string           `json:"owner_name,omitempty"`
	Platform      string           `json:"platform,omitempty"`
	LocusTagPrefix string          `json:"locus_tag_prefix,omitempty"`
	BioSampleSetID string          `json:"biosample_set_id,omitempty"`
	LocalID       string           `json:"local_id,omitempty"`
	DateCreated   string           `json:"date_created,omitempty"`
	DateModified  string           `json:"date_modified,omitempty"`
	DatePublished string           `json:"date_published,omitempty"`
	DBXrefs       []accession.Xref `json:"dbXrefs,omitempty"`
	Attributes    map[string]any   `json:"attributes,omitempty"`
}

// Deps bundles the read-only handles one worker opens exactly once, per
// spec 4.7's "do not spawn per-shard processes."
type Deps struct {
	DBLink    *dblinkdb.DB
	DateCache *datecache.DB // nil for families with no date-cache input (SRA, JGA)
	Blacklist blacklist.BySource
	Logger    *runlog.Coordinator
	Progress  *progress.Tracker // nil disables --resume shard-skip bookkeeping
}

// skipIfShardDone reports whether shard (source, typ, shardIndex) was
// already committed by a prior attempt at the current run, recording a
// DEBUG line when it causes a skip.
func skipIfShardDone(deps Deps, source, typ string, shardIndex int) bool {
	if deps.Progress == nil {
		return false
	}
	key := progress.ShardKey(source, typ, shardIndex)
	if !deps.Progress.IsShardDone(key) {
		return false
	}
	if deps.Logger != nil {
		deps.Logger.Debug(fmt.Sprintf("resume: skipping already-completed shard %s", key),
			runlog.DebugCategoryClassifySkip, runlog.WithSource(source))
	}
	return true
}

// markShardDone records a shard's completion for --resume bookkeeping; a
// nil deps.Progress makes this a no-op.
func markShardDone(deps Deps, source, typ string, shardIndex, records int) error {
	if deps.Progress == nil {
		return nil
	}
	return deps.Progress.MarkShardDone(progress.ShardKey(source, typ, shardIndex), records)
}

const timeLayout = time.RFC3339

// classifyAs validates raw against the shape expected for want and returns
// its normalized form, the same check internal/dblink's extractors apply
// before building a Relation.
func classifyAs(raw string, want accession.Type) (string, bool) {
	t, norm, _, ok := accession.Classify(raw)
	if !ok || t != want {
		return "", false
	}
	return norm, true
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

// EnrichBatch is enrichBatch's exported form, used by
// internal/emitter/regenerate which builds Documents outside any family's
// own shard pipeline.
func EnrichBatch(ctx context.Context, deps Deps, docs []*Document) error {
	return enrichBatch(ctx, deps, docs)
}

// enrichBatch looks up DBLink cross-references (always) and cached dates
// (when deps.DateCache is non-nil) for every document in docs, batched per
// shard rather than per record per DESIGN NOTES §9, and fills them in
// place. A present date-cache value always overrides whatever the
// family-specific builder already set (invariant I5).
func enrichBatch(ctx context.Context, deps Deps, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	accs := make([]string, len(docs))
	for i, d := range docs {
		accs[i] = d.Accession
	}

	xrefs, err := deps.DBLink.RelatedBulk(ctx, accs)
	if err != nil {
		return fmt.Errorf("emitter: related bulk lookup: %w", err)
	}
	for _, d := range docs {
		for _, x := range xrefs[d.Accession] {
			d.DBXrefs = append(d.DBXrefs, accession.ToXref(x.Accession, x.Type))
		}
	}

	if deps.DateCache == nil {
		return nil
	}
	dates, err := deps.DateCache.LookupBulk(ctx, accs)
	if err != nil {
		return fmt.Errorf("emitter: date cache bulk lookup: %w", err)
	}
	for _, d := range docs {
		dd, ok := dates[d.Accession]
		if !ok {
			continue
		}
		if !dd.DateCreated.IsZero() {
			d.DateCreated = formatDate(dd.DateCreated)
		}
		if !dd.DateModified.IsZero() {
			d.DateModified = formatDate(dd.DateModified)
		}
		if !dd.DatePublished.IsZero() {
			d.DatePublished = formatDate(dd.DatePublished)
		}
	}
	return nil
}

// normalizeField applies fn to raw; on rejection it returns raw unchanged
// and logs DEBUG under DebugCategoryNormalizeFallback, naming the field so
// the log line identifies which normalizer rejected its input (spec 4.7
// step 7: "on failure, emit the raw value and log DEBUG").
func normalizeField(logr *runlog.Coordinator, acc, field string, fn func(string) (string, bool), raw string) string {
	if raw == "" {
		return ""
	}
	if norm, ok := fn(raw); ok {
		return norm
	}
	if logr != nil {
		logr.Debug(fmt.Sprintf("normalize fallback on %s", field), runlog.DebugCategoryNormalizeFallback,
			runlog.WithAccession(acc))
	}
	return raw
}

// applyNormalization fills a Document's normalized fields from the raw
// strings family builders stash in Attributes under the "_raw_*" keys,
// then removes those scratch keys so they never reach the output line.
func applyNormalization(logr *runlog.Coordinator, d *Document) {
	raw := func(key string) string {
		v, _ := d.Attributes[key].(string)
		return v
	}
	if v := raw("_raw_organism"); v != "" {
		d.Organism = normalizeField(logr, d.Accession, "organism", normalize.Organism, v)
	}
	if v := raw("_raw_organization_name"); v != "" {
		d.OrganizationName = normalizeField(logr, d.Accession, "organization_name", normalize.OrganizationName, v)
	}
	if v := raw("_raw_grant_agency"); v != "" {
		d.GrantAgency = normalizeField(logr, d.Accession, "grant_agency", normalize.GrantAgency, v)
	}
	if v := raw("_raw_owner_name"); v != "" {
		d.OwnerName = normalizeField(logr, d.Accession, "owner_name", normalize.OwnerName, v)
	}
	if v := raw("_raw_platform"); v != "" {
		d.Platform = normalizeField(logr, d.Accession, "platform", normalize.Platform, v)
	}
	if v := raw("_raw_locus_tag_prefix"); v != "" {
		d.LocusTagPrefix = normalizeField(logr, d.Accession, "locus_tag_prefix", normalize.LocusTagPrefix, v)
	}
	if v := raw("_raw_biosample_set_id"); v != "" {
		d.BioSampleSetID = normalizeField(logr, d.Accession, "biosample_set_id", normalize.BioSampleSetID, v)
	}
	if v := raw("_raw_local_id"); v != "" {
		d.LocalID = normalizeField(logr, d.Accession, "local_id", normalize.LocalID, v)
	}
	for k := range d.Attributes {
		if len(k) > 5 && k[:5] == "_raw_" {
			delete(d.Attributes, k)
		}
	}
	if len(d.Attributes) == 0 {
		d.Attributes = nil
	}
}

// ShardWriter writes one family's shard output file, matching the teacher's
// buffered-then-renamed-into-place discipline used throughout the splitter
// and dblinkdb packages: content lands in a .tmp sibling and is renamed
// atomically only once every line has been written successfully.
type ShardWriter struct {
	path    string
	tmpPath string
	file    *os.File
}

// NewShardWriter opens path+".tmp" for writing, creating parent directories
// as needed.
func NewShardWriter(path string) (*ShardWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("emitter: create shard dir: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("emitter: create %s: %w", tmpPath, err)
	}
	return &ShardWriter{path: path, tmpPath: tmpPath, file: f}, nil
}

// WriteDocument marshals doc and appends it as one JSONL line.
func (w *ShardWriter) WriteDocument(doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("emitter: marshal document %s: %w", doc.Accession, err)
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("emitter: write document %s: %w", doc.Accession, err)
	}
	return nil
}

// Commit flushes, closes, and renames the staged file into place.
func (w *ShardWriter) Commit() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("emitter: close %s: %w", w.tmpPath, err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return fmt.Errorf("emitter: rename %s into place: %w", w.tmpPath, err)
	}
	return nil
}

// Discard removes the staged file without publishing it, used when a shard
// fails partway through (spec 5: "flush partial output to a discarded tmp
// path, and exit").
func (w *ShardWriter) Discard() error {
	_ = w.file.Close()
	return os.Remove(w.tmpPath)
}

// ShardOutputPath builds {result_dir}/{family}/jsonl/{YYYYMMDD}/{source}_{type}_{NNNN}.jsonl.
func ShardOutputPath(resultDir, family, yyyymmdd, source, typ string, shardIndex int) string {
	name := fmt.Sprintf("%s_%s_%04d.jsonl", source, typ, shardIndex)
	return filepath.Join(resultDir, family, "jsonl", yyyymmdd, name)
}
