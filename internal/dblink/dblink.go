// Package dblink implements the seven relation extractors that populate the
// DBLink graph: bp_bs, bp_internal, assembly_master, gea, metabobank, jga,
// and sra_internal. Each extractor is a pure function from its inputs (shard
// files, the accessions store, blacklists) to a slice of dblinkdb.Relation;
// the coordinator in coordinator.go is the only piece that knows about
// run-log sequencing and the shared DuckDB writer.
package dblink

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// classifyAs validates raw against the shape expected for want and returns
// its normalized form, or false if it doesn't match - the Go equivalent of
// is_valid_accession(raw, want) plus the normalization Classify already does
// (insdc-master version stripping, whitespace trimming).
func classifyAs(raw string, want accession.Type) (string, bool) {
	t, norm, _, ok := accession.Classify(raw)
	if !ok || t != want {
		return "", false
	}
	return norm, true
}

// pairSet dedups (src, dst) string pairs the way the Python originals lean
// on a bare set() before ever touching SQL.
type pairSet map[[2]string]struct{}

func (s pairSet) add(a, b string) { s[[2]string{a, b}] = struct{}{} }

func (s pairSet) relations(srcType, dstType accession.Type) []dblinkdb.Relation {
	out := make([]dblinkdb.Relation, 0, len(s))
	for pair := range s {
		out = append(out, dblinkdb.NewRelation(srcType, pair[0], dstType, pair[1]))
	}
	return out
}

// logSkip emits the DEBUG record every extractor logs when an endpoint
// fails classification, matching the log_debug(..., debug_category=...)
// calls throughout the Python originals.
func logSkip(logr *runlog.Coordinator, acc, category, source, file string) {
	if logr == nil {
		return
	}
	logr.Debug("skipping invalid accession: "+acc, category,
		runlog.WithAccession(acc), runlog.WithSource(source), runlog.WithFile(file))
}

// globSorted returns path/prefix*.xml entries in ascending order, matching
// the Python originals' sorted(dir.glob(...)) fan-out list.
func globSorted(dir, prefix string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, prefix+"*.xml"))
	sort.Strings(matches)
	return matches
}

// localName strips an XML namespace prefix the way the teacher's parser and
// the Python ET.iterparse tag.split("}")[-1] both do.
func localName(name string) string {
	if idx := strings.LastIndex(name, "}"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
