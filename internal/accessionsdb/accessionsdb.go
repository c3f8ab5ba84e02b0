// Package accessionsdb loads the daily SRA/DRA accessions tab files into a
// columnar DuckDB store and exposes the submission/downstream/type lookups
// the DBLink sra_internal extractor and JSONL incremental cutoff depend on.
package accessionsdb

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ddbj/dblinkd/internal/accession"
)

// Source names which upstream accessions tab a row was loaded from.
type Source string

const (
	SourceNCBISRA Source = "sra"
	SourceDDBJDRA Source = "dra"
)

// DB wraps the accessions DuckDB store.
type DB struct {
	*sql.DB
	path string
}

// accessionsTableDDL mirrors SRA_Accessions.tab's own column layout
// (Accession, Submission, BioSample, BioProject, Study, Experiment, Sample,
// Type, Updated, Published) rather than a normalized relational schema: a
// single row's Type names what its own Accession is (STUDY, EXPERIMENT,
// RUN, SAMPLE, ANALYSIS, SUBMISSION), and the parent-id columns carry that
// row's ancestors. internal/dblink's sra_internal extractor derives every
// internal SRA relation and every BioProject/BioSample<->SRA relation by
// filtering this one table on Type and a pair of non-null columns.
const accessionsTableDDL = `
CREATE TABLE IF NOT EXISTS accessions (
	accession TEXT NOT NULL,
	submission TEXT,
	bioproject TEXT,
	biosample TEXT,
	study TEXT,
	experiment TEXT,
	sample TEXT,
	type TEXT NOT NULL,
	updated TIMESTAMP,
	published TIMESTAMP,
	source TEXT NOT NULL
);
`

// Open opens (creating if absent) the accessions DuckDB file at path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("accessionsdb: open %s: %w", path, err)
	}
	if _, err := sqlDB.Exec(accessionsTableDDL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("accessionsdb: create table: %w", err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// Build bulk-loads tabPath (the daily SRA_Accessions.tab or
// DRA_Accessions.tab) into path via DuckDB's read_csv, replacing any
// existing table content from the same source so the build is idempotent.
// The header row is mandatory; a headerless file is refused.
func Build(ctx context.Context, path, tabPath string, source Source) error {
	if err := requireHeader(tabPath); err != nil {
		return fmt.Errorf("accessionsdb: %w", err)
	}

	db, err := Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `DELETE FROM accessions WHERE source = $1`, string(source)); err != nil {
		return fmt.Errorf("accessionsdb: clear existing rows for %s: %w", source, err)
	}

	// DuckDB's read_csv infers the SRAmetadb column layout from the header.
	// Rows from different sources are kept side by side; collisions on
	// (type, accession) are neither resolved nor logged here, and TypeOf
	// returns whichever matching row the query yields first. A row's
	// own Type+Accession already identify it as a study/experiment/run/
	// sample/analysis/submission; there is no separate Analysis/Run column
	// in the source file, only BioProject/BioSample ancestry columns.
	query := fmt.Sprintf(`
		INSERT INTO accessions
		SELECT
			Accession AS accession,
			Submission AS submission,
			BioProject AS bioproject,
			BioSample AS biosample,
			Study AS study,
			Experiment AS experiment,
			Sample AS sample,
			Type AS type,
			TRY_CAST(Updated AS TIMESTAMP) AS updated,
			TRY_CAST(Published AS TIMESTAMP) AS published,
			'%s' AS source
		FROM read_csv('%s', header=true, delim='\t', nullstr='-')
	`, string(source), tabPath)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("accessionsdb: bulk load %s: %w", tabPath, err)
	}
	return nil
}

func requireHeader(tabPath string) error {
	f, err := os.Open(tabPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", tabPath, err)
	}
	defer f.Close()

	buf := make([]byte, 32)
	n, _ := f.Read(buf)
	if n == 0 {
		return fmt.Errorf("%s is empty, expected a header row", tabPath)
	}
	if buf[0] == '\t' || buf[0] == '\n' {
		return fmt.Errorf("%s does not appear to begin with a header row", tabPath)
	}
	return nil
}

// Accession is one row of the accessions store.
type Accession struct {
	Accession  string
	Submission string
	BioProject string
	BioSample  string
	Study      string
	Experiment string
	Sample     string
	Type       accession.Type
	Updated    time.Time
	Published  time.Time
	Source     Source
}

const accessionColumns = `accession, submission, bioproject, biosample, study, experiment, sample, type, updated, published, source`

// Downstream returns every accession descending from submission (its
// study/experiment/run/sample/analysis children).
func (db *DB) Downstream(ctx context.Context, submission string) ([]Accession, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+accessionColumns+`
		FROM accessions WHERE submission = $1
	`, submission)
	if err != nil {
		return nil, fmt.Errorf("accessionsdb: downstream query: %w", err)
	}
	defer rows.Close()
	return scanAccessions(rows)
}

// RelationPairs returns every distinct, non-null (parentCol, childCol) pair
// among rows of the given record type, mirroring the Python original's
// iter_*_relations helpers (e.g. Study<->Experiment via recordType
// "EXPERIMENT", parentCol "study", childCol "accession"). Used by
// internal/dblink's sra_internal extractor to derive both the internal SRA
// hierarchy and the BioProject/BioSample<->SRA relations from this one
// table without a bespoke query per relation.
func (db *DB) RelationPairs(ctx context.Context, recordType, parentCol, childCol string) ([][2]string, error) {
	if !isAccessionColumn(parentCol) || !isAccessionColumn(childCol) {
		return nil, fmt.Errorf("accessionsdb: relation_pairs: invalid column name %q/%q", parentCol, childCol)
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT %s, %s FROM accessions
		WHERE type = $1 AND %s IS NOT NULL AND %s IS NOT NULL
	`, parentCol, childCol, parentCol, childCol)

	rows, err := db.QueryContext(ctx, query, recordType)
	if err != nil {
		return nil, fmt.Errorf("accessionsdb: relation_pairs(%s, %s, %s): %w", recordType, parentCol, childCol, err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("accessionsdb: scan relation pair: %w", err)
		}
		out = append(out, [2]string{a, b})
	}
	return out, rows.Err()
}

// isAccessionColumn allow-lists the columns RelationPairs may interpolate,
// since parentCol/childCol are not user-bound query parameters.
func isAccessionColumn(col string) bool {
	switch col {
	case "accession", "submission", "bioproject", "biosample", "study", "experiment", "sample":
		return true
	default:
		return false
	}
}

// TypeOf returns the accession type of acc, or false if it is not present
// in the store.
func (db *DB) TypeOf(ctx context.Context, acc string) (accession.Type, bool, error) {
	var typStr string
	err := db.QueryRowContext(ctx, `SELECT type FROM accessions WHERE accession = $1 LIMIT 1`, acc).Scan(&typStr)
	if err == sql.ErrNoRows {
		return accession.Unknown, false, nil
	}
	if err != nil {
		return accession.Unknown, false, fmt.Errorf("accessionsdb: type_of query: %w", err)
	}
	t, ok := rowTypes[typStr]
	if !ok {
		return accession.Unknown, false, nil
	}
	return t, true, nil
}

// rowTypes maps the accessions tab's Type column values to accession types.
var rowTypes = map[string]accession.Type{
	"SUBMISSION": accession.SRASubmission,
	"STUDY":      accession.SRAStudy,
	"EXPERIMENT": accession.SRAExperiment,
	"RUN":        accession.SRARun,
	"SAMPLE":     accession.SRASample,
	"ANALYSIS":   accession.SRAAnalysis,
}

// UpdatedSince runs the cutoff query immediately (so connection/query
// errors surface at the call site) and returns a Go 1.23 range-over-func
// iterator that streams rows lazily as the caller ranges over it. Breaking
// out of the range loop closes the underlying rows.
func (db *DB) UpdatedSince(ctx context.Context, ts time.Time) (iter.Seq[Accession], error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+accessionColumns+`
		FROM accessions WHERE updated >= $1
	`, ts)
	if err != nil {
		return nil, fmt.Errorf("accessionsdb: updated_since query: %w", err)
	}

	return func(yield func(Accession) bool) {
		defer rows.Close()
		for rows.Next() {
			acc, err := scanOneAccession(rows)
			if err != nil {
				return
			}
			if !yield(acc) {
				return
			}
		}
	}, nil
}

func scanAccessions(rows *sql.Rows) ([]Accession, error) {
	var out []Accession
	for rows.Next() {
		acc, err := scanOneAccession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func scanOneAccession(rows *sql.Rows) (Accession, error) {
	var acc Accession
	var typStr, source string
	var bioproject, biosample, study, experiment, sample sql.NullString
	var updated, published sql.NullTime
	if err := rows.Scan(
		&acc.Accession, &acc.Submission, &bioproject, &biosample,
		&study, &experiment, &sample, &typStr, &updated, &published, &source,
	); err != nil {
		return Accession{}, fmt.Errorf("accessionsdb: scan row: %w", err)
	}
	acc.BioProject = bioproject.String
	acc.BioSample = biosample.String
	acc.Study = study.String
	acc.Experiment = experiment.String
	acc.Sample = sample.String
	t, ok := rowTypes[typStr]
	if !ok {
		t = accession.Unknown
	}
	acc.Type = t
	acc.Source = Source(source)
	if updated.Valid {
		acc.Updated = updated.Time
	}
	if published.Valid {
		acc.Published = published.Time
	}
	return acc, nil
}

// Close closes the underlying DuckDB connection.
func (db *DB) Close() error { return db.DB.Close() }
