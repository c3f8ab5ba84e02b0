// Package datesource reads the external PostgreSQL date-of-record tables
// (created/modified/published per accession) that internal/datecache
// snapshots into the columnar store once per run.
package datesource

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Client wraps a pgx connection pool scoped to the date-source tables.
type Client struct {
	pool *pgxpool.Pool
}

// Connect opens a pooled connection to url. Callers should treat any
// returned error as CRITICAL: the date cache cannot be built without it.
func Connect(ctx context.Context, url string) (*Client, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("datesource: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("datesource: ping: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Close releases the pool.
func (c *Client) Close() { c.pool.Close() }

// DateRecord is one row projected from the source tables.
type DateRecord struct {
	Accession     string
	DateCreated   time.Time
	DateModified  time.Time
	DatePublished time.Time
}

// Family names which per-entity date table a bulk query targets.
type Family string

const (
	FamilyBioProject Family = "bioproject"
	FamilyBioSample  Family = "biosample"
)

// tableFor maps a Family to its source table name. Both BP and BS date
// records live in mirrored tables with identical column names in the
// upstream metadata warehouse.
func tableFor(family Family) (string, error) {
	switch family {
	case FamilyBioProject:
		return "mass.bioproject_date", nil
	case FamilyBioSample:
		return "mass.biosample_date", nil
	default:
		return "", fmt.Errorf("datesource: unknown family %q", family)
	}
}

// FetchAll issues one bulk query per family and streams rows to yield. The
// query runs under a 600s timeout derived from ctx.
func (c *Client) FetchAll(ctx context.Context, family Family, yield func(DateRecord) error) error {
	table, err := tableFor(family)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 600*time.Second)
	defer cancel()

	query := fmt.Sprintf(`SELECT accession, date_created, date_modified, date_published FROM %s`, table)
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("datesource: query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec DateRecord
		if err := rows.Scan(&rec.Accession, &rec.DateCreated, &rec.DateModified, &rec.DatePublished); err != nil {
			return fmt.Errorf("datesource: scan row from %s: %w", table, err)
		}
		if err := yield(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}
