// Package dblinkdb implements the DBLink relation graph: a single DuckDB
// table of undirected accession-to-accession edges, canonicalized,
// deduplicated, blacklist-filtered, and dumped to per-pair TSV files.
package dblinkdb

import (
	"fmt"

	"github.com/ddbj/dblinkd/internal/accession"
)

// Relation is one undirected edge between two accessions.
type Relation struct {
	SrcType      accession.Type
	SrcAccession string
	DstType      accession.Type
	DstAccession string
}

// Canonicalize reorders the endpoints so Src <= Dst under
// accession.Less, so that an edge discovered in either direction collapses
// to the same row.
func (r Relation) Canonicalize() Relation {
	if accession.Less(r.DstType, r.DstAccession, r.SrcType, r.SrcAccession) {
		return Relation{
			SrcType:      r.DstType,
			SrcAccession: r.DstAccession,
			DstType:      r.SrcType,
			DstAccession: r.SrcAccession,
		}
	}
	return r
}

// NewRelation builds a Relation from raw (type, accession) pairs and
// canonicalizes it in one step.
func NewRelation(srcType accession.Type, srcAcc string, dstType accession.Type, dstAcc string) Relation {
	return Relation{SrcType: srcType, SrcAccession: srcAcc, DstType: dstType, DstAccession: dstAcc}.Canonicalize()
}

func (r Relation) String() string {
	return fmt.Sprintf("%s:%s <-> %s:%s", r.SrcType, r.SrcAccession, r.DstType, r.DstAccession)
}
