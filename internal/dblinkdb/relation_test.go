package dblinkdb

import (
	"testing"

	"github.com/ddbj/dblinkd/internal/accession"
)

func TestCanonicalizeOrdersByTypeOrdinal(t *testing.T) {
	r := Relation{
		SrcType: accession.BioSample, SrcAccession: "SAMN0001",
		DstType: accession.BioProject, DstAccession: "PRJNA001",
	}
	got := r.Canonicalize()
	if got.SrcType != accession.BioProject || got.SrcAccession != "PRJNA001" {
		t.Errorf("expected bioproject first, got %+v", got)
	}
	if got.DstType != accession.BioSample || got.DstAccession != "SAMN0001" {
		t.Errorf("expected biosample second, got %+v", got)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	r := NewRelation(accession.BioSample, "SAMN0001", accession.BioProject, "PRJNA001")
	twice := r.Canonicalize()
	if r != twice {
		t.Errorf("canonicalize should be idempotent: %+v != %+v", r, twice)
	}
}

func TestCanonicalizeSymmetric(t *testing.T) {
	a := NewRelation(accession.BioProject, "PRJNA001", accession.BioSample, "SAMN0001")
	b := NewRelation(accession.BioSample, "SAMN0001", accession.BioProject, "PRJNA001")
	if a != b {
		t.Errorf("expected symmetric edges to canonicalize identically: %+v != %+v", a, b)
	}
}

func TestCanonicalizeSameTypeOrdersByAccession(t *testing.T) {
	r := Relation{
		SrcType: accession.BioProject, SrcAccession: "PRJNA002",
		DstType: accession.BioProject, DstAccession: "PRJNA001",
	}
	got := r.Canonicalize()
	if got.SrcAccession != "PRJNA001" || got.DstAccession != "PRJNA002" {
		t.Errorf("expected lexical ordering within same type, got %+v", got)
	}
}
