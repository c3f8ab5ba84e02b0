// Package accession implements the ID classifier and AccessionType taxonomy:
// the foundation every other dblinkd component builds on. The matcher is
// table-driven (an ordered list of (regex, type) pairs, with a per-type
// normalizer applied to the winning match),
// generalizing the per-element switch style of the teacher's XML parser
// into a single closed-set dispatch table, per id_patterns.py.
package accession

import (
	"fmt"
	"strings"
)

// Type is one of the 21 closed-set accession kinds.
type Type uint8

const (
	Unknown Type = iota
	BioProject
	UmbrellaBioProject
	BioSample
	SRASubmission
	SRAStudy
	SRAExperiment
	SRARun
	SRASample
	SRAAnalysis
	JGAStudy
	JGADataset
	JGADAC
	JGAPolicy
	GEA
	MetaboBank
	INSDCAssembly
	INSDCMaster
	HumID
	PubMedID
	Geo
	Taxonomy

	typeCount
)

// Ordinal returns the type's position in the fixed total order used to
// canonicalize relation edges: (AccessionType ordinal, accession lexical).
func (t Type) Ordinal() int { return int(t) }

// String names the type the way it appears in file paths, index names, and
// log debug_category suffixes.
func (t Type) String() string {
	switch t {
	case BioProject:
		return "bioproject"
	case UmbrellaBioProject:
		return "umbrella-bioproject"
	case BioSample:
		return "biosample"
	case SRASubmission:
		return "sra-submission"
	case SRAStudy:
		return "sra-study"
	case SRAExperiment:
		return "sra-experiment"
	case SRARun:
		return "sra-run"
	case SRASample:
		return "sra-sample"
	case SRAAnalysis:
		return "sra-analysis"
	case JGAStudy:
		return "jga-study"
	case JGADataset:
		return "jga-dataset"
	case JGADAC:
		return "jga-dac"
	case JGAPolicy:
		return "jga-policy"
	case GEA:
		return "gea"
	case MetaboBank:
		return "metabobank"
	case INSDCAssembly:
		return "insdc-assembly"
	case INSDCMaster:
		return "insdc-master"
	case HumID:
		return "hum-id"
	case PubMedID:
		return "pubmed-id"
	case Geo:
		return "geo"
	case Taxonomy:
		return "taxonomy"
	default:
		return "unknown"
	}
}

// OrdinalSQLCase returns a SQL CASE expression mapping column's stored type
// name (Type.String()) to its Ordinal(), for callers that need Less's
// ordinal-ascending order inside a query instead of Go's lexical TEXT
// collation, e.g. dblinkdb.Finalize's canonicalization UPDATE.
func OrdinalSQLCase(column string) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for t := Type(1); t < typeCount; t++ {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", t.String(), t.Ordinal())
	}
	b.WriteString(" ELSE -1 END")
	return b.String()
}

// ParseType reverses String, for reading types back out of TSV/config.
func ParseType(s string) (Type, bool) {
	for t := Type(1); t < typeCount; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return Unknown, false
}

// Family groups accession types into the four incremental-mode bookkeeping
// units last_run.json tracks.
type Family string

const (
	FamilyBioProject Family = "bioproject"
	FamilyBioSample  Family = "biosample"
	FamilySRA        Family = "sra"
	FamilyJGA        Family = "jga"
)

// FamilyOf returns the incremental-bookkeeping family a type belongs to, or
// "" if the type has no family (GEA, MetaboBank, assembly/master, etc. are
// emitted but not independently incremental-tracked by last_run.json).
func FamilyOf(t Type) Family {
	switch t {
	case BioProject, UmbrellaBioProject:
		return FamilyBioProject
	case BioSample:
		return FamilyBioSample
	case SRASubmission, SRAStudy, SRAExperiment, SRARun, SRASample, SRAAnalysis:
		return FamilySRA
	case JGAStudy, JGADataset, JGADAC, JGAPolicy:
		return FamilyJGA
	default:
		return ""
	}
}
