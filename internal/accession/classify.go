package accession

import (
	"regexp"
	"strings"
)

// InvalidReason distinguishes the handful of debug categories callers log
// when classification fails. Everything outside the two named categories
// shares the generic one.
type InvalidReason string

const (
	InvalidBioSampleID  InvalidReason = "INVALID_BIOSAMPLE_ID"
	InvalidBioProjectID InvalidReason = "INVALID_BIOPROJECT_ID"
	InvalidAccessionID  InvalidReason = "INVALID_ACCESSION_ID"
)

// rule is one entry of the ordered (regex, type) matcher table; the
// per-type normalization step is applied by normalize after a match.
// Order matters: entries are tried top to bottom and the first match wins,
// which is what lets pubmed-id/taxonomy (both bare numerics) and
// bioproject/umbrella-bioproject (identical shape) share patterns without
// the table itself resolving the ambiguity — callers that need to
// distinguish umbrella membership do so via the DBLink graph, not the
// classifier.
type rule struct {
	typ     Type
	pattern *regexp.Regexp
}

var rules = []rule{
	{BioSample, regexp.MustCompile(`^SAM[NED]\w?\d+$`)},
	{BioProject, regexp.MustCompile(`^PRJ[DEN][A-Z]\d+$`)},
	{SRASubmission, regexp.MustCompile(`^[SDE]RA\d+$`)},
	{SRAStudy, regexp.MustCompile(`^[SDE]RP\d+$`)},
	{SRAExperiment, regexp.MustCompile(`^[SDE]RX\d+$`)},
	{SRARun, regexp.MustCompile(`^[SDE]RR\d+$`)},
	{SRASample, regexp.MustCompile(`^[SDE]RS\d+$`)},
	{SRAAnalysis, regexp.MustCompile(`^[SDE]RZ\d+$`)},
	{JGAStudy, regexp.MustCompile(`^JGAS\d+$`)},
	{JGADataset, regexp.MustCompile(`^JGAD\d+$`)},
	{JGADAC, regexp.MustCompile(`^JGAC\d+$`)},
	{JGAPolicy, regexp.MustCompile(`^JGAP\d+$`)},
	{GEA, regexp.MustCompile(`^E-GEAD-\d+$`)},
	{MetaboBank, regexp.MustCompile(`^MTBKS\d+$`)},
	{INSDCAssembly, regexp.MustCompile(`^GCA_[0-9]{9}(\.[0-9]+)?$`)},
	{INSDCMaster, regexp.MustCompile(`^([A-Z]0{5}|[A-Z]{2}0{6}|[A-Z]{4,6}0{8,10}|[A-J][A-Z]{2}0{5})(\.\d+)?$`)},
	{HumID, regexp.MustCompile(`^hum\d+$`)},
	{Geo, regexp.MustCompile(`^GSE\d+$`)},
	// bare numerics: pubmed-id (7-8 digits) is listed before taxonomy
	// (<=7 digits), so a 7-digit numeric classifies as pubmed-id.
	{PubMedID, regexp.MustCompile(`^\d{7,8}$`)},
	{Taxonomy, regexp.MustCompile(`^\d{1,7}$`)},
}

// Classify assigns a raw string one of the 21 AccessionTypes, or reports it
// invalid. Normalization trims whitespace, strips version suffixes only for
// insdc-master (ABCD00000000.1 -> ABCD00000000) and preserves them for
// insdc-assembly (GCA versions are meaningful). Classification never fails
// the pipeline: callers decide whether to skip (DEBUG) or warn.
func Classify(raw string) (Type, string, InvalidReason, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unknown, "", InvalidAccessionID, false
	}

	for _, r := range rules {
		if r.pattern.MatchString(trimmed) {
			return r.typ, normalize(r.typ, trimmed), "", true
		}
	}

	reason := InvalidAccessionID
	if strings.HasPrefix(trimmed, "SAM") {
		reason = InvalidBioSampleID
	} else if strings.HasPrefix(trimmed, "PRJ") {
		reason = InvalidBioProjectID
	}
	return Unknown, "", reason, false
}

// IsValid reports whether raw matches the shape expected for an already-known
// type, e.g. when validating a preserved-TSV side against its file-implied
// type.
func IsValid(raw string, t Type) bool {
	for _, r := range rules {
		if r.typ == t {
			return r.pattern.MatchString(strings.TrimSpace(raw))
		}
	}
	return false
}

func normalize(t Type, s string) string {
	if t == INSDCMaster {
		if idx := strings.IndexByte(s, '.'); idx >= 0 {
			return s[:idx]
		}
	}
	return s
}

// Less implements the fixed total order used for edge canonicalization:
// AccessionType ordinal ascending, then accession lexicographic.
func Less(aType Type, aAcc string, bType Type, bAcc string) bool {
	if aType != bType {
		return aType.Ordinal() < bType.Ordinal()
	}
	return aAcc < bAcc
}

