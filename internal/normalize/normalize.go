// Package normalize implements the JSONL emitter's field normalizers,
// generalizing the teacher's extractor_utils.go organism table and
// platform_handler.go platform switch from a fixed parser.Platform struct
// to plain strings pulled out of arbitrary shard XML.
package normalize

import (
	"strings"
)

// organismAliases mirrors extractor_utils.go's normalizeOrganism table.
var organismAliases = map[string]string{
	"homo sapiens":             "Homo sapiens",
	"human":                    "Homo sapiens",
	"mouse":                    "Mus musculus",
	"mus musculus":             "Mus musculus",
	"rat":                      "Rattus norvegicus",
	"rattus norvegicus":        "Rattus norvegicus",
	"e. coli":                  "Escherichia coli",
	"e.coli":                   "Escherichia coli",
	"escherichia coli":         "Escherichia coli",
	"yeast":                    "Saccharomyces cerevisiae",
	"saccharomyces cerevisiae": "Saccharomyces cerevisiae",
	"fruit fly":                "Drosophila melanogaster",
	"drosophila":               "Drosophila melanogaster",
	"drosophila melanogaster":  "Drosophila melanogaster",
	"zebrafish":                "Danio rerio",
	"danio rerio":              "Danio rerio",
	"c. elegans":               "Caenorhabditis elegans",
	"c.elegans":                "Caenorhabditis elegans",
	"caenorhabditis elegans":   "Caenorhabditis elegans",
}

// Organism maps a raw organism string to its canonical scientific name. On
// no match it falls back to genus-capitalized, species-lowercased, the same
// fallback the teacher's normalizeOrganism applies.
func Organism(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if canon, ok := organismAliases[strings.ToLower(trimmed)]; ok {
		return canon, true
	}
	parts := strings.Fields(trimmed)
	if len(parts) == 0 {
		return raw, false
	}
	parts[0] = capitalize(strings.ToLower(parts[0]))
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToLower(parts[i])
	}
	return strings.Join(parts, " "), true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// platformAliases closes over the ILLUMINA|PACBIO_SMRT|ION_TORRENT|
// OXFORD_NANOPORE|CAPILLARY|LS454|HELICOS|ABI_SOLID|COMPLETE_GENOMICS set
// extractor_utils.go's extractPlatformName already enumerates, generalized
// here from a typed Platform union to free-text XML element names.
var platformAliases = map[string]string{
	"illumina":           "ILLUMINA",
	"ls454":              "LS454",
	"454":                "LS454",
	"ion_torrent":        "ION_TORRENT",
	"iontorrent":         "ION_TORRENT",
	"pacbio_smrt":        "PACBIO_SMRT",
	"pacbio":             "PACBIO_SMRT",
	"oxford_nanopore":    "OXFORD_NANOPORE",
	"nanopore":           "OXFORD_NANOPORE",
	"capillary":          "CAPILLARY",
	"helicos":            "HELICOS",
	"abi_solid":          "ABI_SOLID",
	"solid":              "ABI_SOLID",
	"complete_genomics":  "COMPLETE_GENOMICS",
	"bgiseq":             "BGISEQ",
}

// Platform canonicalizes a raw platform element name to the closed set, or
// reports false (callers fall back to the raw value with a DEBUG log).
func Platform(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	canon, ok := platformAliases[key]
	return canon, ok
}

// collapseWhitespace trims and collapses runs of whitespace to a single
// space, the shared shape of the organization/grant-agency/owner-name
// normalizers.
func collapseWhitespace(raw string) string {
	fields := strings.Fields(raw)
	return strings.Join(fields, " ")
}

// OrganizationName normalizes a submitter/center organization name: trim
// and collapse whitespace. Empty input normalizes to empty, false.
func OrganizationName(raw string) (string, bool) {
	out := collapseWhitespace(raw)
	return out, out != ""
}

// GrantAgency normalizes a funding agency name the same way as
// OrganizationName; kept distinct because the two fields may diverge in
// normalization rules as the source data evolves.
func GrantAgency(raw string) (string, bool) {
	out := collapseWhitespace(raw)
	return out, out != ""
}

// OwnerName normalizes a BioSample/BioProject owner/contact name.
func OwnerName(raw string) (string, bool) {
	out := collapseWhitespace(raw)
	return out, out != ""
}

// LocusTagPrefix uppercases a locus-tag prefix, the INSDC convention for
// this field.
func LocusTagPrefix(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return strings.ToUpper(trimmed), true
}

// BioSampleSetID normalizes a biosample-set identifier by trimming
// surrounding whitespace; the identifier's casing is significant and left
// untouched.
func BioSampleSetID(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	return trimmed, trimmed != ""
}

// LocalID normalizes a submitter-local identifier: trim whitespace only,
// since local IDs are free-text and case-significant.
func LocalID(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	return trimmed, trimmed != ""
}
