package dblink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// stripVersionSuffix removes an assembly accession's version suffix
// (GCA_000001.1 -> GCA_000001), mirroring assembly_and_master.py's
// strip_version_suffix.
func stripVersionSuffix(raw string) string {
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

// normalizeMasterID collapses every insdc-master accession in a WGS/TSA/TLS
// series to one representative ID: strip the version suffix, strip a
// trailing "-N" contig-range suffix, then zero every digit so
// ABCD01000001.1 and ABCD01000999-5 both normalize to ABCD00000000.
// Mirrors assembly_and_master.py's normalize_master_id.
func normalizeMasterID(raw string) string {
	base := stripVersionSuffix(raw)
	if idx := strings.IndexByte(base, '-'); idx >= 0 {
		base = base[:idx]
	}
	var b strings.Builder
	b.Grow(len(base))
	for _, ch := range base {
		if ch >= '0' && ch <= '9' {
			b.WriteByte('0')
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// assemblySummaryRelations accumulates the six pair sets one pass over
// assembly_summary_genbank.txt produces.
type assemblySummaryRelations struct {
	assemblyToBP     pairSet
	assemblyToBS     pairSet
	assemblyToMaster pairSet
	masterToBP       pairSet
	masterToBS       pairSet
	bsToBP           pairSet
}

func newAssemblySummaryRelations() *assemblySummaryRelations {
	return &assemblySummaryRelations{
		assemblyToBP:     make(pairSet),
		assemblyToBS:     make(pairSet),
		assemblyToMaster: make(pairSet),
		masterToBP:       make(pairSet),
		masterToBS:       make(pairSet),
		bsToBP:           make(pairSet),
	}
}

// parseAssemblySummary streams assembly_summary_genbank.txt: cols
// [0]=assembly [1]=bioproject [2]=biosample [3]=wgs_master, "na" means
// absent. Matches process_assembly_summary_file's column layout and its
// bs_to_bp SAM*/PRJ* sanity check.
func parseAssemblySummary(r io.Reader, out *assemblySummaryRelations, logr *runlog.Coordinator) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
		if len(cols) < 4 {
			continue
		}

		asm := stripVersionSuffix(cols[0])
		bp := cols[1]
		bs := cols[2]
		master := normalizeMasterID(cols[3])

		add := func(set pairSet, left, right string) {
			if left == "na" || right == "na" || left == "" || right == "" {
				return
			}
			set.add(left, right)
		}

		add(out.assemblyToBP, asm, bp)
		add(out.assemblyToBS, asm, bs)
		add(out.assemblyToMaster, asm, master)
		add(out.masterToBP, master, bp)
		add(out.masterToBS, master, bs)

		if bs != "na" && bp != "na" && bs != "" && bp != "" {
			if !strings.HasPrefix(bs, "SAM") {
				logSkip(logr, bs, runlog.DebugCategoryInvalidBioSampleID, "assembly_summary", "assembly_summary_genbank.txt")
			} else if !strings.HasPrefix(bp, "PRJ") {
				logSkip(logr, bp, runlog.DebugCategoryInvalidBioProjectID, "assembly_summary", "assembly_summary_genbank.txt")
			} else {
				out.bsToBP.add(bs, bp)
			}
		}
	}
	return scanner.Err()
}

// parseTRADFile reads one TRAD organism list file: cols [3]=master,
// [9]=bioproject, [10]=biosample; lines beginning with space/tab/hyphen are
// continuation lines and skipped. Matches process_trad_files.
func parseTRADFile(r io.Reader, masterToBP, masterToBS pairSet) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "-") {
			continue
		}
		cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
		if len(cols) < 11 {
			continue
		}
		master := normalizeMasterID(cols[3])
		bp := cols[9]
		bs := cols[10]
		if bp != "" {
			masterToBP.add(master, bp)
		}
		if bs != "" {
			masterToBS.add(master, bs)
		}
	}
	return scanner.Err()
}

// defaultTRADFiles is the fixed six-file TRAD organism-list set named by
// assembly_and_master.py's TRAD_FILES; relative to a caller-supplied base
// directory mirroring TRAD_BASE_PATH.
func defaultTRADFiles(base string) []string {
	return []string{
		base + "/wgs/WGS_ORGANISM_LIST.txt",
		base + "/tls/TLS_ORGANISM_LIST.txt",
		base + "/tsa/TSA_ORGANISM_LIST.txt",
		base + "/tpa/wgs/TPA_WGS_ORGANISM_LIST.txt",
		base + "/tpa/tsa/TPA_TSA_ORGANISM_LIST.txt",
		base + "/tpa/tls/TPA_TLS_ORGANISM_LIST.txt",
	}
}

// filterPair reports whether a (left, right) pair survives the blacklist,
// checking only the named side ("left" or "right"); any other value keeps
// the pair without a check.
func filterPair(bl blacklist.BySource, side blacklist.Source, which string, left, right string) bool {
	switch which {
	case "left":
		return !bl.Contains(side, left)
	case "right":
		return !bl.Contains(side, right)
	default:
		return true
	}
}

// AssemblyMaster builds the insdc-assembly/insdc-master/bioproject/biosample
// edges: one streamed GET of assembly_summary_genbank.txt plus the six TRAD
// organism-list files, grounded on assembly_and_master.py::main's six
// target relations and blacklist filters.
func AssemblyMaster(
	ctx context.Context,
	logr *runlog.Coordinator,
	httpClient *http.Client,
	assemblySummaryURL string,
	tradFiles []string,
	bl blacklist.BySource,
) ([]dblinkdb.Relation, error) {
	rel := newAssemblySummaryRelations()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assemblySummaryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dblink: assembly_master request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dblink: assembly_master fetch %s: %w", assemblySummaryURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dblink: assembly_master fetch %s: status %d", assemblySummaryURL, resp.StatusCode)
	}
	if err := parseAssemblySummary(resp.Body, rel, logr); err != nil {
		return nil, fmt.Errorf("dblink: assembly_master parse summary: %w", err)
	}

	for _, path := range tradFiles {
		f, err := os.Open(path)
		if err != nil {
			if logr != nil {
				logr.Warning("skipping unavailable trad file: "+path, runlog.WithFile(path))
			}
			continue
		}
		err = parseTRADFile(f, rel.masterToBP, rel.masterToBS)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("dblink: assembly_master parse trad %s: %w", path, err)
		}
	}

	var out []dblinkdb.Relation
	out = append(out, filterAndBuild(rel.assemblyToBP, bl, blacklist.SourceBioProject, "right", accession.INSDCAssembly, accession.BioProject)...)
	out = append(out, filterAndBuild(rel.assemblyToBS, bl, blacklist.SourceBioSample, "right", accession.INSDCAssembly, accession.BioSample)...)
	out = append(out, filterAndBuild(rel.assemblyToMaster, bl, "", "", accession.INSDCAssembly, accession.INSDCMaster)...)
	out = append(out, filterAndBuild(rel.masterToBP, bl, blacklist.SourceBioProject, "right", accession.INSDCMaster, accession.BioProject)...)
	out = append(out, filterAndBuild(rel.masterToBS, bl, blacklist.SourceBioSample, "right", accession.INSDCMaster, accession.BioSample)...)
	out = append(out, filterAndBuildBoth(rel.bsToBP, bl, accession.BioSample, accession.BioProject)...)
	return out, nil
}

func filterAndBuild(set pairSet, bl blacklist.BySource, side blacklist.Source, which string, srcType, dstType accession.Type) []dblinkdb.Relation {
	out := make([]dblinkdb.Relation, 0, len(set))
	for pair := range set {
		if which != "" && !filterPair(bl, side, which, pair[0], pair[1]) {
			continue
		}
		out = append(out, dblinkdb.NewRelation(srcType, pair[0], dstType, pair[1]))
	}
	return out
}

// filterAndBuildBoth applies both the biosample and bioproject blacklists,
// matching assembly_and_master.py's filter_by_blacklist (bs_to_bp is the
// only relation checked on both sides at once).
func filterAndBuildBoth(set pairSet, bl blacklist.BySource, srcType, dstType accession.Type) []dblinkdb.Relation {
	out := make([]dblinkdb.Relation, 0, len(set))
	for pair := range set {
		bs, bp := pair[0], pair[1]
		if bl.Contains(blacklist.SourceBioSample, bs) || bl.Contains(blacklist.SourceBioProject, bp) {
			continue
		}
		out = append(out, dblinkdb.NewRelation(srcType, bs, dstType, bp))
	}
	return out
}
