// Package paths centralizes the persisted-state layout under RESULT_DIR and
// CONST_DIR, mirroring the env-var-first, XDG-fallback resolution style used
// throughout dblinkd.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the two root directories the pipeline reads and writes.
type Paths struct {
	ResultDir string // RESULT_DIR: run outputs (logs, shards, jsonl, last_run.json)
	ConstDir  string // CONST_DIR: blacklists, preserved TSVs, accessions/dblink stores
}

// GetPaths returns the root directories, honoring RESULT_DIR/CONST_DIR, with
// XDG-style fallbacks for local development outside the production host.
func GetPaths() Paths {
	return Paths{
		ResultDir: getDir("RESULT_DIR", "XDG_DATA_HOME", ".local/share", "dblinkd/result"),
		ConstDir:  getDir("CONST_DIR", "XDG_DATA_HOME", ".local/share", "dblinkd/const"),
	}
}

func getDir(primaryEnv, xdgEnv, defaultBase, appName string) string {
	if dir := os.Getenv(primaryEnv); dir != "" {
		return dir
	}
	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// --- RESULT_DIR layout ---

func (p Paths) LogsDir() string { return filepath.Join(p.ResultDir, "logs") }
func (p Paths) LogPath(runID string) string {
	return filepath.Join(p.LogsDir(), runID+".log.jsonl")
}
func (p Paths) LogDuckDBPath() string { return filepath.Join(p.ResultDir, "log.duckdb") }

func (p Paths) TmpXMLDir(family string) string {
	return filepath.Join(p.ResultDir, "tmp_xml", family)
}

func (p Paths) JSONLDir(yyyymmdd string) string {
	return filepath.Join(p.ResultDir, "jsonl", yyyymmdd)
}

func (p Paths) RegenerateDir(yyyymmdd string) string {
	return filepath.Join(p.ResultDir, "regenerate", yyyymmdd)
}

func (p Paths) LastRunPath() string { return filepath.Join(p.ResultDir, "last_run.json") }

func (p Paths) ResumeStatePath(step string) string {
	return filepath.Join(p.ResultDir, "resume", step+".json")
}

// --- CONST_DIR layout ---

func (p Paths) SRADir() string { return filepath.Join(p.ConstDir, "sra") }

func (p Paths) AccessionsStorePath(source string) string {
	return filepath.Join(p.SRADir(), source+"_accessions.duckdb")
}

func (p Paths) NCBISRATarPath() string { return filepath.Join(p.SRADir(), "NCBI_SRA.tar") }
func (p Paths) DRATarPath() string     { return filepath.Join(p.SRADir(), "DRA.tar") }

func (p Paths) DBLinkDir() string       { return filepath.Join(p.ConstDir, "dblink") }
func (p Paths) DBLinkStorePath() string { return filepath.Join(p.DBLinkDir(), "dblink.duckdb") }
func (p Paths) DBLinkTmpPath() string   { return p.DBLinkStorePath() + ".tmp" }

func (p Paths) DateCacheStorePath() string { return filepath.Join(p.ConstDir, "bp_bs_date.duckdb") }
func (p Paths) DateCacheTmpPath() string   { return p.DateCacheStorePath() + ".tmp" }

func (p Paths) BlacklistPath(family string) string {
	return filepath.Join(p.ConstDir, "blacklist", family+".txt")
}

func (p Paths) PreservedPath(name string) string {
	return filepath.Join(p.ConstDir, "preserved", name+".tsv")
}

// GEABaseDir is GEA_BASE_PATH: the two-level E-GEAD-*/E-GEAD-* IDF/SDRF tree.
func (p Paths) GEABaseDir() string { return filepath.Join(p.ConstDir, "gea") }

// MetaboBankBaseDir is METABOBANK_BASE_PATH: the single-level MTBKS* tree.
func (p Paths) MetaboBankBaseDir() string { return filepath.Join(p.ConstDir, "metabobank") }

// JGABaseDir holds jga-study.xml and the seven relation CSVs.
func (p Paths) JGABaseDir() string { return filepath.Join(p.ConstDir, "jga") }

func (p Paths) JGAStudyXMLPath() string {
	return filepath.Join(p.JGABaseDir(), "jga-study.xml")
}

func (p Paths) JGARelationCSVPath(name string) string {
	return filepath.Join(p.JGABaseDir(), name+"-relation.csv")
}

// TRADBaseDir is TRAD_BASE_PATH: the WGS/TLS/TSA organism list tree shared
// read-only from the sequence archive's own mount, not written by dblinkd.
func (p Paths) TRADBaseDir() string { return filepath.Join(p.ConstDir, "trad") }

// EnsureDirectories creates the directories the pipeline writes into.
func EnsureDirectories(p Paths) error {
	dirs := []string{
		p.LogsDir(),
		p.TmpXMLDir("bp"),
		p.TmpXMLDir("bs"),
		filepath.Join(p.ResultDir, "jsonl"),
		filepath.Join(p.ResultDir, "regenerate"),
		filepath.Join(p.ResultDir, "resume"),
		p.SRADir(),
		p.DBLinkDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
