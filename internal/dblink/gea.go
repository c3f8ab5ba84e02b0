package dblink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/ddbj/dblinkd/internal/workerpool"
)

// iterateGEADirs walks GEA_BASE_PATH's two-level layout:
// {E-GEAD-NNN-prefix}/{E-GEAD-NNN}/, one study directory per leaf. Matches
// gea.py's iterate_gea_dirs.
func iterateGEADirs(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dblink: gea read base %s: %w", basePath, err)
	}

	var prefixDirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "E-GEAD-") {
			prefixDirs = append(prefixDirs, e.Name())
		}
	}
	sort.Strings(prefixDirs)

	var dirs []string
	for _, prefix := range prefixDirs {
		prefixPath := filepath.Join(basePath, prefix)
		leaves, err := os.ReadDir(prefixPath)
		if err != nil {
			return nil, fmt.Errorf("dblink: gea read prefix %s: %w", prefixPath, err)
		}
		var names []string
		for _, l := range leaves {
			if l.IsDir() && strings.HasPrefix(l.Name(), "E-GEAD-") {
				names = append(names, l.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			dirs = append(dirs, filepath.Join(prefixPath, name))
		}
	}
	return dirs, nil
}

// GEA builds gea<->bioproject and gea<->biosample edges from the IDF/SDRF
// files under every E-GEAD study directory, accession-validated and
// blacklist-filtered on the bioproject/biosample side. Matches gea.py::main.
func GEA(
	ctx context.Context,
	logr *runlog.Coordinator,
	workers int,
	geaBasePath string,
	bl blacklist.BySource,
) ([]dblinkdb.Relation, error) {
	dirs, err := iterateGEADirs(geaBasePath)
	if err != nil {
		return nil, fmt.Errorf("dblink: gea: %w", err)
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	geaToBP := make(pairSet)
	geaToBS := make(pairSet)

	results := workerpool.Run(ctx, workers, dirs, func(_ context.Context, job workerpool.Job[string]) (idfSDRFDirResult, error) {
		return processIDFSDRFDir(job.Value)
	})

	err = workerpool.Drain(results, func(r workerpool.Result[string, idfSDRFDirResult]) error {
		if r.Err != nil {
			if logr != nil {
				logr.ErrorLog("error processing GEA directory", r.Err, runlog.WithFile(r.Job.Value))
			}
			return nil
		}

		geaID := r.Out.studyID
		if r.Out.bioproject != "" {
			if norm, ok := classifyAs(r.Out.bioproject, accession.BioProject); ok {
				geaToBP.add(geaID, norm)
			} else {
				logSkip(logr, r.Out.bioproject, runlog.DebugCategoryInvalidAccessionID, "gea", r.Job.Value)
			}
		}
		for _, bs := range r.Out.biosamples {
			if norm, ok := classifyAs(bs, accession.BioSample); ok {
				geaToBS.add(geaID, norm)
			} else {
				logSkip(logr, bs, runlog.DebugCategoryInvalidAccessionID, "gea", r.Job.Value)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dblink: gea: %w", err)
	}

	var out []dblinkdb.Relation
	for pair := range geaToBP {
		if bl.Contains(blacklist.SourceBioProject, pair[1]) {
			continue
		}
		out = append(out, dblinkdb.NewRelation(accession.GEA, pair[0], accession.BioProject, pair[1]))
	}
	for pair := range geaToBS {
		if bl.Contains(blacklist.SourceBioSample, pair[1]) {
			continue
		}
		out = append(out, dblinkdb.NewRelation(accession.GEA, pair[0], accession.BioSample, pair[1]))
	}
	return out, nil
}
