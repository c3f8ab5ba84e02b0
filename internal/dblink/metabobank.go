package dblink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/ddbj/dblinkd/internal/workerpool"
)

// iterateMetaboBankDirs walks METABOBANK_BASE_PATH's single-level layout:
// MTBKS* directories sit directly under the base, unlike GEA's two-level
// prefix bucketing. Matches metabobank.py's iterate_metabobank_dirs.
func iterateMetaboBankDirs(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dblink: metabobank read base %s: %w", basePath, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "MTBKS") {
			dirs = append(dirs, filepath.Join(basePath, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// MetaboBank builds metabobank<->bioproject and metabobank<->biosample
// edges from each MTBKS* study's IDF/SDRF files. Unlike gea.go, the
// original applies neither accession validation nor a blacklist filter to
// these edges, so this mirrors that exactly.
func MetaboBank(
	ctx context.Context,
	logr *runlog.Coordinator,
	workers int,
	metaboBankBasePath string,
) ([]dblinkdb.Relation, error) {
	dirs, err := iterateMetaboBankDirs(metaboBankBasePath)
	if err != nil {
		return nil, fmt.Errorf("dblink: metabobank: %w", err)
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	mtbToBP := make(pairSet)
	mtbToBS := make(pairSet)

	results := workerpool.Run(ctx, workers, dirs, func(_ context.Context, job workerpool.Job[string]) (idfSDRFDirResult, error) {
		return processIDFSDRFDir(job.Value)
	})

	err = workerpool.Drain(results, func(r workerpool.Result[string, idfSDRFDirResult]) error {
		if r.Err != nil {
			if logr != nil {
				logr.ErrorLog("error processing MetaboBank directory", r.Err, runlog.WithFile(r.Job.Value))
			}
			return nil
		}
		mtbID := r.Out.studyID
		if r.Out.bioproject != "" {
			mtbToBP.add(mtbID, r.Out.bioproject)
		}
		for _, bs := range r.Out.biosamples {
			mtbToBS.add(mtbID, bs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dblink: metabobank: %w", err)
	}

	out := mtbToBP.relations(accession.MetaboBank, accession.BioProject)
	out = append(out, mtbToBS.relations(accession.MetaboBank, accession.BioSample)...)
	return out, nil
}
