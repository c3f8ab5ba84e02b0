package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/accessionsdb"
	"github.com/ddbj/dblinkd/internal/blacklist"
	"github.com/ddbj/dblinkd/internal/datecache"
	"github.com/ddbj/dblinkd/internal/dblink"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/paths"
	"github.com/ddbj/dblinkd/internal/progress"
	"github.com/ddbj/dblinkd/internal/runlog"
)

// OpenDeps opens the three read-only handles every family's worker pool
// shares: the final DBLink store, the date cache (nil when withDateCache is
// false - SRA and JGA have no date-cache input per spec 4.7), and the four
// blacklist files. tracker may be nil, disabling --resume bookkeeping.
// Callers must close the returned handles.
func OpenDeps(p paths.Paths, logr *runlog.Coordinator, withDateCache bool, tracker *progress.Tracker) (Deps, func(), error) {
	dblinkDB, err := dblinkdb.Open(p.DBLinkStorePath())
	if err != nil {
		return Deps{}, nil, fmt.Errorf("emitter: open dblink store: %w", err)
	}

	var dc *datecache.DB
	if withDateCache {
		dc, err = datecache.Open(p.DateCacheStorePath())
		if err != nil {
			dblinkDB.Close()
			return Deps{}, nil, fmt.Errorf("emitter: open date cache: %w", err)
		}
	}

	bl, err := blacklist.LoadAll(p.ConstDir + "/blacklist")
	if err != nil {
		dblinkDB.Close()
		if dc != nil {
			dc.Close()
		}
		return Deps{}, nil, fmt.Errorf("emitter: load blacklists: %w", err)
	}

	deps := Deps{DBLink: dblinkDB, DateCache: dc, Blacklist: bl, Logger: logr, Progress: tracker}
	closeFn := func() {
		dblinkDB.Close()
		if dc != nil {
			dc.Close()
		}
	}
	return deps, closeFn, nil
}

// resolveCutoff returns no cutoff when full is set, and otherwise the
// family's EffectiveCutoff from lr widened by marginDays.
func resolveCutoff(lr *LastRun, family accession.Family, marginDays int, full bool) (time.Time, bool) {
	if full {
		return time.Time{}, false
	}
	return EffectiveCutoff(lr, family, marginDays)
}

// startTracking begins a tracker run for family/runDate when tracker is
// non-nil (--resume support); it is a no-op otherwise. The returned finish
// func records the run's outcome and must be deferred by the caller.
func startTracking(tracker *progress.Tracker, family, runDate string, resume bool) (finish func(*error), err error) {
	if tracker == nil {
		return func(*error) {}, nil
	}
	if err := tracker.StartRun(family, runDate, resume); err != nil {
		return nil, err
	}
	return func(errp *error) {
		if errp != nil && *errp != nil {
			tracker.FailRun((*errp).Error())
			return
		}
		tracker.CompleteRun()
	}, nil
}

// RunBioProject generates the BioProject JSONL shards for one run. On
// success it updates (but does not persist) lr's bioproject entry to
// runStart; the caller persists lr only after a downstream sink ingest
// also succeeds, per spec 4.7's last_run.json discipline. tracker may be
// nil; when set, resume controls whether a prior incomplete run for the
// same run date is continued (true) or discarded and restarted (false,
// the only valid choice when full is true).
func RunBioProject(ctx context.Context, p paths.Paths, logr *runlog.Coordinator, lr *LastRun, tracker *progress.Tracker, workers, marginDays int, full, resume bool, runStart time.Time) (shards, records int, err error) {
	deps, closeFn, err := OpenDeps(p, logr, true, tracker)
	if err != nil {
		return 0, 0, err
	}
	defer closeFn()

	if deps.DateCache.BuiltAt().Before(runStart.Add(-24 * time.Hour)) {
		return 0, 0, fmt.Errorf("emitter: date cache at %s is stale for this run", p.DateCacheStorePath())
	}

	finish, err := startTracking(tracker, "bioproject", runDateString(runStart), resume)
	if err != nil {
		return 0, 0, err
	}
	defer func() { finish(&err) }()

	cutoff, hasCutoff := resolveCutoff(lr, accession.FamilyBioProject, marginDays, full)
	shards, records, err = GenerateBioProjectJSONL(ctx, deps, workers, p.TmpXMLDir("bp"), p.ResultDir, runDateString(runStart), cutoff, hasCutoff)
	if err == nil {
		lr.Set(accession.FamilyBioProject, runStart)
	}
	return shards, records, err
}

// RunBioSample is RunBioProject's BioSample counterpart.
func RunBioSample(ctx context.Context, p paths.Paths, logr *runlog.Coordinator, lr *LastRun, tracker *progress.Tracker, workers, marginDays int, full, resume bool, runStart time.Time) (shards, records int, err error) {
	deps, closeFn, err := OpenDeps(p, logr, true, tracker)
	if err != nil {
		return 0, 0, err
	}
	defer closeFn()

	finish, err := startTracking(tracker, "biosample", runDateString(runStart), resume)
	if err != nil {
		return 0, 0, err
	}
	defer func() { finish(&err) }()

	cutoff, hasCutoff := resolveCutoff(lr, accession.FamilyBioSample, marginDays, full)
	shards, records, err = GenerateBioSampleJSONL(ctx, deps, workers, p.TmpXMLDir("bs"), p.ResultDir, runDateString(runStart), cutoff, hasCutoff)
	if err == nil {
		lr.Set(accession.FamilyBioSample, runStart)
	}
	return shards, records, err
}

// RunSRA runs both the sra and dra accessions stores through
// GenerateSRAJSONL and combines their record counts.
func RunSRA(ctx context.Context, p paths.Paths, logr *runlog.Coordinator, lr *LastRun, tracker *progress.Tracker, marginDays, sraBatchSize int, full, resume bool, runStart time.Time) (records int, err error) {
	deps, closeFn, err := OpenDeps(p, logr, false, tracker)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	finish, err := startTracking(tracker, "sra", runDateString(runStart), resume)
	if err != nil {
		return 0, err
	}
	defer func() { finish(&err) }()

	cutoff, hasCutoff := resolveCutoff(lr, accession.FamilySRA, marginDays, full)

	for _, source := range []accessionsdb.Source{accessionsdb.SourceNCBISRA, accessionsdb.SourceDDBJDRA} {
		db, dberr := accessionsdb.Open(p.AccessionsStorePath(string(source)))
		if dberr != nil {
			err = fmt.Errorf("emitter: open %s accessions store: %w", source, dberr)
			return records, err
		}
		n, generr := GenerateSRAJSONL(ctx, deps, db, string(source), p.ResultDir, runDateString(runStart), cutoff, hasCutoff, sraBatchSize)
		db.Close()
		if generr != nil {
			err = generr
			return records, err
		}
		records += n
	}
	lr.Set(accession.FamilySRA, runStart)
	return records, nil
}

// RunJGA runs the always-full JGA emitter.
func RunJGA(ctx context.Context, p paths.Paths, logr *runlog.Coordinator, tracker *progress.Tracker, resume bool, runStart time.Time) (records int, err error) {
	deps, closeFn, err := OpenDeps(p, logr, false, tracker)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	finish, err := startTracking(tracker, "jga", runDateString(runStart), resume)
	if err != nil {
		return 0, err
	}
	defer func() { finish(&err) }()

	csvPaths := dblink.JGARelationCSVPaths{
		DatasetAnalysis: p.JGARelationCSVPath("dataset-analysis"),
		AnalysisStudy:   p.JGARelationCSVPath("analysis-study"),
		DatasetData:     p.JGARelationCSVPath("dataset-data"),
		DataExperiment:  p.JGARelationCSVPath("data-experiment"),
		ExperimentStudy: p.JGARelationCSVPath("experiment-study"),
		DatasetPolicy:   p.JGARelationCSVPath("dataset-policy"),
		PolicyDAC:       p.JGARelationCSVPath("policy-dac"),
	}
	records, err = GenerateJGAJSONL(ctx, deps, p.JGAStudyXMLPath(), csvPaths, p.ResultDir, runDateString(runStart))
	return records, err
}

func runDateString(t time.Time) string { return t.UTC().Format("20060102") }
