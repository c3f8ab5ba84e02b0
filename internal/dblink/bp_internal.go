package dblink

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ddbj/dblinkd/internal/accession"
	"github.com/ddbj/dblinkd/internal/dblinkdb"
	"github.com/ddbj/dblinkd/internal/runlog"
	"github.com/ddbj/dblinkd/internal/workerpool"
)

// humIDVersionPattern strips a hum-id's version suffix (hum0001.v2 ->
// hum0001), mirroring bioproject.py's HUM_ID_VERSION_PATTERN.
var humIDVersionPattern = regexp.MustCompile(`^(hum\d+)\..*$`)

func normalizeHumID(raw string) string {
	if m := humIDVersionPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// bpInternalFileResult is one BioProject shard's extracted relations, all
// three kinds in a single parse pass: umbrella (child project -> parent
// umbrella project), hum-id, and geo. primaries is every accession this
// file declared as a Package's own ArchiveID, used afterward to decide
// whether an umbrella edge's child actually has a visible primary record
// anywhere in the shard set.
type bpInternalFileResult struct {
	umbrella  [][2]string // (childProjectID, parentMemberID)
	humID     [][2]string // (bioproject, hum-id)
	geo       [][2]string // (bioproject, geo-id)
	primaries []string
	skipped   []string
}

// extractBPInternalFile parses one ncbi_*.xml/ddbj_*.xml BioProject shard.
// Structure, grounded on bioproject.py's process_bioproject_xml_file:
//
//	<Package>
//	  <Project><ProjectID>
//	    <ArchiveID accession="PRJ..."/>
//	    <LocalID submission_id="hum0001.v2"/>
//	    <CenterID center="GEO">GSE12345</CenterID>
//	  </ProjectID></Project>
//	  <Link><Hierarchical type="TopAdmin"/><ProjectIDRef accession="..."/><MemberID accession="..."/></Link>
//	</Package>
func extractBPInternalFile(path string) (bpInternalFileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return bpInternalFileResult{}, fmt.Errorf("dblink: open %s: %w", path, err)
	}
	defer f.Close()

	var res bpInternalFileResult
	dec := xml.NewDecoder(f)

	var inProjectID bool
	var curAccession string
	var curHumIDs, curGeoIDs []string
	var centerIsGeo bool
	var chardata strings.Builder

	var inLink bool
	var linkType, linkProjectID, linkMemberID string

	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return bpInternalFileResult{}, fmt.Errorf("dblink: decode %s: %w", path, terr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			chardata.Reset()
			name := localName(t.Name.Local)
			switch name {
			case "Package":
				curAccession, curHumIDs, curGeoIDs = "", nil, nil
			case "ProjectID":
				inProjectID = true
			case "Link":
				inLink = true
				linkType, linkProjectID, linkMemberID = "", "", ""
			}

			if inProjectID {
				switch name {
				case "ArchiveID":
					if acc := attrVal(t.Attr, "accession"); strings.HasPrefix(acc, "PRJ") {
						curAccession = acc
					} else if acc != "" {
						res.skipped = append(res.skipped, acc)
					}
				case "LocalID":
					if sub := attrVal(t.Attr, "submission_id"); strings.HasPrefix(strings.ToLower(sub), "hum") {
						curHumIDs = append(curHumIDs, normalizeHumID(sub))
					}
				case "CenterID":
					centerIsGeo = attrVal(t.Attr, "center") == "GEO"
				}
			}

			if inLink {
				switch name {
				case "Hierarchical":
					linkType = attrVal(t.Attr, "type")
				case "ProjectIDRef":
					linkProjectID = attrVal(t.Attr, "accession")
				case "MemberID":
					linkMemberID = attrVal(t.Attr, "accession")
				}
			}

		case xml.CharData:
			chardata.Write(t)

		case xml.EndElement:
			name := localName(t.Name.Local)
			switch name {
			case "ProjectID":
				inProjectID = false

			case "CenterID":
				if centerIsGeo {
					if geo := strings.TrimSpace(chardata.String()); geo != "" {
						curGeoIDs = append(curGeoIDs, geo)
					}
				}
				centerIsGeo = false

			case "Package":
				if curAccession != "" {
					res.primaries = append(res.primaries, curAccession)
					for _, h := range curHumIDs {
						res.humID = append(res.humID, [2]string{curAccession, h})
					}
					for _, g := range curGeoIDs {
						res.geo = append(res.geo, [2]string{curAccession, g})
					}
				}
				curAccession, curHumIDs, curGeoIDs = "", nil, nil

			case "Link":
				if linkType == "TopAdmin" && linkProjectID != "" && linkMemberID != "" {
					res.umbrella = append(res.umbrella, [2]string{linkProjectID, linkMemberID})
				}
				inLink = false
			}
		}
	}
	return res, nil
}

// bpInternalParallel fans bpInternal file extraction across a worker pool
// and accumulates the three relation kinds plus the global primaries set.
func bpInternalParallel(
	ctx context.Context,
	logr *runlog.Coordinator,
	workers int,
	files []string,
	source string,
) (umbrella, humID, geo [][2]string, primaries map[string]struct{}, err error) {
	primaries = make(map[string]struct{})
	if len(files) == 0 {
		return nil, nil, nil, primaries, nil
	}

	results := workerpool.Run(ctx, workers, files, func(_ context.Context, job workerpool.Job[string]) (bpInternalFileResult, error) {
		return extractBPInternalFile(job.Value)
	})

	drainErr := workerpool.Drain(results, func(r workerpool.Result[string, bpInternalFileResult]) error {
		if r.Err != nil {
			if logr != nil {
				logr.ErrorLog("error processing bioproject shard", r.Err, runlog.WithFile(r.Job.Value))
			}
			return nil
		}
		umbrella = append(umbrella, r.Out.umbrella...)
		humID = append(humID, r.Out.humID...)
		geo = append(geo, r.Out.geo...)
		for _, p := range r.Out.primaries {
			primaries[p] = struct{}{}
		}
		for _, acc := range r.Out.skipped {
			logSkip(logr, acc, runlog.DebugCategoryInvalidBioProjectID, source, r.Job.Value)
		}
		return nil
	})
	return umbrella, humID, geo, primaries, drainErr
}

// BPInternal builds bioproject<->umbrella-bioproject and bioproject<->hum-id
// edges from the BioProject shards. Matches bioproject.py::main's single
// read of the shard set producing all three relation kinds, filtered
// against primaries gathered from the same read (the geo relation is parsed
// but not emitted: SPEC_FULL.md's DBLink edge table names only umbrella and
// hum-id for this extractor; geo<->bioproject has no accession.Type home in
// this graph's schema, so it is dropped here rather than invented).
func BPInternal(
	ctx context.Context,
	logr *runlog.Coordinator,
	workers int,
	bpShardDir string,
) ([]dblinkdb.Relation, error) {
	ncbiUmbrella, ncbiHumID, _, ncbiPrimaries, err := bpInternalParallel(ctx, logr, workers, globSorted(bpShardDir, "ncbi_"), "ncbi")
	if err != nil {
		return nil, fmt.Errorf("dblink: bp_internal ncbi: %w", err)
	}
	ddbjUmbrella, ddbjHumID, _, ddbjPrimaries, err := bpInternalParallel(ctx, logr, workers, globSorted(bpShardDir, "ddbj_"), "ddbj")
	if err != nil {
		return nil, fmt.Errorf("dblink: bp_internal ddbj: %w", err)
	}

	primaries := ncbiPrimaries
	for p := range ddbjPrimaries {
		primaries[p] = struct{}{}
	}

	// parent (linkMemberID) is the umbrella project; the classifier table
	// cannot distinguish umbrella shape from an ordinary bioproject (see
	// accession.Classify), so it is validated against accession.BioProject's
	// shape but stored under accession.UmbrellaBioProject, matching the
	// DBLink dump's declared (bioproject, umbrella-bioproject) orientation.
	umbrellaPairs := make(pairSet)
	for _, pair := range append(ncbiUmbrella, ddbjUmbrella...) {
		child, parent := pair[0], pair[1]
		childNorm, childOK := classifyAs(child, accession.BioProject)
		parentNorm, parentOK := classifyAs(parent, accession.BioProject)
		if !childOK || !parentOK {
			continue
		}
		if _, ok := primaries[childNorm]; !ok {
			logSkip(logr, childNorm, runlog.DebugCategoryPrivateUmbrellaParent, "bp", "")
			continue
		}
		umbrellaPairs.add(childNorm, parentNorm)
	}

	humIDPairs := make(pairSet)
	for _, pair := range append(ncbiHumID, ddbjHumID...) {
		bp, hum := pair[0], pair[1]
		bpNorm, bpOK := classifyAs(bp, accession.BioProject)
		humNorm, humOK := classifyAs(hum, accession.HumID)
		if !bpOK || !humOK {
			continue
		}
		humIDPairs.add(bpNorm, humNorm)
	}

	out := umbrellaPairs.relations(accession.BioProject, accession.UmbrellaBioProject)
	out = append(out, humIDPairs.relations(accession.BioProject, accession.HumID)...)
	return out, nil
}
