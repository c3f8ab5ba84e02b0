package dblink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// parseIDFFile reads an IDF file (one file per GEA/MetaboBank study) and
// returns the BioProject ID named on its "Comment[BioProject]\t<id>" line,
// or "" if absent. Matches idf_sdrf.py's parse_idf_file.
func parseIDFFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("dblink: open idf %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Comment[BioProject]") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) >= 2 && parts[1] != "" {
			return strings.TrimSpace(parts[1]), nil
		}
	}
	return "", scanner.Err()
}

// parseSDRFFile reads an SDRF file's header to locate the
// "Comment[BioSample]" column, then collects every non-empty value in that
// column across the remaining rows. Matches idf_sdrf.py's parse_sdrf_file.
func parseSDRFFile(path string) (map[string]struct{}, error) {
	result := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dblink: open sdrf %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return result, scanner.Err()
	}
	header := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
	bsIndex := -1
	for i, col := range header {
		if col == "Comment[BioSample]" {
			bsIndex = i
			break
		}
	}
	if bsIndex < 0 {
		return result, nil
	}

	for scanner.Scan() {
		cols := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if bsIndex < len(cols) && cols[bsIndex] != "" {
			result[strings.TrimSpace(cols[bsIndex])] = struct{}{}
		}
	}
	return result, scanner.Err()
}

// idfSDRFDirResult is one GEA/MetaboBank study directory's extracted IDs.
type idfSDRFDirResult struct {
	studyID    string
	bioproject string
	biosamples []string
}

// processIDFSDRFDir finds the single *.idf.txt and *.sdrf.txt file in dir
// (there is exactly one of each per study) and parses both, naming the
// study by dir's own base name. Matches gea.py/metabobank.py's per-directory
// processing (process_idf_sdrf_dir / process_metabobank_dir), unified here
// since both reduce to the same two-glob-then-parse shape.
func processIDFSDRFDir(dir string) (idfSDRFDirResult, error) {
	res := idfSDRFDirResult{studyID: filepath.Base(dir)}

	idfMatches, _ := filepath.Glob(filepath.Join(dir, "*.idf.txt"))
	if len(idfMatches) > 0 {
		sort.Strings(idfMatches)
		bp, err := parseIDFFile(idfMatches[0])
		if err != nil {
			return idfSDRFDirResult{}, err
		}
		res.bioproject = bp
	}

	sdrfMatches, _ := filepath.Glob(filepath.Join(dir, "*.sdrf.txt"))
	if len(sdrfMatches) > 0 {
		sort.Strings(sdrfMatches)
		bsSet, err := parseSDRFFile(sdrfMatches[0])
		if err != nil {
			return idfSDRFDirResult{}, err
		}
		for bs := range bsSet {
			res.biosamples = append(res.biosamples, bs)
		}
	}

	return res, nil
}
