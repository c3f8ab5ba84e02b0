package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"
)

const ncbiMetadataBaseURL = "https://ftp.ncbi.nlm.nih.gov/sra/reports/Metadata/"

var (
	ncbiDailyPattern   = regexp.MustCompile(`NCBI_SRA_Metadata_(\d{8})\.tar\.gz`)
	ncbiMonthlyPattern = regexp.MustCompile(`NCBI_SRA_Metadata_Full_(\d{8})\.tar\.gz`)
	ncbiListingRow     = regexp.MustCompile(`href="([^"]+\.tar\.gz)"`)
)

// ncbiFile is a candidate archive found in the NCBI reports directory
// listing, generalized from the teacher's MetadataFile/FileType pair down
// to what selecting the newest archive actually needs.
type ncbiFile struct {
	name    string
	url     string
	date    time.Time
	monthly bool
}

// listNCBIFiles fetches and parses the NCBI metadata reports directory
// listing, grounded on the teacher's MetadataManager.parseDirectoryListing
// (same Apache-listing href scraping, collapsed to the fields SyncNCBITar
// needs: name, date, monthly-vs-daily).
func listNCBIFiles(ctx context.Context, client *http.Client) ([]ncbiFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ncbiMetadataBaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing request returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read listing body: %w", err)
	}

	var files []ncbiFile
	for _, m := range ncbiListingRow.FindAllStringSubmatch(string(body), -1) {
		name := m[1]
		if !strings.Contains(name, "NCBI_SRA_Metadata") {
			continue
		}
		var date time.Time
		monthly := false
		if dm := ncbiMonthlyPattern.FindStringSubmatch(name); dm != nil {
			monthly = true
			date, _ = time.Parse("20060102", dm[1])
		} else if dm := ncbiDailyPattern.FindStringSubmatch(name); dm != nil {
			date, _ = time.Parse("20060102", dm[1])
		} else {
			continue
		}
		files = append(files, ncbiFile{name: name, url: ncbiMetadataBaseURL + name, date: date, monthly: monthly})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.After(files[j].date) })
	return files, nil
}

// selectNCBIFile applies the teacher's AutoSelectFile strategy: a monthly
// archive from the current month wins outright, otherwise the most recent
// daily archive, falling back to the most recent monthly and finally to
// whatever sorted first.
func selectNCBIFile(files []ncbiFile, now time.Time) (ncbiFile, error) {
	if len(files) == 0 {
		return ncbiFile{}, fmt.Errorf("no NCBI metadata archives listed")
	}
	var latestMonthly, latestDaily *ncbiFile
	for i := range files {
		f := &files[i]
		if f.monthly {
			if latestMonthly == nil || f.date.After(latestMonthly.date) {
				latestMonthly = f
			}
			if f.date.Year() == now.Year() && f.date.Month() == now.Month() {
				return *f, nil
			}
		} else if latestDaily == nil || f.date.After(latestDaily.date) {
			latestDaily = f
		}
	}
	if latestDaily != nil {
		return *latestDaily, nil
	}
	if latestMonthly != nil {
		return *latestMonthly, nil
	}
	return files[0], nil
}

// SyncNCBITar fetches the newest NCBI SRA metadata archive and installs it
// at destPath (CONST_DIR/sra/NCBI_SRA.tar per spec), overwriting whatever
// was there before. The archive ships gzip-compressed; callers that need
// the offset index built with BuildIndex must pass an already-decompressed
// tar, so SyncNCBITar decompresses on the fly rather than leaving a .tar.gz
// at destPath.
func SyncNCBITar(ctx context.Context, destPath string) error {
	client := &http.Client{Timeout: 5 * time.Minute}
	files, err := listNCBIFiles(ctx, client)
	if err != nil {
		return fmt.Errorf("download: list NCBI archives: %w", err)
	}
	chosen, err := selectNCBIFile(files, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("download: select NCBI archive: %w", err)
	}

	f := NewFetcher()
	f.Client = client
	gzPath := destPath + ".gz"
	if _, err := f.FetchFile(ctx, chosen.url, gzPath); err != nil {
		return fmt.Errorf("download: fetch %s: %w", chosen.name, err)
	}
	defer removeQuiet(gzPath)

	if err := gunzipToFile(gzPath, destPath); err != nil {
		return fmt.Errorf("download: decompress %s: %w", chosen.name, err)
	}
	return nil
}
