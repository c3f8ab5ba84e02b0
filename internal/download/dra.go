package download

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ddbjDRAMetadataURL is DDBJ's counterpart to NCBI's rotating daily/monthly
// archives: a single, continuously-updated metadata tarball rather than a
// dated directory listing, so SyncDRATar needs no discovery step.
const ddbjDRAMetadataURL = "https://ftp.ddbj.nig.ac.jp/ddbj_database/dra/meta/DRA_Metadata/DRA_Metadata.tar.gz"

// SyncDRATar fetches DDBJ's DRA metadata archive and installs it at
// destPath (CONST_DIR/sra/DRA.tar per spec), the sync-dra-tar counterpart
// to SyncNCBITar. DDBJ's metadata feed has no daily/monthly rotation to
// select between, so this is a plain fetch-then-decompress.
func SyncDRATar(ctx context.Context, destPath string) error {
	client := &http.Client{Timeout: 5 * time.Minute}
	f := NewFetcher()
	f.Client = client

	gzPath := destPath + ".gz"
	if _, err := f.FetchFile(ctx, ddbjDRAMetadataURL, gzPath); err != nil {
		return fmt.Errorf("download: fetch DRA metadata: %w", err)
	}
	defer removeQuiet(gzPath)

	if err := gunzipToFile(gzPath, destPath); err != nil {
		return fmt.Errorf("download: decompress DRA metadata: %w", err)
	}
	return nil
}
