// Package splitter turns a multi-GB BioSampleSet/PackageSet XML document
// into fixed-size shard files (it reads XML only; SRA_Accessions.tab is
// bulk-loaded by accessionsdb.Build instead), streaming the
// input so memory stays O(largest record) rather than O(file), the same
// token-by-token approach the teacher's XMLParser uses for single-record
// decode, generalized here to record-boundary byte-copying instead of full
// struct unmarshaling.
package splitter

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultShardSize is the default number of records per shard (spec 4.2).
const DefaultShardSize = 30000

// Options configures one Split invocation.
type Options struct {
	// RecordTag is the local name of the repeating element to shard on,
	// e.g. "BioSample" or "Package".
	RecordTag string
	// ShardSize is the number of records per shard file. Zero uses
	// DefaultShardSize.
	ShardSize int
	// OutDir is the final shard directory; shards are staged under a
	// sibling .tmp directory and renamed into place atomically on success.
	OutDir string
}

// Split streams input, wrapping each ShardSize run of RecordTag elements in
// the original root element's open/close tags, and writes shard files named
// split_0000.xml, split_0001.xml, ... under opts.OutDir. On any failure
// (including an unmatched end tag, which is treated as CRITICAL by the
// caller) partial output is removed and input is left untouched.
func Split(input io.Reader, name string, opts Options) (shardCount int, recordCount int, err error) {
	shardSize := opts.ShardSize
	if shardSize == 0 {
		shardSize = DefaultShardSize
	}

	reader := input
	if strings.HasSuffix(name, ".gz") {
		gz, gerr := gzip.NewReader(input)
		if gerr != nil {
			return 0, 0, fmt.Errorf("splitter: open gzip %s: %w", name, gerr)
		}
		defer gz.Close()
		reader = gz
	}

	tmpDir := filepath.Join(opts.OutDir, ".tmp")
	if err := os.RemoveAll(tmpDir); err != nil {
		return 0, 0, fmt.Errorf("splitter: clear staging dir: %w", err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("splitter: create staging dir: %w", err)
	}

	shardCount, recordCount, err = splitInto(reader, opts.RecordTag, shardSize, tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		return 0, 0, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		os.RemoveAll(tmpDir)
		return 0, 0, fmt.Errorf("splitter: create out dir: %w", err)
	}
	for i := 0; i < shardCount; i++ {
		shardName := shardFileName(i)
		if err := os.Rename(filepath.Join(tmpDir, shardName), filepath.Join(opts.OutDir, shardName)); err != nil {
			for j := 0; j < i; j++ {
				os.Remove(filepath.Join(opts.OutDir, shardFileName(j)))
			}
			os.RemoveAll(tmpDir)
			return 0, 0, fmt.Errorf("splitter: rename shard %s into place: %w", shardName, err)
		}
	}
	os.RemoveAll(tmpDir)
	return shardCount, recordCount, nil
}

func shardFileName(i int) string {
	return fmt.Sprintf("split_%04d.xml", i)
}

// recordBuffer accumulates raw input bytes while periodically trimming
// already-consumed data, so the running buffer never exceeds roughly one
// record plus decoder lookahead.
type recordBuffer struct {
	buf        bytes.Buffer
	baseOffset int64 // stream offset corresponding to buf.Bytes()[0]
}

func (rb *recordBuffer) write(p []byte) (int, error) { return rb.buf.Write(p) }

// slice returns the bytes of the stream in [start, end).
func (rb *recordBuffer) slice(start, end int64) []byte {
	b := rb.buf.Bytes()
	lo := start - rb.baseOffset
	hi := end - rb.baseOffset
	if lo < 0 || hi > int64(len(b)) || lo > hi {
		return nil
	}
	return b[lo:hi]
}

// trimBefore discards buffered bytes before offset, advancing baseOffset.
func (rb *recordBuffer) trimBefore(offset int64) {
	drop := offset - rb.baseOffset
	if drop <= 0 {
		return
	}
	b := rb.buf.Bytes()
	if drop > int64(len(b)) {
		drop = int64(len(b))
	}
	remaining := append([]byte(nil), b[drop:]...)
	rb.buf.Reset()
	rb.buf.Write(remaining)
	rb.baseOffset += drop
}

func splitInto(input io.Reader, recordTag string, shardSize int, tmpDir string) (shardCount, recordCount int, err error) {
	rb := &recordBuffer{}
	tee := io.TeeReader(input, &rb.buf)
	dec := xml.NewDecoder(tee)

	var rootName string
	var rootAttrs []xml.Attr
	depth := 0

	var currentShard *shardWriter
	recordsInShard := 0
	var recordStart int64 = -1

	flushShard := func() error {
		if currentShard == nil {
			return nil
		}
		if err := currentShard.close(rootName); err != nil {
			return err
		}
		currentShard = nil
		recordsInShard = 0
		return nil
	}

	ensureShard := func() error {
		if currentShard != nil {
			return nil
		}
		w, err := newShardWriter(tmpDir, shardCount, rootName, rootAttrs)
		if err != nil {
			return err
		}
		currentShard = w
		shardCount++
		return nil
	}

	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return 0, 0, fmt.Errorf("splitter: malformed xml at offset %d: %w", dec.InputOffset(), terr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				rootName = t.Name.Local
				rootAttrs = t.Attr
			}
			if depth == 2 && t.Name.Local == recordTag {
				// offset just after the start tag's '>' has already been
				// consumed into InputOffset(); back up to the '<' by
				// scanning the teed buffer, since we want the raw bytes of
				// the record including its opening tag.
				recordStart = findTagStart(rb, dec.InputOffset())
			}

		case xml.EndElement:
			if depth == 2 && t.Name.Local == recordTag {
				if recordStart < 0 {
					return 0, 0, fmt.Errorf("splitter: unmatched end tag </%s> at offset %d", recordTag, dec.InputOffset())
				}
				end := dec.InputOffset()
				raw := rb.slice(recordStart, end)
				if raw == nil {
					return 0, 0, fmt.Errorf("splitter: lost buffered bytes for record ending at offset %d", end)
				}
				if err := ensureShard(); err != nil {
					return 0, 0, err
				}
				if _, err := currentShard.writeRecord(raw); err != nil {
					return 0, 0, err
				}
				recordCount++
				recordsInShard++
				recordStart = -1
				rb.trimBefore(end)

				if recordsInShard >= shardSize {
					if err := flushShard(); err != nil {
						return 0, 0, err
					}
				}
			}
			depth--
		}
	}

	if err := flushShard(); err != nil {
		return 0, 0, err
	}
	return shardCount, recordCount, nil
}

// findTagStart scans backward in the buffered bytes from just before
// upperBound to find the '<' that opens the most recent tag, since
// InputOffset() after a StartElement token points just past its '>'.
func findTagStart(rb *recordBuffer, upperBound int64) int64 {
	b := rb.buf.Bytes()
	hi := upperBound - rb.baseOffset
	if hi > int64(len(b)) {
		hi = int64(len(b))
	}
	for i := hi - 1; i >= 0; i-- {
		if b[i] == '<' {
			return rb.baseOffset + i
		}
	}
	return rb.baseOffset
}
