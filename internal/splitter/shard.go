package splitter

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// shardWriter writes one shard file, wrapped in the original root
// element's open/close tags, buffering writes so each record is flushed
// without holding the whole shard in memory.
type shardWriter struct {
	file *os.File
	w    *bufio.Writer
	path string
}

func newShardWriter(dir string, index int, rootName string, rootAttrs []xml.Attr) (*shardWriter, error) {
	path := filepath.Join(dir, shardFileName(index))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("splitter: create shard %s: %w", path, err)
	}
	w := bufio.NewWriter(f)

	if _, err := fmt.Fprintf(w, "<%s%s>\n", rootName, formatAttrs(rootAttrs)); err != nil {
		f.Close()
		return nil, err
	}
	return &shardWriter{file: f, w: w, path: path}, nil
}

func (s *shardWriter) writeRecord(raw []byte) (int, error) {
	n, err := s.w.Write(raw)
	if err != nil {
		return n, err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return n, err
	}
	return n + 1, nil
}

func (s *shardWriter) close(rootName string) error {
	if _, err := fmt.Fprintf(s.w, "</%s>\n", rootName); err != nil {
		s.file.Close()
		return err
	}
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func formatAttrs(attrs []xml.Attr) string {
	out := ""
	for _, a := range attrs {
		out += fmt.Sprintf(` %s="%s"`, a.Name.Local, a.Value)
	}
	return out
}
