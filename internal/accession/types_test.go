package accession

import (
	"strings"
	"testing"
)

func TestOrdinalSQLCaseMatchesOrdinal(t *testing.T) {
	expr := OrdinalSQLCase("src_type")
	if !strings.HasPrefix(expr, "CASE src_type") {
		t.Errorf("expected expression to start with 'CASE src_type', got %q", expr)
	}
	if !strings.Contains(expr, "WHEN 'bioproject' THEN 1") {
		t.Errorf("expected bioproject mapped to its ordinal, got %q", expr)
	}
	if !strings.Contains(expr, "WHEN 'sra-run' THEN 7") {
		t.Errorf("expected sra-run mapped to its ordinal, got %q", expr)
	}
	if !strings.HasSuffix(expr, "ELSE -1 END") {
		t.Errorf("expected fallback ELSE -1 END, got %q", expr)
	}
}
