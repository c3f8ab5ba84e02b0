package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RESULT_DIR", "CONST_DIR", "POSTGRES_URL", "ES_URL", "DBLINK_PATH", "DATE",
		"DBLINKD_SHARD_SIZE", "DBLINKD_MARGIN_DAYS", "DBLINKD_PARALLEL_NUM",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Splitter.ShardSize != 30000 {
		t.Errorf("expected shard_size 30000, got %d", cfg.Splitter.ShardSize)
	}
	if cfg.DBLink.BatchSize != 50000 {
		t.Errorf("expected dblink batch_size 50000, got %d", cfg.DBLink.BatchSize)
	}
	if cfg.Emitter.ParallelNum != 4 {
		t.Errorf("expected parallel_num 4, got %d", cfg.Emitter.ParallelNum)
	}
	if cfg.Sink.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Sink.MaxRetries)
	}
	if cfg.Incremental.MarginDays != 30 {
		t.Errorf("expected margin_days 30, got %d", cfg.Incremental.MarginDays)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load should return defaults for non-existent file, got error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config for non-existent file")
	}
}

func TestLoadValidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
result_dir: /tmp/dblinkd-test
splitter:
  shard_size: 1000
incremental:
  margin_days: 7
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ResultDir != "/tmp/dblinkd-test" {
		t.Errorf("expected result_dir /tmp/dblinkd-test, got %q", cfg.ResultDir)
	}
	if cfg.Splitter.ShardSize != 1000 {
		t.Errorf("expected shard_size 1000, got %d", cfg.Splitter.ShardSize)
	}
	if cfg.Incremental.MarginDays != 7 {
		t.Errorf("expected margin_days 7, got %d", cfg.Incremental.MarginDays)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: [broken"), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("result_dir: /from/file\n"), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("RESULT_DIR", "/from/env")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ResultDir != "/from/env" {
		t.Errorf("expected env to win, got %q", cfg.ResultDir)
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Splitter.ShardSize = 999
	cfg.Incremental.MarginDays = 14

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Splitter.ShardSize != 999 {
		t.Errorf("expected shard_size 999, got %d", loaded.Splitter.ShardSize)
	}
	if loaded.Incremental.MarginDays != 14 {
		t.Errorf("expected margin_days 14, got %d", loaded.Incremental.MarginDays)
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(string) bool
	}{
		{"empty string", "", func(s string) bool { return s == "" }},
		{"absolute path", "/usr/local/bin", func(s string) bool { return s == "/usr/local/bin" }},
		{"tilde expansion", "~/data", func(s string) bool { return s != "~/data" && len(s) > 0 }},
		{"relative path", "relative/path", func(s string) bool { return s == "relative/path" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := expandPath(tt.input); !tt.check(result) {
				t.Errorf("expandPath(%q) = %q", tt.input, result)
			}
		})
	}
}

func TestRunDate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Date = "20260115"
	if got := cfg.RunDate(); got != "20260115" {
		t.Errorf("expected DATE override 20260115, got %q", got)
	}

	cfg.Date = ""
	if got := cfg.RunDate(); len(got) != 8 {
		t.Errorf("expected 8-digit YYYYMMDD, got %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ResultDir = filepath.Join(dir, "result")
	cfg.ConstDir = filepath.Join(dir, "const")
	cfg.DBLinkPath = filepath.Join(dir, "const", "dblink", "tsv")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if _, err := os.Stat(cfg.ResultDir); os.IsNotExist(err) {
		t.Error("result directory was not created")
	}
	if _, err := os.Stat(cfg.DBLinkPath); os.IsNotExist(err) {
		t.Error("dblink path was not created")
	}
}
