// Package config resolves dblinkd's configuration: environment variables
// first (the pipeline's external interface — RESULT_DIR, CONST_DIR,
// POSTGRES_URL, ES_URL, DATE, DBLINK_PATH), with an optional YAML file for
// local overrides of tunables the external interface doesn't name directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ddbj/dblinkd/internal/paths"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable a step reads.
type Config struct {
	ResultDir   string `yaml:"result_dir"`
	ConstDir    string `yaml:"const_dir"`
	PostgresURL string `yaml:"postgres_url"`
	ESURL       string `yaml:"es_url"`
	DBLinkPath  string `yaml:"dblink_path"` // TSV output root
	Date        string `yaml:"date"`        // overrides today's YYYYMMDD; empty = today

	Splitter    SplitterConfig    `yaml:"splitter"`
	DBLink      DBLinkConfig      `yaml:"dblink"`
	Sources     SourcesConfig     `yaml:"sources"`
	Emitter     EmitterConfig     `yaml:"emitter"`
	Sink        SinkConfig        `yaml:"sink"`
	Incremental IncrementalConfig `yaml:"incremental"`
}

// SplitterConfig controls the XML/TSV shard splitter.
type SplitterConfig struct {
	ShardSize int `yaml:"shard_size"` // records per shard, default 30000
}

// DBLinkConfig controls the relation-graph builder.
type DBLinkConfig struct {
	BatchSize int `yaml:"batch_size"` // edges per transaction, default 50000
	Workers   int `yaml:"workers"`    // extractor shard-parse worker pool size, default 4
}

// SourcesConfig names the external inputs the seven DBLink extractors read,
// beyond the SRA/DRA accessions stores and the BioProject/BioSample shard
// trees already resolved via paths.Paths.
type SourcesConfig struct {
	AssemblySummaryURL string `yaml:"assembly_summary_url"` // GenBank assembly_summary_genbank.txt
}

// EmitterConfig controls the JSONL emitter worker pool.
type EmitterConfig struct {
	ParallelNum  int `yaml:"parallel_num"`   // worker pool size, default 4
	SRABatchSize int `yaml:"sra_batch_size"` // submissions per SRA shard file, default 5000
}

// SinkConfig controls the document-sink adapter's batching/retry policy.
type SinkConfig struct {
	BatchSize      int           `yaml:"batch_size"`      // docs per put_batch, default 5000
	InitialBackoff time.Duration `yaml:"initial_backoff"` // default 1s
	BackoffFactor  float64       `yaml:"backoff_factor"`  // default 2
	MaxBackoff     time.Duration `yaml:"max_backoff"`     // default 60s
	MaxRetries     int           `yaml:"max_retries"`     // default 3
}

// IncrementalConfig controls the last_run.json cutoff discipline.
type IncrementalConfig struct {
	MarginDays int `yaml:"margin_days"` // default 30
}

// DefaultConfig returns the configuration with every default the spec names,
// before environment or file overrides are applied.
func DefaultConfig() *Config {
	p := paths.GetPaths()
	return &Config{
		ResultDir:  p.ResultDir,
		ConstDir:   p.ConstDir,
		DBLinkPath: filepath.Join(p.ConstDir, "dblink", "tsv"),
		Splitter: SplitterConfig{
			ShardSize: 30000,
		},
		DBLink: DBLinkConfig{
			BatchSize: 50000,
			Workers:   4,
		},
		Sources: SourcesConfig{
			AssemblySummaryURL: "https://ftp.ncbi.nlm.nih.gov/genomes/genbank/assembly_summary_genbank.txt",
		},
		Emitter: EmitterConfig{
			ParallelNum:  4,
			SRABatchSize: 5000,
		},
		Sink: SinkConfig{
			BatchSize:      5000,
			InitialBackoff: 1 * time.Second,
			BackoffFactor:  2,
			MaxBackoff:     60 * time.Second,
			MaxRetries:     3,
		},
		Incremental: IncrementalConfig{
			MarginDays: 30,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, then
// environment variables, in that precedence order (env wins last).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	applyEnv(cfg)

	cfg.ResultDir = expandPath(cfg.ResultDir)
	cfg.ConstDir = expandPath(cfg.ConstDir)
	cfg.DBLinkPath = expandPath(cfg.DBLinkPath)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RESULT_DIR"); v != "" {
		cfg.ResultDir = v
	}
	if v := os.Getenv("CONST_DIR"); v != "" {
		cfg.ConstDir = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.PostgresURL = v
	}
	if v := os.Getenv("ES_URL"); v != "" {
		cfg.ESURL = v
	}
	if v := os.Getenv("DBLINK_PATH"); v != "" {
		cfg.DBLinkPath = v
	}
	if v := os.Getenv("DATE"); v != "" {
		cfg.Date = v
	}
	if v := os.Getenv("DBLINKD_SHARD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Splitter.ShardSize = n
		}
	}
	if v := os.Getenv("DBLINKD_MARGIN_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Incremental.MarginDays = n
		}
	}
	if v := os.Getenv("DBLINKD_PARALLEL_NUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Emitter.ParallelNum = n
		}
	}
	if v := os.Getenv("DBLINKD_DBLINK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DBLink.Workers = n
		}
	}
	if v := os.Getenv("ASSEMBLY_SUMMARY_URL"); v != "" {
		cfg.Sources.AssemblySummaryURL = v
	}
}

// Save writes the configuration to a YAML file, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path, if any is configured.
func GetConfigPath() string {
	if path := os.Getenv("DBLINKD_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("dblinkd.yaml"); err == nil {
		return "dblinkd.yaml"
	}
	return ""
}

// EnsureDirectories creates the directories this configuration points to.
func (c *Config) EnsureDirectories() error {
	p := paths.Paths{ResultDir: c.ResultDir, ConstDir: c.ConstDir}
	if err := paths.EnsureDirectories(p); err != nil {
		return err
	}
	return os.MkdirAll(c.DBLinkPath, 0o755)
}

// RunDate returns the YYYYMMDD this run operates under: DATE overrides
// today's date for reproducible re-runs.
func (c *Config) RunDate() string {
	if c.Date != "" {
		return c.Date
	}
	return time.Now().UTC().Format("20060102")
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
