package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendInflux = "influx"
)

type Config struct {
	Data      DataConfig      `yaml:"data"`
	Store     StoreConfig     `yaml:"store"`
	Inference InferenceConfig `yaml:"inference"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type DataConfig struct {
	CSVDir    string `yaml:"csv_dir"`
	IndexDir  string `yaml:"index_dir"`
	ModelsDir string `yaml:"models_dir"`
}

type StoreConfig struct {
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Influx  InfluxConfig `yaml:"influx"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type InfluxConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Org     string        `yaml:"org"`
	Bucket  string        `yaml:"bucket"`
	Timeout time.Duration `yaml:"timeout"`
}

type InferenceConfig struct {
	SequenceLength int           `yaml:"sequence_length"`
	Lookback       time.Duration `yaml:"lookback"`
}

type IndexConfig struct {
	Workers int  `yaml:"workers"`
	Parquet bool `yaml:"parquet"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the registry in Prometheus text format
	// after each command run.
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Data: DataConfig{
			CSVDir:    "data",
			IndexDir:  "ML",
			ModelsDir: "ML",
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			SQLite:  SQLiteConfig{Path: "data/readings.db"},
			Influx:  InfluxConfig{Timeout: 30 * time.Second},
		},
		Inference: InferenceConfig{
			SequenceLength: 24,
			Lookback:       6 * time.Hour,
		},
		Index: IndexConfig{Workers: 4},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// LoadConfig reads a YAML file over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"SOLAR_STORE_BACKEND", &cfg.Store.Backend},
		{"SOLAR_SQLITE_PATH", &cfg.Store.SQLite.Path},
		{"SOLAR_INDEX_DIR", &cfg.Data.IndexDir},
		{"SOLAR_MODELS_DIR", &cfg.Data.ModelsDir},
		{"INFLUX_URL", &cfg.Store.Influx.URL},
		{"INFLUX_TOKEN", &cfg.Store.Influx.Token},
		{"INFLUX_ORG", &cfg.Store.Influx.Org},
		{"INFLUX_BUCKET", &cfg.Store.Influx.Bucket},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Store.Backend {
	case BackendMemory:
		if cfg.Data.CSVDir == "" {
			return fmt.Errorf("data.csv_dir is required for the memory store")
		}
	case BackendSQLite:
		if cfg.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required")
		}
	case BackendInflux:
		if cfg.Store.Influx.URL == "" {
			return fmt.Errorf("store.influx.url is required")
		}
		if cfg.Store.Influx.Bucket == "" {
			return fmt.Errorf("store.influx.bucket is required")
		}
		if cfg.Store.Influx.Org == "" {
			return fmt.Errorf("store.influx.org is required")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, sqlite, influx; got %q", cfg.Store.Backend)
	}

	if cfg.Data.IndexDir == "" {
		return fmt.Errorf("data.index_dir is required")
	}
	if cfg.Data.ModelsDir == "" {
		return fmt.Errorf("data.models_dir is required")
	}
	if cfg.Inference.SequenceLength <= 0 {
		return fmt.Errorf("inference.sequence_length must be greater than 0")
	}
	if cfg.Inference.Lookback <= 0 {
		return fmt.Errorf("inference.lookback must be greater than 0")
	}
	if cfg.Index.Workers <= 0 {
		return fmt.Errorf("index.workers must be greater than 0")
	}
	return nil
}
