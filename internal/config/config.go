package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the environment variable prefix, e.g. HFT_WORKERS.
const EnvPrefix = "HFT"

// Time units accepted for integer timestamp columns.
const (
	TimeUnitNanos   = "ns"
	TimeUnitMicros  = "us"
	TimeUnitMillis  = "ms"
	TimeUnitSeconds = "s"
)

// Paths locates file-based inputs and outputs.
type Paths struct {
	MarketDir   string `yaml:"market_dir" envconfig:"MARKET_DIR"`     // <root>/<date>/<instrument>.parquet
	PositionDir string `yaml:"position_dir" envconfig:"POSITION_DIR"` // <root>/<date>/<instrument>.csv
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`     // blotters and all_rets.csv
	ArrowDir    string `yaml:"arrow_dir" envconfig:"ARROW_DIR"`       // optional indicator export
}

// Storage selects persistence backends.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" envconfig:"CLICKHOUSE_DSN"`
	UseMemory     bool   `yaml:"use_memory" envconfig:"USE_MEMORY"`
}

// Batch controls enumeration and the worker pool.
type Batch struct {
	Workers             int    `yaml:"workers" envconfig:"WORKERS"`
	InstrumentFilter    string `yaml:"instrument_filter" envconfig:"INSTRUMENT_FILTER"`
	ExpectedInstruments int    `yaml:"expected_instruments" envconfig:"EXPECTED_INSTRUMENTS"` // 0 disables the check
	SkipFirstDate       bool   `yaml:"skip_first_date" envconfig:"SKIP_FIRST_DATE"`
	TimeUnit            string `yaml:"time_unit" envconfig:"TIME_UNIT"`
}

// Config is the full application configuration.
type Config struct {
	Params  StrategyParams `yaml:"params" envconfig:"PARAMS"`
	Paths   Paths          `yaml:"paths" envconfig:"PATHS"`
	Storage Storage        `yaml:"storage" envconfig:"STORAGE"`
	Batch   Batch          `yaml:"batch" envconfig:"BATCH"`

	LogLevel    string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat   string `yaml:"log_format" envconfig:"LOG_FORMAT"` // json | console
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Params: DefaultParams(),
		Paths: Paths{
			MarketDir:   "data/test",
			PositionDir: "positions",
			OutputDir:   "backtest",
		},
		Storage: Storage{UseMemory: true},
		Batch: Batch{
			Workers:          20,
			InstrumentFilter: "_M",
			SkipFirstDate:    true,
			TimeUnit:         TimeUnitNanos,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load builds a Config from defaults, an optional YAML file, a .env file and
// HFT_* environment variables, in that order of precedence (last wins).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Missing .env is fine; real environment still applies.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Batch.Workers)
	}
	if c.Batch.ExpectedInstruments < 0 {
		return fmt.Errorf("expected_instruments must be >= 0, got %d", c.Batch.ExpectedInstruments)
	}
	switch c.Batch.TimeUnit {
	case TimeUnitNanos, TimeUnitMicros, TimeUnitMillis, TimeUnitSeconds:
	default:
		return fmt.Errorf("unknown time unit %q", c.Batch.TimeUnit)
	}
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" && c.Storage.ClickhouseDSN == "" {
		return errors.New("postgres_dsn or clickhouse_dsn is required when use_memory is false")
	}
	return nil
}
