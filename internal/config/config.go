// Package config loads and validates the application configuration. The
// main config file is YAML merged with environment overrides; the outlet
// registry and the calibration seed table live in separate YAML files so
// editorial staff can maintain them without touching service settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/stagedoor/marquee/internal/aggregate"
	"github.com/stagedoor/marquee/internal/calibration"
	"github.com/stagedoor/marquee/internal/outlets"
)

var validate = validator.New()

// OracleConfig configures one oracle slot. The API key is never stored in
// the file itself; APIKeyEnv names the environment variable that holds it.
type OracleConfig struct {
	// Provider selects the backing implementation: "anthropic", "openai",
	// or "google".
	Provider string `koanf:"provider" validate:"required,oneof=anthropic openai google"`

	// Name identifies the oracle in errors, flags, and metrics.
	Name string `koanf:"name" validate:"required"`

	// Model overrides the provider default.
	Model string `koanf:"model"`

	// APIKeyEnv names the environment variable carrying the API key.
	APIKeyEnv string `koanf:"api_key_env" validate:"required"`

	// RatePerSecond and Burst tune the per-oracle token bucket. Zero
	// disables rate limiting for this oracle.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"min=0"`
	Burst         int     `koanf:"burst" validate:"min=0"`
}

// APIKey resolves the key from the environment.
func (o OracleConfig) APIKey() string { return os.Getenv(o.APIKeyEnv) }

// EnsembleConfig mirrors the ensemble scorer's tunables in file form.
type EnsembleConfig struct {
	MediumDisagreement int           `koanf:"medium_disagreement" validate:"min=0"`
	HighDisagreement   int           `koanf:"high_disagreement" validate:"min=0"`
	MaxAttempts        int           `koanf:"max_attempts" validate:"min=0,max=10"`
	BaseDelay          time.Duration `koanf:"base_delay"`
}

// CalibrationConfig configures the corrector and its recompute job.
type CalibrationConfig struct {
	// TablePath seeds the corrector at startup. Empty starts fully inert.
	TablePath string `koanf:"table_path"`

	// MinSamples is the per-bucket floor below which offsets stay inert.
	MinSamples int `koanf:"min_samples" validate:"min=0"`

	// RecomputeSchedule is a cron expression for the offline offset
	// derivation job. Empty disables scheduled recomputation.
	RecomputeSchedule string `koanf:"recompute_schedule"`
}

// AggregateConfig mirrors the aggregator's confidence ladder in file form.
type AggregateConfig struct {
	MinReviews  int `koanf:"min_reviews" validate:"min=0"`
	HighTotal   int `koanf:"high_total" validate:"min=0"`
	HighTier1   int `koanf:"high_tier1" validate:"min=0"`
	MediumTotal int `koanf:"medium_total" validate:"min=0"`
	MediumTier1 int `koanf:"medium_tier1" validate:"min=0"`
}

// Config is the full application configuration.
type Config struct {
	// DatabasePath locates the SQLite database file.
	DatabasePath string `koanf:"database_path" validate:"required"`

	// OutletRegistryPath locates the outlet registry YAML.
	OutletRegistryPath string `koanf:"outlet_registry_path" validate:"required"`

	// MetricsAddr is the Prometheus scrape endpoint address. Empty
	// disables the endpoint.
	MetricsAddr string `koanf:"metrics_addr"`

	// Parallelism caps concurrent show processing in a batch. Zero means
	// the pipeline default.
	Parallelism int `koanf:"parallelism" validate:"min=0"`

	Primary    OracleConfig  `koanf:"primary_oracle" validate:"required"`
	Secondary  OracleConfig  `koanf:"secondary_oracle" validate:"required"`
	Tiebreaker *OracleConfig `koanf:"tiebreaker_oracle"`

	Ensemble    EnsembleConfig    `koanf:"ensemble"`
	Calibration CalibrationConfig `koanf:"calibration"`
	Aggregate   AggregateConfig   `koanf:"aggregate"`
}

// Load reads the config file at path and applies environment overrides.
// MARQUEE_DATABASE_PATH and MARQUEE_METRICS_ADDR take precedence over the
// file, matching how deployments inject per-host paths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(kfile.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("MARQUEE_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("MARQUEE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// AggregateSettings converts the file form into the aggregator's config.
// Zero-valued fields fall back to the aggregator's documented defaults.
func (c *Config) AggregateSettings() aggregate.Config {
	return aggregate.Config{
		MinReviews:  c.Aggregate.MinReviews,
		HighTotal:   c.Aggregate.HighTotal,
		HighTier1:   c.Aggregate.HighTier1,
		MediumTotal: c.Aggregate.MediumTotal,
		MediumTier1: c.Aggregate.MediumTier1,
	}
}

// LoadOutlets reads the outlet registry YAML and builds the resolver
// registry.
func LoadOutlets(path string) (*outlets.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outlet registry %s: %w", path, err)
	}

	var doc struct {
		Outlets []outlets.Outlet `yaml:"outlets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse outlet registry %s: %w", path, err)
	}
	return outlets.NewRegistry(doc.Outlets)
}

// LoadOffsetTable reads a calibration table YAML. A missing path yields a
// fully inert table so a fresh deployment passes scores through unchanged.
func LoadOffsetTable(path string) (calibration.OffsetTable, error) {
	if path == "" {
		return calibration.OffsetTable{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return calibration.OffsetTable{}, fmt.Errorf("read calibration table %s: %w", path, err)
	}

	var table calibration.OffsetTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return calibration.OffsetTable{}, fmt.Errorf("parse calibration table %s: %w", path, err)
	}
	return table, nil
}
