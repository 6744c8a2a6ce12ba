// Package config loads batchengine configuration.
//
// Values come from, in increasing precedence: built-in defaults, the YAML
// file at ~/.batchengine/config.yaml (or the path given with --config),
// overlay files merged with ShallowMergeYAML, and BATCHENGINE_* environment
// variables, which may themselves come from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/batchengine/pkg/version"
)

// Environment variables overriding file values.
const (
	EnvHome        = "BATCHENGINE_HOME"
	EnvLogLevel    = "BATCHENGINE_LOG_LEVEL"
	EnvLogFormat   = "BATCHENGINE_LOG_FORMAT"
	EnvStoreDriver = "BATCHENGINE_STORE_DRIVER"
	EnvStoreDSN    = "BATCHENGINE_STORE_DSN"
	EnvStoreDir    = "BATCHENGINE_STORE_DIR"
	EnvAPIAddr     = "BATCHENGINE_API_ADDR"
	EnvWorkers     = "BATCHENGINE_WORKERS"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

const configFileName = "config.yaml"

// ErrIncompatibleSchema is returned when a config file was written by an
// incompatible batchengine version.
var ErrIncompatibleSchema = errors.New("incompatible config schema version")

// Config is the complete batchengine configuration.
type Config struct {
	SchemaVersion string        `yaml:"schema_version"`
	Engine        EngineConfig  `yaml:"engine"`
	JobExec       JobExecConfig `yaml:"jobexec"`
	Store         StoreConfig   `yaml:"store"`
	API           APIConfig     `yaml:"api"`
	Logging       LoggingConfig `yaml:"logging"`
}

// EngineConfig holds batch fan-out defaults and activation intervals.
type EngineConfig struct {
	BatchJobsPerSeed       int           `yaml:"batch_jobs_per_seed"`
	InvocationsPerBatchJob int           `yaml:"invocations_per_batch_job"`
	SeedInterval           time.Duration `yaml:"seed_interval"`
	MonitorInterval        time.Duration `yaml:"monitor_interval"`
	RecoveryInterval       time.Duration `yaml:"recovery_interval"`

	// SleepPerItem is the time the built-in "sleep" operation spends per work item.
	SleepPerItem time.Duration `yaml:"sleep_per_item"`
}

// JobExecConfig configures the scheduler worker pool and retry policy.
type JobExecConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver    string `yaml:"driver"`
	Directory string `yaml:"directory,omitempty"`
	DSN       string `yaml:"dsn,omitempty"`
}

// APIConfig configures the management HTTP API.
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	Mode           string   `yaml:"mode"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
	Caller bool   `yaml:"caller,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir, err := GetDataDir()
	if err != nil {
		dataDir = filepath.Join(os.TempDir(), "batchengine")
	}

	return &Config{
		SchemaVersion: version.SchemaVersion,
		Engine: EngineConfig{
			BatchJobsPerSeed:       100,
			InvocationsPerBatchJob: 1,
			SeedInterval:           0,
			MonitorInterval:        time.Second,
			RecoveryInterval:       30 * time.Second,
			SleepPerItem:           10 * time.Millisecond,
		},
		JobExec: JobExecConfig{
			Workers:      4,
			PollInterval: 500 * time.Millisecond,
			MaxAttempts:  3,
			RetryBackoff: time.Second,
			MaxBackoff:   time.Minute,
		},
		Store: StoreConfig{
			Driver:    DriverFile,
			Directory: dataDir,
		},
		API: APIConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// New returns the defaults merged with the user's config file, if present,
// and the environment overrides. Errors reading the file are ignored so a
// broken file never prevents the CLI from starting; Load reports them.
func New() *Config {
	cfg := Default()

	if path, err := DefaultConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			_ = decodeFile(cfg, path)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg
}

// Load reads the config file at path on top of the defaults, merges the
// overlay files section by section and applies the environment overrides.
// A missing config file yields the defaults.
func Load(path string, overlays ...string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err = decodeFile(cfg, path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	for _, overlay := range overlays {
		if err := ShallowMergeYAML(cfg, overlay); err != nil {
			return nil, err
		}
	}

	ok, err := version.IsCompatibleSchema(cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrIncompatibleSchema, cfg.SchemaVersion, version.SchemaVersion)
	}

	cfg.ApplyEnvOverrides()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile decodes the YAML file at path onto cfg. Fields the file does
// not mention keep their current values.
func decodeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err = os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides replaces file values with BATCHENGINE_* variables that are set.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvStoreDir); v != "" {
		c.Store.Directory = v
	}
	if v := os.Getenv(EnvAPIAddr); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.JobExec.Workers = n
		}
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.BatchJobsPerSeed <= 0 {
		errs = append(errs, errors.New("engine.batch_jobs_per_seed must be > 0"))
	}
	if c.Engine.InvocationsPerBatchJob <= 0 {
		errs = append(errs, errors.New("engine.invocations_per_batch_job must be > 0"))
	}
	if c.Engine.SeedInterval < 0 || c.Engine.MonitorInterval < 0 || c.Engine.RecoveryInterval < 0 {
		errs = append(errs, errors.New("engine intervals must not be negative"))
	}
	if c.JobExec.Workers <= 0 {
		errs = append(errs, errors.New("jobexec.workers must be > 0"))
	}
	if c.JobExec.MaxAttempts <= 0 {
		errs = append(errs, errors.New("jobexec.max_attempts must be > 0"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Store.Directory == "" {
			errs = append(errs, errors.New("store.directory is required for the file driver"))
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be one of %s, got %q",
			strings.Join([]string{DriverMemory, DriverFile, DriverPostgres}, ", "), c.Store.Driver))
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
