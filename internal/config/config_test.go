package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchengine/internal/config"
	"github.com/rshade/batchengine/internal/logging"
	"github.com/rshade/batchengine/pkg/version"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv(config.EnvHome, "/var/lib/batchengine")

	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, version.SchemaVersion, cfg.SchemaVersion)
	assert.Equal(t, 100, cfg.Engine.BatchJobsPerSeed)
	assert.Equal(t, 1, cfg.Engine.InvocationsPerBatchJob)
	assert.Equal(t, time.Second, cfg.Engine.MonitorInterval)
	assert.Equal(t, 4, cfg.JobExec.Workers)
	assert.Equal(t, config.DriverFile, cfg.Store.Driver)
	assert.Equal(t, filepath.Join("/var/lib/batchengine", "data"), cfg.Store.Directory)
	assert.Equal(t, ":8080", cfg.API.Addr)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Engine, cfg.Engine)
}

func TestLoad_PartialSectionKeepsDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
engine:
  batch_jobs_per_seed: 25
  monitor_interval: 250ms
jobexec:
  workers: 8
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Engine.BatchJobsPerSeed)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.MonitorInterval)
	assert.Equal(t, 1, cfg.Engine.InvocationsPerBatchJob)
	assert.Equal(t, 8, cfg.JobExec.Workers)
	assert.Equal(t, 3, cfg.JobExec.MaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
store:
  driver: memory
logging:
  level: info
`)
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvStoreDriver, config.DriverPostgres)
	t.Setenv(config.EnvStoreDSN, "postgres://localhost/batches?sslmode=disable")
	t.Setenv(config.EnvAPIAddr, "127.0.0.1:9999")
	t.Setenv(config.EnvWorkers, "16")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, config.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/batches?sslmode=disable", cfg.Store.DSN)
	assert.Equal(t, "127.0.0.1:9999", cfg.API.Addr)
	assert.Equal(t, 16, cfg.JobExec.Workers)
}

func TestLoad_Overlay(t *testing.T) {
	path := writeFile(t, "config.yaml", `
api:
  addr: ":7000"
  allowed_origins: ["https://a.example"]
`)
	overlay := writeFile(t, "overlay.yaml", `
api:
  addr: ":7001"
`)

	cfg, err := config.Load(path, overlay)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.API.Addr)
	assert.Empty(t, cfg.API.AllowedOrigins, "overlay sections replace the whole section")
}

func TestLoad_IncompatibleSchema(t *testing.T) {
	path := writeFile(t, "config.yaml", "schema_version: 2.0.0\n")

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrIncompatibleSchema)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "engine: [unclosed\n")

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"zero jobs per seed", func(c *config.Config) { c.Engine.BatchJobsPerSeed = 0 }, "batch_jobs_per_seed"},
		{"zero invocations", func(c *config.Config) { c.Engine.InvocationsPerBatchJob = 0 }, "invocations_per_batch_job"},
		{"negative interval", func(c *config.Config) { c.Engine.MonitorInterval = -time.Second }, "intervals"},
		{"no workers", func(c *config.Config) { c.JobExec.Workers = 0 }, "workers"},
		{"no attempts", func(c *config.Config) { c.JobExec.MaxAttempts = 0 }, "max_attempts"},
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "redis" }, "store.driver"},
		{"file without dir", func(c *config.Config) { c.Store.Directory = "" }, "store.directory"},
		{"postgres without dsn", func(c *config.Config) { c.Store.Driver = config.DriverPostgres }, "store.dsn"},
		{"memory", func(c *config.Config) { c.Store.Driver = config.DriverMemory }, ""},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := config.Default()
	cfg.Engine.SeedInterval = 2 * time.Second
	cfg.API.AllowedOrigins = []string{"https://ops.example"}
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "seed_interval: 2s")

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Engine, loaded.Engine)
	assert.Equal(t, cfg.API, loaded.API)
}

func TestGlobalConfig(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)

	cfg := config.GetGlobalConfig()
	require.NotNil(t, cfg)
	assert.Same(t, cfg, config.GetGlobalConfig())

	custom := config.Default()
	custom.API.Addr = ":1"
	config.SetGlobalConfig(custom)
	assert.Equal(t, ":1", config.GetGlobalConfig().API.Addr)
}

func TestNew_ReadsConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("api:\n  addr: \":6060\"\n"), 0600))

	cfg := config.New()
	assert.Equal(t, ":6060", cfg.API.Addr)

	path, err := config.DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml"), path)
}

func TestToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "json"}
	got := lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputStderr, got.Output)
	assert.Equal(t, "debug", got.Level)

	lc.File = "/tmp/batchengine.log"
	got = lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputFile, got.Output)
	assert.Equal(t, "/tmp/batchengine.log", got.File)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "BATCHENGINE_API_ADDR=:5050\n")
	t.Setenv(config.EnvAPIAddr, "")
	require.NoError(t, os.Unsetenv(config.EnvAPIAddr))

	require.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, ":5050", os.Getenv(config.EnvAPIAddr))
}
