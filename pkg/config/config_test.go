package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewBenchConfig("smoke")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "smoke", cfg.Name)
	assert.Greater(t, cfg.Workload.GetWorkers(), 0)
	assert.Equal(t, 100000, cfg.Workload.Cycles)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BenchConfig)
		wantErr string
	}{
		{"missing name", func(c *BenchConfig) { c.Name = "" }, "name is required"},
		{"zero cycles", func(c *BenchConfig) { c.Workload.Cycles = 0 }, "cycles must be positive"},
		{"negative workers", func(c *BenchConfig) { c.Workload.Workers = -1 }, "workers cannot be negative"},
		{"negative observers", func(c *BenchConfig) { c.Workload.WeakObservers = -1 }, "weak_observers cannot be negative"},
		{"negative hold", func(c *BenchConfig) { c.Workload.HoldTime = -time.Second }, "hold_time cannot be negative"},
		{"bad level", func(c *BenchConfig) { c.Observability.LogLevel = "loud" }, "invalid log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewBenchConfig("test")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("BENCH_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "bench.yaml")
	content := `
name: stress
workload:
  workers: 4
  cycles: 500
  weak_observers: 1
observability:
  log_level: ${BENCH_LEVEL}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var cfg BenchConfig
	require.NoError(t, Load(path, &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "stress", cfg.Name)
	assert.Equal(t, 4, cfg.Workload.Workers)
	assert.Equal(t, 500, cfg.Workload.Cycles)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	var cfg BenchConfig
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewBenchConfig("roundtrip")
	cfg.Workload.Cycles = 42

	require.NoError(t, Save(path, cfg))

	var loaded BenchConfig
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, cfg.Name, loaded.Name)
	assert.Equal(t, 42, loaded.Workload.Cycles)
}
