// Package config provides configuration loading for the pool stress tooling.
// Configuration is loaded from YAML with ${ENV_VAR} substitution.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BenchConfig configures a poolbench run.
type BenchConfig struct {
	// Name identifies the run in logs and metrics
	Name string `yaml:"name" json:"name"`

	// Workload settings control the stress shape
	Workload WorkloadConfig `yaml:"workload" json:"workload"`

	// Observability settings for metrics and logging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// WorkloadConfig controls the create/retire stress shape.
type WorkloadConfig struct {
	// Workers is the number of concurrent goroutines; 0 means NumCPU
	Workers int `yaml:"workers" json:"workers"`
	// Cycles is the number of create/retire cycles per worker
	Cycles int `yaml:"cycles" json:"cycles"`
	// WeakObservers is the number of goroutines polling weak handles
	WeakObservers int `yaml:"weak_observers" json:"weak_observers"`
	// HoldTime keeps each element alive for this long before retirement
	HoldTime time.Duration `yaml:"hold_time" json:"hold_time"`
}

// ObservabilityConfig controls metrics exposure and logging.
type ObservabilityConfig struct {
	// MetricsAddr is the listen address for the Prometheus endpoint;
	// empty disables it
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// LogLevel is the zap log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// Development enables console-friendly logging
	Development bool `yaml:"development" json:"development"`
}

// NewBenchConfig returns a config with sensible defaults.
func NewBenchConfig(name string) *BenchConfig {
	return &BenchConfig{
		Name: name,
		Workload: WorkloadConfig{
			Workers:       runtime.NumCPU(),
			Cycles:        100000,
			WeakObservers: 2,
			HoldTime:      0,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (w *WorkloadConfig) GetWorkers() int {
	if w.Workers <= 0 {
		return runtime.NumCPU()
	}
	return w.Workers
}

// Validate validates the configuration for correctness.
func (bc *BenchConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Workload.Cycles <= 0 {
		return fmt.Errorf("cycles must be positive")
	}
	if bc.Workload.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if bc.Workload.WeakObservers < 0 {
		return fmt.Errorf("weak_observers cannot be negative")
	}
	if bc.Workload.HoldTime < 0 {
		return fmt.Errorf("hold_time cannot be negative")
	}
	if bc.Observability.LogLevel != "" {
		switch bc.Observability.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log_level %q", bc.Observability.LogLevel)
		}
	}
	return nil
}

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Substitute environment variables
	content := string(data)
	content = substituteEnvVars(content)

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
