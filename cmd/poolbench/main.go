// Command poolbench stress-tests the generational object pool and reports
// throughput and staleness-protocol results.
package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RainBoltz/ton/pkg/config"
	"github.com/RainBoltz/ton/pkg/logger"
	"github.com/RainBoltz/ton/pkg/metrics"
	"github.com/RainBoltz/ton/pkg/pool"
)

var version = "0.1.0"

// Session is the stress workload element: a plausible stand-in for the
// actor-state objects the pool is built for.
type Session struct {
	ID     int64
	Worker int
	Opened time.Time
	Tags   []string
}

// Result summarizes one stress run.
type Result struct {
	Name          string        `json:"name"`
	Workers       int           `json:"workers"`
	Cycles        int           `json:"cycles_per_worker"`
	TotalCycles   int64         `json:"total_cycles"`
	StaleDetected int64         `json:"stale_detected"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	CyclesPerSec  float64       `json:"cycles_per_sec"`
	Pool          pool.Stats    `json:"pool"`
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "poolbench",
		Short: "Stress driver for the generational object pool",
		Long: `poolbench runs concurrent create/retire cycles against the generational
object pool while observer goroutines poll weak handles, validating the
staleness protocol under load and reporting throughput.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("poolbench v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var (
		configFile  string
		workers     int
		cycles      int
		observers   int
		holdTime    time.Duration
		metricsAddr string
		logLevel    string
		outputFile  string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a stress workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewBenchConfig("poolbench")
			if configFile != "" {
				if err := config.Load(configFile, cfg); err != nil {
					return fmt.Errorf("configuration error: %w", err)
				}
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workload.Workers = workers
			}
			if cmd.Flags().Changed("cycles") {
				cfg.Workload.Cycles = cycles
			}
			if cmd.Flags().Changed("weak-observers") {
				cfg.Workload.WeakObservers = observers
			}
			if cmd.Flags().Changed("hold") {
				cfg.Workload.HoldTime = holdTime
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Observability.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Observability.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return runBench(cfg, outputFile)
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	runCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Number of concurrent workers")
	runCmd.Flags().IntVar(&cycles, "cycles", 100000, "Create/retire cycles per worker")
	runCmd.Flags().IntVar(&observers, "weak-observers", 2, "Goroutines polling weak handles during the run")
	runCmd.Flags().DurationVar(&holdTime, "hold", 0, "How long each element stays alive before retirement")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus endpoint (empty disables it)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the JSON result to this file instead of stdout")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBench(cfg *config.BenchConfig, outputFile string) error {
	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Development: cfg.Observability.Development,
		Encoding:    "console",
	}); err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("run", cfg.Name))

	p := pool.New[Session](func(s *Session) {
		*s = Session{}
	}, log)
	defer p.Close()

	prometheus.MustRegister(metrics.NewPoolCollector(cfg.Name, p.Stats))
	if cfg.Observability.MetricsAddr != "" {
		go serveMetrics(cfg.Observability.MetricsAddr, log)
	}

	workers := cfg.Workload.GetWorkers()
	log.Info("starting stress run",
		zap.Int("workers", workers),
		zap.Int("cycles", cfg.Workload.Cycles),
		zap.Int("weak_observers", cfg.Workload.WeakObservers),
		zap.Duration("hold", cfg.Workload.HoldTime))

	var (
		staleDetected atomic.Int64
		stop          atomic.Bool
		shared        atomic.Pointer[pool.Weak[Session]]
	)

	// Observer goroutines poll whatever weak handle the workers most
	// recently published; a handle that reports dead must stay dead.
	var obsWG sync.WaitGroup
	for i := 0; i < cfg.Workload.WeakObservers; i++ {
		obsWG.Add(1)
		go func() {
			defer obsWG.Done()
			for !stop.Load() {
				if w := shared.Load(); w != nil && !w.Alive() {
					staleDetected.Add(1)
				}
			}
		}()
	}

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			label := strconv.Itoa(id)
			for i := 0; i < cfg.Workload.Cycles; i++ {
				timer := metrics.NewTimer("cycle")

				owned := p.Create(Session{
					ID:     int64(i),
					Worker: id,
					Opened: time.Now(),
				})
				weak := owned.Weak()
				shared.Store(&weak)

				status := "ok"
				if !weak.Alive() {
					status = "stale"
				}
				if cfg.Workload.HoldTime > 0 {
					time.Sleep(cfg.Workload.HoldTime)
				}
				owned.Reset()
				if weak.Alive() {
					// Retirement must be visible to the minting goroutine
					// immediately.
					status = "stale"
				}

				metrics.BenchCycles.WithLabelValues(label, status).Inc()
				metrics.BenchCycleLatency.Observe(float64(timer.Stop().Nanoseconds()))
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)
	stop.Store(true)
	obsWG.Wait()

	total := int64(workers) * int64(cfg.Workload.Cycles)
	result := Result{
		Name:          cfg.Name,
		Workers:       workers,
		Cycles:        cfg.Workload.Cycles,
		TotalCycles:   total,
		StaleDetected: staleDetected.Load(),
		Elapsed:       elapsed,
		CyclesPerSec:  float64(total) / elapsed.Seconds(),
		Pool:          p.Stats(),
	}

	log.Info("stress run complete",
		zap.Int64("total_cycles", result.TotalCycles),
		zap.Duration("elapsed", elapsed),
		zap.Float64("cycles_per_sec", result.CyclesPerSec),
		zap.Int64("slots_allocated", result.Pool.Slots),
		zap.Int("chunks", result.Pool.Chunks))

	return writeResult(result, outputFile)
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}

func writeResult(result Result, outputFile string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if outputFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
