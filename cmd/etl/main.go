// Command etl runs the census pipeline: extract a raw file into a staging
// table, clean/validate/encode it into the transformed table, and load the
// warehouse table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/Huy0211/DPA01-project/internal/config"
	"github.com/Huy0211/DPA01-project/internal/logging"
	"github.com/Huy0211/DPA01-project/internal/metrics"
	"github.com/Huy0211/DPA01-project/internal/metrics/datadog"
	"github.com/Huy0211/DPA01-project/internal/metrics/prompush"
	"github.com/Huy0211/DPA01-project/internal/pipeline"

	// register every storage backend; the config picks one.
	_ "github.com/Huy0211/DPA01-project/internal/storage/all"
)

// runner is the part of *pipeline.Runner the CLI depends on.
type runner interface {
	Run(ctx context.Context, p config.Pipeline, step pipeline.Step) (pipeline.Summary, error)
}

// metricsBackend is what initMetrics needs from a closable backend.
type metricsBackend interface {
	Close() error
}

// metricsConfig selects and configures the metrics backend.
type metricsConfig struct {
	Job            string
	Backend        string
	PushgatewayURL string
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	readFile    func(path string) ([]byte, error)
	unmarshal   func(data []byte, v any) error
	newRunner   func(logger *charmlog.Logger) runner
	initMetrics func(ctx context.Context, cfg metricsConfig) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		readFile:  os.ReadFile,
		unmarshal: config.Unmarshal,
		newRunner: func(logger *charmlog.Logger) runner {
			return pipeline.NewDefaultRunner(logger)
		},
		initMetrics: initMetrics,
	}
}

// Package-level seams used by initMetrics; tests swap them.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string) (metrics.Backend, error) {
		return prompush.NewBackend(job, url)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	flushMetrics = metrics.Flush
	logPrintf    = log.Printf
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain is main without process exit, for tests.
//
// Exit codes:
//   - 0: success (or a valid config with -validate).
//   - 1: config, metrics, storage or data errors.
//   - 2: usage errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath        = fs.String("config", "", "pipeline config path (JSON or YAML)")
		step           = fs.String("step", "all", "step to run: extract|transform|load|all")
		validateOnly   = fs.Bool("validate", false, "validate the configuration and exit")
		backendName    = fs.String("metrics-backend", envOr("METRICS_BACKEND", "none"), "metrics backend: none|datadog|pushgateway")
		pushGatewayURL = fs.String("pushgateway-url", envOr("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL")
		logLevel       = fs.String("log-level", envOr("LOG_LEVEL", "info"), "log level: debug|info|warn|error")
		logJSON        = fs.Bool("log-json", false, "emit JSON logs")
		verbose        = fs.Bool("v", false, "shorthand for -log-level=debug")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*cfgPath) == "" {
		fmt.Fprintln(stderr, "usage: etl -config <pipeline.json|yaml> [-step extract|transform|load|all] [-validate]")
		return 2
	}
	st, err := pipeline.ParseStep(*step)
	if err != nil {
		fmt.Fprintf(stderr, "usage: etl -config: %v\n", err)
		return 2
	}

	level := *logLevel
	if *verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level, JSON: *logJSON, Output: stderr})

	data, err := deps.readFile(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "read config: %v\n", err)
		return 1
	}
	var p config.Pipeline
	if err := deps.unmarshal(data, &p); err != nil {
		fmt.Fprintf(stderr, "parse config: %v\n", err)
		return 1
	}
	p.ApplyDefaults()

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "invalid config: %s\n", *cfgPath)
		return 1
	}
	if *validateOnly {
		fmt.Fprintf(stdout, "config ok: %s\n", *cfgPath)
		return 0
	}

	cleanup, err := deps.initMetrics(ctx, metricsConfig{
		Job:            p.Job,
		Backend:        *backendName,
		PushgatewayURL: *pushGatewayURL,
	})
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	logger.Debug("pipeline",
		"source", p.Source.File.Path, "parser", p.Parser.Kind,
		"storage", p.Storage.Kind, "step", string(st))

	start := time.Now()
	sum, err := deps.newRunner(logger).Run(ctx, p, st)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}
	logger.Info("completed",
		"run_id", sum.RunID, "staged", sum.Staged, "cleaned", sum.Cleaned,
		"dropped", sum.Dropped(), "loaded", sum.Loaded,
		"duration", time.Since(start).Truncate(time.Millisecond))

	fmt.Fprintln(stdout, "ok")
	return 0
}

// initMetrics installs the backend named by cfg.Backend.
//
// The returned cleanup is never nil and must be called once, after the run,
// to flush or close the backend.
func initMetrics(ctx context.Context, cfg metricsConfig) (func(), error) {
	noop := func() {}
	job := cfg.Job
	if job == "" {
		job = config.DefaultJob
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none", "noop":
		return noop, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	case "pushgateway", "prometheus":
		b, err := newPushBackend(job, cfg.PushgatewayURL)
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		return func() {
			if err := flushMetrics(); err != nil {
				logPrintf("metrics: pushgateway flush error: %v", err)
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", cfg.Backend)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
