package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scryfall-haste/catalog"
	"github.com/aluiziolira/go-scryfall-haste/config"
	"github.com/aluiziolira/go-scryfall-haste/models"
	"github.com/aluiziolira/go-scryfall-haste/pipeline"
	"github.com/aluiziolira/go-scryfall-haste/reconcile"
	"github.com/aluiziolira/go-scryfall-haste/render"
	"github.com/aluiziolira/go-scryfall-haste/scraper"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	defaults, err := envDefaults()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	flag.StringVar(&cfg.BaseURL, "base-url", defaults.BaseURL, "Card search API base URL")
	flag.StringVar(&cfg.CatalogFile, "catalog", defaults.CatalogFile, "Release catalog CSV")
	flag.StringVar(&cfg.RulesFile, "rules", defaults.RulesFile, "Family/injection rules YAML (empty uses the built-in rules)")
	flag.StringVar(&cfg.Keyword, "keyword", defaults.Keyword, "Oracle text keyword to search for")
	flag.StringVar(&cfg.Unique, "unique", defaults.Unique, "Search uniqueness mode: cards, prints, or art")
	flag.DurationVar(&cfg.Delay, "delay", defaults.Delay, "Pause after each query (minimum 110ms)")
	flag.DurationVar(&cfg.Timeout, "timeout", defaults.Timeout, "Per-query timeout")
	flag.StringVar(&cfg.UserAgent, "user-agent", defaults.UserAgent, "User-Agent header")
	flag.StringVar(&cfg.ImageFile, "output", defaults.ImageFile, "Chart PNG path")
	flag.StringVar(&cfg.TableFile, "table", defaults.TableFile, "Optional final table export path")
	flag.StringVar(&cfg.TableFormat, "format", defaults.TableFormat, "Table export format: csv, json, or dual")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.BoolVar(&cfg.Verbose, "v", defaults.Verbose, "Enable verbose logging")
	flag.Parse()
	cfg.TableFormat = strings.ToLower(cfg.TableFormat)
	cfg.DedupeMaxSize = defaults.DedupeMaxSize

	logger, level := newLogger(cfg.Verbose)
	logger = logger.With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		slog.Error("loading rules", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting run",
		slog.String("catalog", cfg.CatalogFile),
		slog.String("keyword", cfg.Keyword),
		slog.Duration("delay", cfg.Delay),
		slog.Int("families", len(rules.Families)),
		slog.Int("injections", len(rules.Injections)),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	opts := []pipeline.Option{
		pipeline.WithRenderer(render.New(cfg.ImageFile, cfg.Keyword), cfg.ImageFile),
	}
	var writer pipeline.OutputWriter
	if cfg.TableFile != "" {
		writer, err = pipeline.NewWriter(cfg.TableFormat, cfg.TableFile)
		if err != nil {
			slog.Error("creating writer", slog.Any("error", err))
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithWriter(writer, cfg.TableFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping after the current query")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(catalog.NewLoader(cfg, rules), s, reconcile.New(rules), opts...)
	result, runErr := p.Run(ctx)
	stop()

	if writer != nil {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
			if runErr == nil {
				runErr = err
			}
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if runErr != nil {
		slog.Error("run failed", slog.Any("error", runErr))
		os.Exit(1)
	}

	printSummary(result)
}

// envDefaults overlays HASTESTATS_* variables on the built-in defaults.
func envDefaults() (*config.Config, error) {
	cfg := config.DefaultConfig()

	strs := map[string]*string{
		"BASE_URL":     &cfg.BaseURL,
		"CATALOG":      &cfg.CatalogFile,
		"RULES":        &cfg.RulesFile,
		"KEYWORD":      &cfg.Keyword,
		"UNIQUE":       &cfg.Unique,
		"USER_AGENT":   &cfg.UserAgent,
		"OUTPUT":       &cfg.ImageFile,
		"TABLE":        &cfg.TableFile,
		"FORMAT":       &cfg.TableFormat,
		"METRICS_ADDR": &cfg.MetricsAddr,
	}
	for name, dst := range strs {
		if value, ok := config.EnvString(config.EnvPrefix + name); ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"DELAY":   &cfg.Delay,
		"TIMEOUT": &cfg.Timeout,
	}
	for name, dst := range durations {
		value, ok, err := config.EnvDuration(config.EnvPrefix + name)
		if err != nil {
			return nil, err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := config.EnvInt(config.EnvPrefix + "DEDUPE_MAX_SIZE"); err != nil {
		return nil, err
	} else if ok {
		cfg.DedupeMaxSize = value
	}
	if value, ok := config.EnvString(config.EnvPrefix + "VERBOSE"); ok {
		cfg.Verbose = value == "1" || strings.EqualFold(value, "true")
	}
	return cfg, nil
}

func printSummary(result *models.RunResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")

	summary := result.Collect
	fmt.Printf("  Releases:      %d\n", result.Releases)
	fmt.Printf("  Query keys:    %d\n", result.QueryKeys)
	successRate := 0.0
	if summary.QueryCount > 0 {
		successRate = float64(summary.QueryCount-summary.ErrorCount) / float64(summary.QueryCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", summary.ErrorCount)
	if len(summary.FailedKeys) > 0 {
		keys := make([]string, len(summary.FailedKeys))
		for i, k := range summary.FailedKeys {
			keys[i] = string(k)
		}
		sort.Strings(keys)
		fmt.Printf("  Failed keys:   %s\n", strings.Join(keys, ", "))
	}
	if len(summary.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", summary.ErrorsByType)
	}
	fmt.Printf("  Table rows:    %d\n", result.Rows)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Chart:         %s\n", result.ImageFile)
	if result.TableFile != "" {
		fmt.Printf("  Table:         %s\n", result.TableFile)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
