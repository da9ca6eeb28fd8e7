package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gridwatch/psefetch/internal/aggregate"
	"github.com/gridwatch/psefetch/internal/api"
	"github.com/gridwatch/psefetch/internal/cache"
	"github.com/gridwatch/psefetch/internal/catalog"
	"github.com/gridwatch/psefetch/internal/config"
	"github.com/gridwatch/psefetch/internal/database"
	"github.com/gridwatch/psefetch/internal/export"
	"github.com/gridwatch/psefetch/internal/models"
	"github.com/gridwatch/psefetch/internal/scheduler"
	"github.com/gridwatch/psefetch/internal/server"
)

// Command psefetch fetches generator-unit readings from the PSE
// reporting API, aggregates them to hourly means, and reports plants or
// unit codes not yet present in the known catalog.
//
// Usage:
//
//	psefetch [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-start string
//	      start date, YYYY-MM-DD (inclusive)
//	-end string
//	      end date, YYYY-MM-DD (inclusive)
//	-resources string
//	      comma-separated resource codes to filter
//	-plants string
//	      comma-separated power plants to filter
//	-out string
//	      xlsx output path (overrides export.path from config)
//	-watch
//	      run the status server and refresh on a schedule instead of
//	      fetching once
func main() {
	flags := parseFlags()

	appConfig, err := config.Load(flags.configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(appConfig.Logging)

	known := catalog.Catalog{}
	if appConfig.Catalog.Path != "" {
		known, err = catalog.LoadFile(appConfig.Catalog.Path)
		if err != nil {
			logger.Fatalf("Failed to load catalog: %v", err)
		}
	}

	resultCache, err := cache.New(appConfig.API.CacheSize)
	if err != nil {
		logger.Fatalf("Failed to create result cache: %v", err)
	}

	var sink database.GenerationSink
	if appConfig.Database.Enabled {
		sink, err = database.NewPostgresSink(appConfig.Database.ConnString())
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer sink.Close()
	}

	exportPath := appConfig.Export.Path
	if flags.out != "" {
		exportPath = flags.out
	}

	board := server.NewBoard()
	client := api.NewClient(api.ClientOptions{
		BaseURL:        appConfig.API.BaseURL,
		RequestTimeout: appConfig.API.RequestTimeout,
		RateLimit:      appConfig.API.RateLimit,
		RateLimitBurst: appConfig.API.RateLimitBurst,
	}, logger)
	executor := api.NewExecutor(api.Policy{
		MaxRetries: appConfig.API.MaxRetries,
		BaseDelay:  appConfig.API.RetryBaseDelay,
		Multiplier: appConfig.API.RetryMultiplier,
	}, logger)

	a := &app{
		cfg:        appConfig,
		logger:     logger,
		walker:     api.NewWalker(client, executor, appConfig.API.PageSize, logger, board.Observe),
		cache:      resultCache,
		known:      known,
		sink:       sink,
		exportPath: exportPath,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	if watchMode(flags, appConfig) {
		runWatch(ctx, a, board)
		return
	}

	window, err := windowFromFlags(flags)
	if err != nil {
		logger.Fatalf("Invalid query: %v", err)
	}
	if err := a.runWindow(ctx, window); err != nil {
		logger.WithError(err).Error("Fetch did not complete")
		os.Exit(1)
	}
}

// app wires the fetch pipeline: walk pages, aggregate, detect novel
// labels, then export and store.
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	walker     *api.Walker
	cache      *cache.ResultCache
	known      catalog.Catalog
	sink       database.GenerationSink
	exportPath string
}

// runWindow executes one complete fetch for the window. When the fetch
// fails mid-way, the records from completed pages are still processed
// and the result is reported as partial.
func (a *app) runWindow(ctx context.Context, window models.Window) error {
	key := window.Key(a.cfg.API.PageSize)
	if cached, ok := a.cache.Get(key); ok {
		a.logger.WithField("records", len(cached.Records)).Info("Serving fetch from cache")
		return a.process(ctx, cached)
	}

	result, fetchErr := a.walker.Run(ctx, window)
	if fetchErr == nil {
		a.cache.Put(key, result)
	} else {
		a.logger.WithFields(logrus.Fields{
			"pages":   result.Pages,
			"records": len(result.Records),
		}).Warn("Fetch incomplete, processing partial result")
	}

	if err := a.process(ctx, result); err != nil {
		if fetchErr != nil {
			return fetchErr
		}
		return err
	}
	return fetchErr
}

func (a *app) process(ctx context.Context, result models.FetchResult) error {
	aggs := aggregate.Hourly(result.Records)
	report := catalog.Detect(result.Records, a.known)

	a.logger.WithFields(logrus.Fields{
		"records":    len(result.Records),
		"aggregates": len(aggs),
		"pages":      result.Pages,
		"partial":    result.Partial,
	}).Info("Fetch processed")

	if report.Empty() {
		a.logger.Info("No novel plants or unit codes observed")
	} else {
		for _, plant := range report.NewPlants {
			a.logger.WithField("plant", plant).Info("Novel power plant observed")
		}
		for plant, codes := range report.NewCodes {
			a.logger.WithFields(logrus.Fields{
				"plant": plant,
				"codes": strings.Join(codes, ","),
			}).Info("Novel unit codes observed under known plant")
		}
	}

	if a.sink != nil {
		if err := a.sink.BatchInsertRecords(ctx, result.Records); err != nil {
			return fmt.Errorf("storing records: %w", err)
		}
		if err := a.sink.UpsertHourlyAggregates(ctx, aggs); err != nil {
			return fmt.Errorf("storing aggregates: %w", err)
		}
	}

	if a.exportPath != "" && len(aggs) > 0 {
		tables := aggregate.PivotByPlant(aggs)
		if err := export.WriteWorkbook(a.exportPath, tables); err != nil {
			return fmt.Errorf("exporting workbook: %w", err)
		}
		a.logger.WithFields(logrus.Fields{
			"path":   a.exportPath,
			"sheets": len(tables),
		}).Info("Workbook written")
	}

	return nil
}

// runWatch starts the status server and the cron refresher, then blocks
// until either fails or the context is canceled.
func runWatch(ctx context.Context, a *app, board *server.Board) {
	errChan := make(chan error, 1)

	srv := server.New(board, a.logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: srv.Routes(),
	}
	go func() {
		a.logger.WithField("addr", httpServer.Addr).Info("Starting status server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("status server error: %w", err)
		}
	}()

	refresher := scheduler.New(ctx, a.runWindow, a.cfg.Scheduler.Spec, a.cfg.Scheduler.Lookback, a.logger)
	if err := refresher.Start(); err != nil {
		a.logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer refresher.Stop()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-errChan:
		a.logger.WithError(err).Error("Service error, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

type cliFlags struct {
	configPath string
	start      string
	end        string
	resources  string
	plants     string
	out        string
	watch      bool
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.configPath, "config", "config.yaml", "path to config file")
	flag.StringVar(&flags.start, "start", "", "start date, YYYY-MM-DD (inclusive)")
	flag.StringVar(&flags.end, "end", "", "end date, YYYY-MM-DD (inclusive)")
	flag.StringVar(&flags.resources, "resources", "", "comma-separated resource codes to filter")
	flag.StringVar(&flags.plants, "plants", "", "comma-separated power plants to filter")
	flag.StringVar(&flags.out, "out", "", "xlsx output path")
	flag.BoolVar(&flags.watch, "watch", false, "run status server and scheduled refreshes")

	flag.Parse()

	return flags
}

// watchMode reports whether the process runs as a long-lived service.
// The -watch flag forces it; scheduler.enabled in the config turns it on
// for deployments that pass no flags.
func watchMode(flags *cliFlags, cfg *config.Config) bool {
	return flags.watch || cfg.Scheduler.Enabled
}

// windowFromFlags builds the half-open fetch window from inclusive CLI
// dates: the end date contributes its whole day.
func windowFromFlags(flags *cliFlags) (models.Window, error) {
	if flags.start == "" || flags.end == "" {
		return models.Window{}, fmt.Errorf("-start and -end are required (or use -watch)")
	}
	start, err := time.ParseInLocation("2006-01-02", flags.start, time.UTC)
	if err != nil {
		return models.Window{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", flags.end, time.UTC)
	if err != nil {
		return models.Window{}, fmt.Errorf("invalid end date: %w", err)
	}

	window := models.Window{
		Start:  start,
		End:    end.AddDate(0, 0, 1),
		Filter: models.Filter{Resources: splitCSV(flags.resources), Plants: splitCSV(flags.plants)},
	}
	return window, window.Validate()
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func handleSignals(cancel context.CancelFunc, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received signal, canceling")
	cancel()
}
