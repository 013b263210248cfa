package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"

	"weather-explorer/internal/config"
	"weather-explorer/internal/ingest"
	"weather-explorer/internal/repository"
	"weather-explorer/pkg/database"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

func main() {
	// Parse command-line flags
	rosterPath := flag.String("stations", "", "Fixed-width station roster file to import")
	dataDir := flag.String("data-dir", "", "Directory of per-station daily CSV files to import")
	boundariesPath := flag.String("boundaries", "", "SA4 boundary GeoJSON file to import")
	resolveSA4 := flag.Bool("resolve-sa4", false, "Resolve each station's SA4 region after import")
	batchSize := flag.Int("batch-size", 0, "Rows per insert batch (default from INGEST_BATCH_SIZE)")
	workers := flag.Int("workers", 0, "Concurrent file workers (default from INGEST_MAX_WORKERS)")
	flag.Parse()

	if *rosterPath == "" && *dataDir == "" && *boundariesPath == "" && !*resolveSA4 {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -stations, -data-dir, -boundaries, or -resolve-sa4")
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *batchSize > 0 {
		cfg.Ingestion.BatchSize = *batchSize
	}
	if *workers > 0 {
		cfg.Ingestion.MaxWorkers = *workers
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("weather-explorer-ingester", "1.0.0", cfg.Logging.Level)
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting bulk ingestion", logging.Fields{
		"version":     "1.0.0",
		"stations":    *rosterPath,
		"data_dir":    *dataDir,
		"boundaries":  *boundariesPath,
		"resolve_sa4": *resolveSA4,
		"batch_size":  cfg.Ingestion.BatchSize,
		"workers":     cfg.Ingestion.MaxWorkers,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("weather_explorer_ingester")

	// Initialize database
	db, err := database.NewPostgresDB(&database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repositories
	stationRepo := repository.NewStationRepository(db, logger, metricsCollector)
	observationRepo := repository.NewObservationRepository(db, logger, metricsCollector)
	rollupRepo := repository.NewRollupRepository(db, logger, metricsCollector)
	regionRepo := repository.NewRegionRepository(db, logger, metricsCollector)

	// Initialize pipeline
	pipeline := ingest.NewPipeline(
		stationRepo, observationRepo, rollupRepo, regionRepo,
		logger, metricsCollector, clockwork.NewRealClock(),
		ingest.Options{
			BatchSize: cfg.Ingestion.BatchSize,
			Split: ingest.SplitOptions{
				MinChunkSize: cfg.Ingestion.MinChunkSize,
				MaxRetries:   cfg.Ingestion.MaxRetries,
				RetryBackoff: cfg.Ingestion.RetryBackoff,
			},
			MaxWorkers: cfg.Ingestion.MaxWorkers,
		},
	)

	// Run the requested phases in dependency order: roster before daily data,
	// boundaries before spatial resolution.
	if *rosterPath != "" {
		result, err := pipeline.IngestRoster(ctx, *rosterPath)
		if err != nil {
			logger.Fatal(ctx, "[INGEST_ROSTER_ERROR] Roster import failed", logging.Fields{
				"path": *rosterPath,
			}, err)
		}

		fmt.Println(strings.Repeat("=", 80))
		fmt.Println("STATION ROSTER IMPORT COMPLETE")
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Stations Upserted:  %d\n", result.StationsUpserted)
		fmt.Printf("Lines Skipped:      %d\n", result.LinesSkipped)
	}

	if *boundariesPath != "" {
		count, err := pipeline.IngestBoundaries(ctx, *boundariesPath)
		if err != nil {
			logger.Fatal(ctx, "[INGEST_BOUNDARIES_ERROR] Boundary import failed", logging.Fields{
				"path": *boundariesPath,
			}, err)
		}

		fmt.Println(strings.Repeat("=", 80))
		fmt.Println("SA4 BOUNDARY IMPORT COMPLETE")
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Regions Loaded:     %d\n", count)
	}

	if *dataDir != "" {
		result, err := pipeline.IngestDailyDir(ctx, *dataDir)
		if err != nil {
			logger.Fatal(ctx, "[INGEST_DAILY_ERROR] Daily data import failed", logging.Fields{
				"data_dir": *dataDir,
			}, err)
		}

		fmt.Println(strings.Repeat("=", 80))
		fmt.Println("DAILY DATA IMPORT COMPLETE")
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Total Files:        %d\n", result.TotalFiles)
		fmt.Printf("Rows Inserted:      %d\n", result.RowsInserted)
		fmt.Printf("Rows Failed:        %d\n", result.RowsFailed)
		fmt.Printf("Lines Skipped:      %d\n", result.LinesSkipped)
		fmt.Printf("Batch Retries:      %d\n", result.BatchRetries)
		fmt.Printf("Batch Splits:       %d\n", result.BatchSplits)
		fmt.Printf("Failed Files:       %d\n", result.FailedFiles)
		fmt.Printf("Duration:           %v\n", result.Duration)
		if result.Duration.Seconds() > 0 {
			fmt.Printf("Rows/Second:        %.2f\n", float64(result.RowsInserted)/result.Duration.Seconds())
		}

		if len(result.Errors) > 0 {
			fmt.Printf("\nErrors (%d):\n", len(result.Errors))
			for i, errMsg := range result.Errors {
				if i < 10 {
					fmt.Printf("  - %s\n", errMsg)
				}
			}
			if len(result.Errors) > 10 {
				fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
			}
		}
	}

	if *resolveSA4 {
		result, err := pipeline.ResolveRegions(ctx)
		if err != nil {
			logger.Fatal(ctx, "[INGEST_RESOLVE_ERROR] Spatial resolution failed", logging.Fields{}, err)
		}

		fmt.Println(strings.Repeat("=", 80))
		fmt.Println("SPATIAL RESOLUTION COMPLETE")
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Stations Total:     %d\n", result.StationsTotal)
		fmt.Printf("Stations Matched:   %d\n", result.StationsMatched)
		fmt.Printf("Stations Offshore:  %d\n", result.StationsOffshore)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{})
}
