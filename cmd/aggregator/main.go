package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"

	"weather-explorer/internal/aggregation"
	"weather-explorer/internal/config"
	"weather-explorer/internal/repository"
	"weather-explorer/pkg/database"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

func main() {
	// Parse command-line flags
	force := flag.Bool("force", false, "Truncate and rebuild regional aggregates even when already populated")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("weather-explorer-aggregator", "1.0.0", cfg.Logging.Level)
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[AGGREGATOR_START] Starting regional aggregation", logging.Fields{
		"version": "1.0.0",
		"force":   *force,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("weather_explorer_aggregator")

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
		logger.Fatal(ctx, "[AGGREGATOR_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repositories
	regionRepo := repository.NewRegionRepository(db, logger, metricsCollector)
	aggregateRepo := repository.NewAggregateRepository(db, logger, metricsCollector)

	// Initialize engine
	engine := aggregation.NewEngine(
		regionRepo, aggregateRepo, logger, metricsCollector,
		clockwork.NewRealClock(), cfg.Ingestion.RegionPause,
	)

	result, err := engine.Run(ctx, aggregation.RunOptions{Force: *force})
	if err != nil {
		logger.Fatal(ctx, "[AGGREGATOR_ERROR] Aggregation failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("REGIONAL AGGREGATION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	if result.Skipped {
		fmt.Println("Aggregates already populated; nothing rebuilt (use -force to rebuild)")
	} else {
		fmt.Printf("Regions Total:      %d\n", result.RegionsTotal)
		fmt.Printf("Regions Built:      %d\n", result.RegionsBuilt)
		fmt.Printf("Regions Failed:     %d\n", result.RegionsFailed)
		fmt.Printf("Duration:           %v\n", result.Duration)
	}

	logger.Info(ctx, "[AGGREGATOR_COMPLETE] Regional aggregation finished", logging.Fields{
		"skipped":        result.Skipped,
		"regions_total":  result.RegionsTotal,
		"regions_built":  result.RegionsBuilt,
		"regions_failed": result.RegionsFailed,
	})
}
