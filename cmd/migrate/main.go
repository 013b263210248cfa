package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"

	"weather-explorer/internal/config"
	"weather-explorer/pkg/logging"
)

// migrationFiles lists the versioned SQL files for one direction. Up
// migrations apply in ascending name order; down migrations unwind in
// descending order.
func migrationFiles(dir, direction string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*."+direction+".sql"))
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	return files, nil
}

func main() {
	// Parse command-line flags
	direction := flag.String("direction", "up", "Migration direction: up or down")
	dir := flag.String("dir", "migrations", "Directory holding versioned .up.sql/.down.sql files")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("weather-explorer-migrate", "1.0.0", cfg.Logging.Level)
	defer logger.Sync()

	ctx := context.Background()

	if *direction != "up" && *direction != "down" {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Unknown migration direction", logging.Fields{
			"direction": *direction,
		}, nil)
	}

	files, err := migrationFiles(*dir, *direction)
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to list migration files", logging.Fields{
			"dir": *dir,
		}, err)
	}
	if len(files) == 0 {
		logger.Fatal(ctx, "[MIGRATE_ERROR] No migration files found", logging.Fields{
			"dir":       *dir,
			"direction": *direction,
		}, nil)
	}

	// Connect to database
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to open database connection", logging.Fields{}, err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to ping database", logging.Fields{
			"host":     cfg.Database.Host,
			"database": cfg.Database.Database,
		}, err)
	}

	logger.Info(ctx, "[MIGRATE_START] Applying migrations", logging.Fields{
		"direction": *direction,
		"files":     len(files),
	})

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to read migration file", logging.Fields{
				"file": file,
			}, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			logger.Fatal(ctx, "[MIGRATE_ERROR] Migration failed", logging.Fields{
				"file": filepath.Base(file),
			}, err)
		}

		logger.Info(ctx, "[MIGRATE_APPLIED] Migration applied", logging.Fields{
			"file": filepath.Base(file),
		})
	}

	logger.Info(ctx, "[MIGRATE_COMPLETE] All migrations applied", logging.Fields{
		"direction": *direction,
		"files":     len(files),
	})
}
