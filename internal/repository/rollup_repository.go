package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"weather-explorer/internal/models"
	"weather-explorer/pkg/database"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// RollupRepository provides data access for the materialized per-station
// monthly and yearly series
type RollupRepository interface {
	UpsertStationMonthly(ctx context.Context, rollups []*models.StationMonthlyRollup, cols models.MetricColumns) error
	UpsertStationYearly(ctx context.Context, rollups []*models.StationYearlyRollup, cols models.MetricColumns) error
	GetStationMonthlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationMonthlyRollup, error)
	GetStationYearlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationYearlyRollup, error)
}

type rollupRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRollupRepository creates a new rollup repository
func NewRollupRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) RollupRepository {
	return &rollupRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// rollupConflictClause builds the conflict action for a rollup upsert, for
// the given key columns. Like the daily upsert, a per-metric source product
// only overwrites its own columns: a temperature file's rollups carry nil
// rainfall and must not erase the rainfall sums already materialized.
func rollupConflictClause(key string, cols models.MetricColumns) string {
	updates := make([]string, 0, 3)
	if cols.Rainfall {
		updates = append(updates, "rainfall = EXCLUDED.rainfall")
	}
	if cols.MinTemp {
		updates = append(updates, "avg_min_temp = EXCLUDED.avg_min_temp")
	}
	if cols.MaxTemp {
		updates = append(updates, "avg_max_temp = EXCLUDED.avg_max_temp")
	}
	if len(updates) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", key)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(updates, ", "))
}

// UpsertStationMonthly upserts one station's monthly rollups in a
// transaction. On conflict only the columns in cols are overwritten.
func (r *rollupRepository) UpsertStationMonthly(ctx context.Context, rollups []*models.StationMonthlyRollup, cols models.MetricColumns) error {
	if len(rollups) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rainfall_data_monthly (station_id, year, month, rainfall, avg_min_temp, avg_max_temp)
		VALUES ($1, $2, $3, $4, $5, $6)
		`+rollupConflictClause("station_id, year, month", cols))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rollup := range rollups {
		_, err := stmt.ExecContext(ctx,
			rollup.StationID, rollup.Year, rollup.Month,
			rollup.Rainfall, rollup.AvgMinTemp, rollup.AvgMaxTemp,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert monthly rollup %s %d-%02d: %w",
				rollup.StationID, rollup.Year, rollup.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpsertStationYearly upserts one station's yearly rollups in a transaction.
// On conflict only the columns in cols are overwritten.
func (r *rollupRepository) UpsertStationYearly(ctx context.Context, rollups []*models.StationYearlyRollup, cols models.MetricColumns) error {
	if len(rollups) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rainfall_data_yearly (station_id, year, rainfall, avg_min_temp, avg_max_temp)
		VALUES ($1, $2, $3, $4, $5)
		`+rollupConflictClause("station_id, year", cols))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rollup := range rollups {
		_, err := stmt.ExecContext(ctx,
			rollup.StationID, rollup.Year,
			rollup.Rainfall, rollup.AvgMinTemp, rollup.AvgMaxTemp,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert yearly rollup %s %d: %w",
				rollup.StationID, rollup.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetStationMonthlySeries returns the monthly series for a station between
// the months containing start and end, inclusive, ordered ascending.
func (r *rollupRepository) GetStationMonthlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationMonthlyRollup, error) {
	query := `
		SELECT station_id, year, month, rainfall, avg_min_temp, avg_max_temp
		FROM rainfall_data_monthly
		WHERE station_id = $1
		  AND (year * 100 + month) >= $2
		  AND (year * 100 + month) <= $3
		ORDER BY year ASC, month ASC
	`

	var rollups []*models.StationMonthlyRollup
	err := r.db.SelectContext(ctx, "get_station_monthly", &rollups, query,
		models.PadStationID(stationID),
		start.Year()*100+int(start.Month()),
		end.Year()*100+int(end.Month()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly series: %w", err)
	}

	return rollups, nil
}

// GetStationYearlySeries returns the yearly series for a station between the
// years containing start and end, inclusive, ordered ascending.
func (r *rollupRepository) GetStationYearlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationYearlyRollup, error) {
	query := `
		SELECT station_id, year, rainfall, avg_min_temp, avg_max_temp
		FROM rainfall_data_yearly
		WHERE station_id = $1 AND year >= $2 AND year <= $3
		ORDER BY year ASC
	`

	var rollups []*models.StationYearlyRollup
	err := r.db.SelectContext(ctx, "get_station_yearly", &rollups, query,
		models.PadStationID(stationID), start.Year(), end.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to get yearly series: %w", err)
	}

	return rollups, nil
}
