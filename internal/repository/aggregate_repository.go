package repository

import (
	"context"
	"fmt"

	"weather-explorer/internal/models"
	"weather-explorer/pkg/database"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// AggregateRepository provides data access for the materialized regional
// rollup tables maintained by the aggregation engine
type AggregateRepository interface {
	AggregateCount(ctx context.Context) (int, error)
	TruncateAggregates(ctx context.Context) error
	RebuildRegionMonthly(ctx context.Context, sa4Code string) error
	RebuildRegionYearly(ctx context.Context, sa4Code string) error
	GetRegionMonthlySeries(ctx context.Context, sa4Code string) ([]*models.RegionMonthlyAggregate, error)
	GetMonthlyForPeriod(ctx context.Context, year, month int) ([]*models.RegionMonthlyAggregate, error)
	GetYearlyForYear(ctx context.Context, year int) ([]*models.RegionYearlyAggregate, error)
}

type aggregateRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAggregateRepository creates a new aggregate repository
func NewAggregateRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) AggregateRepository {
	return &aggregateRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// AggregateCount reports how many rows the two regional aggregate tables
// hold between them. The engine's run-once guard short-circuits on a
// non-zero count; counting both tables keeps the guard closed when a prior
// run died after writing yearly rows but before any monthly ones.
func (r *aggregateRepository) AggregateCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, "count_aggregates", &count, `
		SELECT (SELECT COUNT(*) FROM sa4_rainfall_monthly)
		     + (SELECT COUNT(*) FROM sa4_rainfall_yearly)`)
	if err != nil {
		return 0, fmt.Errorf("failed to count aggregates: %w", err)
	}
	return count, nil
}

// TruncateAggregates clears both regional tables in one transaction so a
// forced rebuild never observes a half-cleared state.
func (r *aggregateRepository) TruncateAggregates(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE sa4_rainfall_monthly, sa4_rainfall_yearly`); err != nil {
		return fmt.Errorf("failed to truncate aggregates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info(ctx, "[REPO_AGG_TRUNCATE] Regional aggregate tables cleared", logging.Fields{})

	return nil
}

// RebuildRegionMonthly computes one region's monthly means from the raw
// daily rows of its stations. AVG ignores nulls, so a metric with zero
// non-null contributing rows comes out null; a period with no rows at all
// produces no row.
func (r *aggregateRepository) RebuildRegionMonthly(ctx context.Context, sa4Code string) error {
	query := `
		INSERT INTO sa4_rainfall_monthly (sa4_code, year, month, rainfall, max_temp, min_temp)
		SELECT s.sa4_code,
		       EXTRACT(YEAR FROM d.date)::int AS year,
		       EXTRACT(MONTH FROM d.date)::int AS month,
		       AVG(d.rainfall),
		       AVG(d.max_temp),
		       AVG(d.min_temp)
		FROM rainfall_data_daily d
		JOIN station s ON s.station_id = d.station_id
		WHERE s.sa4_code = $1
		GROUP BY s.sa4_code, EXTRACT(YEAR FROM d.date), EXTRACT(MONTH FROM d.date)
		ORDER BY year ASC, month ASC
	`

	if _, err := r.db.ExecContext(ctx, "rebuild_region_monthly", query, sa4Code); err != nil {
		return fmt.Errorf("failed to rebuild monthly aggregates for %s: %w", sa4Code, err)
	}

	return nil
}

// RebuildRegionYearly computes one region's yearly means from raw daily rows.
func (r *aggregateRepository) RebuildRegionYearly(ctx context.Context, sa4Code string) error {
	query := `
		INSERT INTO sa4_rainfall_yearly (sa4_code, year, rainfall, max_temp, min_temp)
		SELECT s.sa4_code,
		       EXTRACT(YEAR FROM d.date)::int AS year,
		       AVG(d.rainfall),
		       AVG(d.max_temp),
		       AVG(d.min_temp)
		FROM rainfall_data_daily d
		JOIN station s ON s.station_id = d.station_id
		WHERE s.sa4_code = $1
		GROUP BY s.sa4_code, EXTRACT(YEAR FROM d.date)
		ORDER BY year ASC
	`

	if _, err := r.db.ExecContext(ctx, "rebuild_region_yearly", query, sa4Code); err != nil {
		return fmt.Errorf("failed to rebuild yearly aggregates for %s: %w", sa4Code, err)
	}

	return nil
}

// GetRegionMonthlySeries returns a region's full monthly series ordered by
// (year, month) ascending.
func (r *aggregateRepository) GetRegionMonthlySeries(ctx context.Context, sa4Code string) ([]*models.RegionMonthlyAggregate, error) {
	query := `
		SELECT sa4_code, year, month, rainfall, max_temp, min_temp
		FROM sa4_rainfall_monthly
		WHERE sa4_code = $1
		ORDER BY year ASC, month ASC
	`

	var aggregates []*models.RegionMonthlyAggregate
	if err := r.db.SelectContext(ctx, "get_region_monthly", &aggregates, query, sa4Code); err != nil {
		return nil, fmt.Errorf("failed to get region monthly series: %w", err)
	}

	return aggregates, nil
}

// GetMonthlyForPeriod returns every region's aggregate for one (year, month),
// ordered by region code ascending.
func (r *aggregateRepository) GetMonthlyForPeriod(ctx context.Context, year, month int) ([]*models.RegionMonthlyAggregate, error) {
	query := `
		SELECT sa4_code, year, month, rainfall, max_temp, min_temp
		FROM sa4_rainfall_monthly
		WHERE year = $1 AND month = $2
		ORDER BY sa4_code ASC
	`

	var aggregates []*models.RegionMonthlyAggregate
	if err := r.db.SelectContext(ctx, "get_monthly_for_period", &aggregates, query, year, month); err != nil {
		return nil, fmt.Errorf("failed to get monthly aggregates: %w", err)
	}

	return aggregates, nil
}

// GetYearlyForYear returns every region's aggregate for one year, ordered by
// region code ascending.
func (r *aggregateRepository) GetYearlyForYear(ctx context.Context, year int) ([]*models.RegionYearlyAggregate, error) {
	query := `
		SELECT sa4_code, year, rainfall, max_temp, min_temp
		FROM sa4_rainfall_yearly
		WHERE year = $1
		ORDER BY sa4_code ASC
	`

	var aggregates []*models.RegionYearlyAggregate
	if err := r.db.SelectContext(ctx, "get_yearly_for_year", &aggregates, query, year); err != nil {
		return nil, fmt.Errorf("failed to get yearly aggregates: %w", err)
	}

	return aggregates, nil
}
