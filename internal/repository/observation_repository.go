package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"weather-explorer/internal/models"
	"weather-explorer/pkg/database"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// ObservationRepository provides data access for the raw observation store
type ObservationRepository interface {
	UpsertObservationsBatch(ctx context.Context, observations []*models.DailyObservation, cols models.MetricColumns) error
	GetObservation(ctx context.Context, stationID string, date time.Time) (*models.DailyObservation, error)
	GetObservationsRange(ctx context.Context, stationID string, start, end time.Time) ([]*models.DailyObservation, error)
}

type observationRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ObservationRepository {
	return &observationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// observationConflictClause builds the conflict action for a daily upsert.
// Only the columns the source product carries are updated: a temperature
// file must not null out rainfall already stored for the same dates, and
// vice versa.
func observationConflictClause(cols models.MetricColumns) string {
	updates := make([]string, 0, 3)
	if cols.Rainfall {
		updates = append(updates, "rainfall = EXCLUDED.rainfall")
	}
	if cols.MinTemp {
		updates = append(updates, "min_temp = EXCLUDED.min_temp")
	}
	if cols.MaxTemp {
		updates = append(updates, "max_temp = EXCLUDED.max_temp")
	}
	if len(updates) == 0 {
		return "ON CONFLICT (station_id, date) DO NOTHING"
	}
	return "ON CONFLICT (station_id, date) DO UPDATE SET " + strings.Join(updates, ", ")
}

// UpsertObservationsBatch writes a batch as a single multi-row parameterized
// upsert inside one transaction. The batch either fully commits or fully
// rolls back; callers retry whole batches, never partial ones. On conflict
// only the columns in cols are overwritten.
func (r *observationRepository) UpsertObservationsBatch(ctx context.Context, observations []*models.DailyObservation, cols models.MetricColumns) error {
	if len(observations) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Batch upsert completed", logging.Fields{
			"count":       len(observations),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO rainfall_data_daily (station_id, date, rainfall, min_temp, max_temp, created_at)
		VALUES `)

	args := make([]interface{}, 0, len(observations)*6)
	for i, obs := range observations {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, obs.StationID, obs.Date, obs.Rainfall, obs.MinTemp, obs.MaxTemp, obs.CreatedAt)
	}

	sb.WriteString("\n\t\t")
	sb.WriteString(observationConflictClause(cols))

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert observation batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(observations)))

	return nil
}

// GetObservation retrieves a single (station, date) row. A missing row is a
// NotFoundError, which callers surface as explicit nulls rather than a 404.
func (r *observationRepository) GetObservation(ctx context.Context, stationID string, date time.Time) (*models.DailyObservation, error) {
	query := `
		SELECT station_id, date, rainfall, min_temp, max_temp, created_at
		FROM rainfall_data_daily
		WHERE station_id = $1 AND date = $2
	`

	var obs models.DailyObservation
	err := r.db.GetContext(ctx, "get_observation", &obs, query, models.PadStationID(stationID), date)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{
			Resource: "observation",
			ID:       fmt.Sprintf("%s:%s", stationID, date.Format("2006-01-02")),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}

	return &obs, nil
}

// GetObservationsRange retrieves daily rows for an inclusive date range,
// ordered by date ascending. No rows in range is an empty result, not an
// error.
func (r *observationRepository) GetObservationsRange(ctx context.Context, stationID string, start, end time.Time) ([]*models.DailyObservation, error) {
	query := `
		SELECT station_id, date, rainfall, min_temp, max_temp, created_at
		FROM rainfall_data_daily
		WHERE station_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	var observations []*models.DailyObservation
	err := r.db.SelectContext(ctx, "get_observations_range", &observations, query,
		models.PadStationID(stationID), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}

	return observations, nil
}
