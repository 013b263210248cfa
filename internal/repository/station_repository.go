package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"weather-explorer/internal/models"
	"weather-explorer/pkg/database"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// StationRepository provides data access for the station catalog
type StationRepository interface {
	UpsertStation(ctx context.Context, station *models.Station) error
	UpsertStationsBatch(ctx context.Context, stations []*models.Station) error
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
	SearchStations(ctx context.Context, term string, limit int) ([]*models.Station, error)
	ListStations(ctx context.Context) ([]*models.Station, error)
	UpdateStationRegion(ctx context.Context, stationID string, sa4Code *string) error
	StationsInRegion(ctx context.Context, sa4Code string, year *int) ([]*models.Station, error)
}

type stationRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) StationRepository {
	return &stationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const stationColumns = `station_id, station_name, latitude, longitude, station_height,
	       station_state, station_start_year, station_end_year, sa4_code,
	       created_at, updated_at`

const upsertStationSQL = `
	INSERT INTO station (
		station_id, station_name, latitude, longitude, station_height,
		station_state, station_start_year, station_end_year, sa4_code,
		created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (station_id) DO UPDATE SET
		station_name = EXCLUDED.station_name,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		station_height = EXCLUDED.station_height,
		station_state = EXCLUDED.station_state,
		station_start_year = EXCLUDED.station_start_year,
		station_end_year = EXCLUDED.station_end_year,
		sa4_code = COALESCE(EXCLUDED.sa4_code, station.sa4_code),
		updated_at = EXCLUDED.updated_at
`

// UpsertStation inserts or updates a station by its natural key. Stations are
// never deleted, only overwritten on re-import.
func (r *stationRepository) UpsertStation(ctx context.Context, station *models.Station) error {
	_, err := r.db.ExecContext(ctx, "upsert_station", upsertStationSQL,
		station.StationID,
		station.Name,
		station.Latitude,
		station.Longitude,
		station.Height,
		station.State,
		station.StartYear,
		station.EndYear,
		station.SA4Code,
		station.CreatedAt,
		station.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", station.StationID, err)
	}
	return nil
}

// UpsertStationsBatch upserts a roster batch inside one transaction.
func (r *stationRepository) UpsertStationsBatch(ctx context.Context, stations []*models.Station) error {
	if len(stations) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertStationSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, station := range stations {
		_, err := stmt.ExecContext(ctx,
			station.StationID,
			station.Name,
			station.Latitude,
			station.Longitude,
			station.Height,
			station.State,
			station.StartYear,
			station.EndYear,
			station.SA4Code,
			station.CreatedAt,
			station.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert station %s: %w", station.StationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetStation retrieves a station by ID
func (r *stationRepository) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	query := `SELECT ` + stationColumns + ` FROM station WHERE station_id = $1`

	var station models.Station
	err := r.db.GetContext(ctx, "get_station", &station, query, models.PadStationID(stationID))

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "station", ID: stationID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}

	return &station, nil
}

// SearchStations matches stations by id, name, or state. An exact numeric id
// match sorts first; the remainder order by station id ascending.
func (r *stationRepository) SearchStations(ctx context.Context, term string, limit int) ([]*models.Station, error) {
	term = strings.TrimSpace(term)

	exactID := ""
	if _, err := strconv.Atoi(term); err == nil && term != "" {
		exactID = models.PadStationID(term)
	}

	query := `
		SELECT ` + stationColumns + `
		FROM station
		WHERE station_id ILIKE $1
		   OR station_name ILIKE $1
		   OR station_state ILIKE $2
		ORDER BY (station_id = $3) DESC, station_id ASC
		LIMIT $4
	`

	var stations []*models.Station
	err := r.db.SelectContext(ctx, "search_stations", &stations, query,
		"%"+term+"%", term, exactID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search stations: %w", err)
	}

	return stations, nil
}

// ListStations retrieves the full catalog ordered by station id
func (r *stationRepository) ListStations(ctx context.Context) ([]*models.Station, error) {
	query := `SELECT ` + stationColumns + ` FROM station ORDER BY station_id`

	var stations []*models.Station
	if err := r.db.SelectContext(ctx, "list_stations", &stations, query); err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}

	return stations, nil
}

// UpdateStationRegion caches the result of the one-time spatial join. A nil
// code records an explicit absence (offshore station), not an error.
func (r *stationRepository) UpdateStationRegion(ctx context.Context, stationID string, sa4Code *string) error {
	query := `UPDATE station SET sa4_code = $2, updated_at = $3 WHERE station_id = $1`

	_, err := r.db.ExecContext(ctx, "update_station_region", query,
		models.PadStationID(stationID), sa4Code, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update station region: %w", err)
	}

	return nil
}

// StationsInRegion lists the stations owned by a region. When year is set,
// only stations whose operating range covers it are returned.
func (r *stationRepository) StationsInRegion(ctx context.Context, sa4Code string, year *int) ([]*models.Station, error) {
	query := `SELECT ` + stationColumns + ` FROM station WHERE sa4_code = $1`
	args := []interface{}{sa4Code}

	if year != nil {
		query += ` AND station_start_year <= $2 AND station_end_year >= $2`
		args = append(args, *year)
	}

	query += ` ORDER BY station_id`

	var stations []*models.Station
	if err := r.db.SelectContext(ctx, "stations_in_region", &stations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list stations in region: %w", err)
	}

	return stations, nil
}
