package repository

import (
	"context"
	"database/sql"
	"fmt"

	"weather-explorer/internal/models"
	"weather-explorer/pkg/database"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// RegionRepository provides data access for SA4 boundary reference data
type RegionRepository interface {
	UpsertRegions(ctx context.Context, regions []*models.Region) error
	GetRegion(ctx context.Context, sa4Code string) (*models.Region, error)
	ListRegions(ctx context.Context) ([]*models.Region, error)
	RegionSummaries(ctx context.Context) ([]*models.RegionSummary, error)
}

type regionRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRegionRepository creates a new region repository
func NewRegionRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) RegionRepository {
	return &regionRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// UpsertRegions loads the boundary reference set. Boundaries are immutable
// in practice; the upsert only matters for re-imports of a corrected file.
func (r *regionRepository) UpsertRegions(ctx context.Context, regions []*models.Region) error {
	if len(regions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sa4_boundaries (sa4_code21, sa4_name21, state_name21, area_sqkm, geometry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sa4_code21) DO UPDATE SET
			sa4_name21 = EXCLUDED.sa4_name21,
			state_name21 = EXCLUDED.state_name21,
			area_sqkm = EXCLUDED.area_sqkm,
			geometry = EXCLUDED.geometry
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, region := range regions {
		_, err := stmt.ExecContext(ctx,
			region.SA4Code,
			region.Name,
			region.StateName,
			region.AreaSqKm,
			[]byte(region.Geometry),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert region %s: %w", region.SA4Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info(ctx, "[REPO_REGIONS_LOADED] Boundary reference data loaded", logging.Fields{
		"count": len(regions),
	})

	return nil
}

// GetRegion retrieves a single boundary with geometry
func (r *regionRepository) GetRegion(ctx context.Context, sa4Code string) (*models.Region, error) {
	query := `
		SELECT sa4_code21, sa4_name21, state_name21, area_sqkm, geometry
		FROM sa4_boundaries
		WHERE sa4_code21 = $1
	`

	var region models.Region
	err := r.db.GetContext(ctx, "get_region", &region, query, sa4Code)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "region", ID: sa4Code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get region: %w", err)
	}

	return &region, nil
}

// ListRegions retrieves all boundaries ordered by region code ascending. The
// aggregation engine iterates this order, so cross-region output ordering
// follows from it.
func (r *regionRepository) ListRegions(ctx context.Context) ([]*models.Region, error) {
	query := `
		SELECT sa4_code21, sa4_name21, state_name21, area_sqkm, geometry
		FROM sa4_boundaries
		ORDER BY sa4_code21 ASC
	`

	var regions []*models.Region
	if err := r.db.SelectContext(ctx, "list_regions", &regions, query); err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	return regions, nil
}

// RegionSummaries returns every region with its station count. The left join
// keeps zero-station regions in the listing.
func (r *regionRepository) RegionSummaries(ctx context.Context) ([]*models.RegionSummary, error) {
	query := `
		SELECT b.sa4_code21, b.sa4_name21, b.state_name21,
		       COUNT(s.station_id) AS station_count
		FROM sa4_boundaries b
		LEFT JOIN station s ON s.sa4_code = b.sa4_code21
		GROUP BY b.sa4_code21, b.sa4_name21, b.state_name21
		ORDER BY b.sa4_code21 ASC
	`

	var summaries []*models.RegionSummary
	if err := r.db.SelectContext(ctx, "region_summaries", &summaries, query); err != nil {
		return nil, fmt.Errorf("failed to summarize regions: %w", err)
	}

	return summaries, nil
}
