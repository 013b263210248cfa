package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"weather-explorer/internal/repository"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// Engine rebuilds the materialized regional rollup tables from the raw
// observation store.
//
// The rebuild is truncate-and-recompute, never incremental, which keeps it
// idempotent but means new daily data does not refresh existing aggregates:
// a populated table short-circuits the run unless Force is set.
type Engine struct {
	regions    repository.RegionRepository
	aggregates repository.AggregateRepository
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	clock      clockwork.Clock

	// regionPause bounds sustained load on the storage backend between
	// per-region statements.
	regionPause time.Duration
}

// NewEngine creates a new aggregation engine
func NewEngine(
	regions repository.RegionRepository,
	aggregates repository.AggregateRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	clock clockwork.Clock,
	regionPause time.Duration,
) *Engine {
	return &Engine{
		regions:     regions,
		aggregates:  aggregates,
		logger:      logger,
		metrics:     metricsCollector,
		clock:       clock,
		regionPause: regionPause,
	}
}

// RunOptions controls a rebuild run.
type RunOptions struct {
	// Force truncates the aggregate tables before rebuilding. Without it a
	// populated table is treated as "already built" and the run is a no-op.
	Force bool
}

// RunResult summarizes a rebuild run.
type RunResult struct {
	Skipped       bool
	RegionsTotal  int
	RegionsBuilt  int
	RegionsFailed int
	Duration      time.Duration
}

// Run rebuilds the regional monthly and yearly aggregates, one region at a
// time in region-code order. A failure in one region is logged and skipped;
// the run continues with the next region. The engine holds no cross-region
// transaction, so completed regions survive a crash mid-run (at-least-once
// rebuild semantics).
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := e.clock.Now()

	count, err := e.aggregates.AggregateCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("existence check failed: %w", err)
	}

	if count > 0 {
		if !opts.Force {
			e.logger.Info(ctx, "[AGG_SKIP] Aggregate tables already populated, skipping rebuild", logging.Fields{
				"existing_rows": count,
			})
			return &RunResult{Skipped: true}, nil
		}

		if err := e.aggregates.TruncateAggregates(ctx); err != nil {
			return nil, fmt.Errorf("forced rebuild truncate failed: %w", err)
		}
	}

	regions, err := e.regions.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	result := &RunResult{RegionsTotal: len(regions)}

	e.logger.Info(ctx, "[AGG_START] Starting regional rollup rebuild", logging.Fields{
		"region_count": len(regions),
		"forced":       opts.Force,
	})

	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := e.rebuildRegion(ctx, region.SA4Code); err != nil {
			result.RegionsFailed++
			e.metrics.RegionsFailedTotal.Inc()
			e.logger.Error(ctx, "[AGG_REGION_ERROR] Region rollup failed, continuing", logging.Fields{
				"sa4_code": region.SA4Code,
			}, err)
			continue
		}

		result.RegionsBuilt++
		e.metrics.RegionsAggregatedTotal.Inc()

		if e.regionPause > 0 && i < len(regions)-1 {
			e.clock.Sleep(e.regionPause)
		}
	}

	result.Duration = e.clock.Since(start)

	e.logger.Info(ctx, "[AGG_COMPLETE] Regional rollup rebuild completed", logging.Fields{
		"regions_total":    result.RegionsTotal,
		"regions_built":    result.RegionsBuilt,
		"regions_failed":   result.RegionsFailed,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}

func (e *Engine) rebuildRegion(ctx context.Context, sa4Code string) error {
	timer := e.clock.Now()
	defer func() {
		e.metrics.RegionRollupDuration.Observe(e.clock.Since(timer).Seconds())
	}()

	if err := e.aggregates.RebuildRegionMonthly(ctx, sa4Code); err != nil {
		return err
	}
	return e.aggregates.RebuildRegionYearly(ctx, sa4Code)
}
