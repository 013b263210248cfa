package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"weather-explorer/internal/aggregation"
	"weather-explorer/internal/models"
	"weather-explorer/internal/repository"
	"weather-explorer/internal/spatial"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// Options holds ingestion tuning knobs.
type Options struct {
	BatchSize  int
	Split      SplitOptions
	MaxWorkers int
}

// Pipeline is the bulk ingestion pipeline: it parses external station
// rosters, daily observation CSVs, and boundary files, and loads them with
// idempotent upserts.
type Pipeline struct {
	stations     repository.StationRepository
	observations repository.ObservationRepository
	rollups      repository.RollupRepository
	regions      repository.RegionRepository
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
	clock        clockwork.Clock
	opts         Options
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(
	stations repository.StationRepository,
	observations repository.ObservationRepository,
	rollups repository.RollupRepository,
	regions repository.RegionRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	clock clockwork.Clock,
	opts Options,
) *Pipeline {
	return &Pipeline{
		stations:     stations,
		observations: observations,
		rollups:      rollups,
		regions:      regions,
		logger:       logger,
		metrics:      metricsCollector,
		clock:        clock,
		opts:         opts,
	}
}

// RosterIngestResult reports a station roster import.
type RosterIngestResult struct {
	StationsUpserted int
	LinesSkipped     int
}

// IngestRoster parses a fixed-width station roster file and upserts every
// parseable station. Unparseable lines are logged and skipped, never fatal.
func (p *Pipeline) IngestRoster(ctx context.Context, path string) (*RosterIngestResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer file.Close()

	parsed, err := ParseRoster(file, p.clock, func(lineNo int, line string, parseErr error) {
		p.metrics.RecordSkippedLine("roster")
		p.logger.Warn(ctx, "[INGEST_ROSTER_SKIP] Unparseable roster line skipped", logging.Fields{
			"line_no": lineNo,
			"line":    line,
			"reason":  parseErr.Error(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	if err := p.stations.UpsertStationsBatch(ctx, parsed.Stations); err != nil {
		return nil, fmt.Errorf("failed to upsert roster stations: %w", err)
	}

	p.logger.Info(ctx, "[INGEST_ROSTER_COMPLETE] Station roster imported", logging.Fields{
		"stations": len(parsed.Stations),
		"skipped":  parsed.SkippedLines,
	})

	return &RosterIngestResult{
		StationsUpserted: len(parsed.Stations),
		LinesSkipped:     parsed.SkippedLines,
	}, nil
}

// IngestBoundaries loads a shapefile-derived SA4 boundary GeoJSON file.
func (p *Pipeline) IngestBoundaries(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open boundaries: %w", err)
	}
	defer file.Close()

	regions, err := spatial.ParseBoundaries(file)
	if err != nil {
		return 0, fmt.Errorf("failed to parse boundaries: %w", err)
	}

	if err := p.regions.UpsertRegions(ctx, regions); err != nil {
		return 0, fmt.Errorf("failed to load boundaries: %w", err)
	}

	return len(regions), nil
}

// ResolveResult reports the spatial join pass.
type ResolveResult struct {
	StationsTotal    int
	StationsMatched  int
	StationsOffshore int
}

// ResolveRegions performs the one-time spatial join: every station's
// coordinate is resolved to its containing SA4 polygon and the result cached
// on the catalog row. A station outside every polygon gets an explicit null
// region, not an error.
func (p *Pipeline) ResolveRegions(ctx context.Context) (*ResolveResult, error) {
	regions, err := p.regions.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	index, err := spatial.NewIndex(regions)
	if err != nil {
		return nil, fmt.Errorf("failed to build spatial index: %w", err)
	}

	stations, err := p.stations.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}

	result := &ResolveResult{StationsTotal: len(stations)}

	for _, station := range stations {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		code, ok := index.Resolve(station.Longitude, station.Latitude)
		p.metrics.RecordSpatialResolution(ok)

		var sa4Code *string
		if ok {
			sa4Code = &code
			result.StationsMatched++
		} else {
			result.StationsOffshore++
		}

		if err := p.stations.UpdateStationRegion(ctx, station.StationID, sa4Code); err != nil {
			return result, fmt.Errorf("failed to cache region for %s: %w", station.StationID, err)
		}
	}

	p.logger.Info(ctx, "[INGEST_RESOLVE_COMPLETE] Spatial join completed", logging.Fields{
		"stations_total":    result.StationsTotal,
		"stations_matched":  result.StationsMatched,
		"stations_offshore": result.StationsOffshore,
	})

	return result, nil
}

// DailyIngestResult reports a daily data directory import.
type DailyIngestResult struct {
	TotalFiles    int
	RowsInserted  int
	RowsFailed    int
	LinesSkipped  int
	BatchRetries  int
	BatchSplits   int
	FailedFiles   int
	Duration      time.Duration
	Errors        []string
}

// IngestDailyDir ingests every per-station daily CSV in a directory. Files
// are processed concurrently up to MaxWorkers in flight; a failure in one
// file is recorded and does not abort the run.
func (p *Pipeline) IngestDailyDir(ctx context.Context, dataDir string) (*DailyIngestResult, error) {
	startTime := p.clock.Now()

	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no daily data files found in %s", dataDir)
	}

	result := &DailyIngestResult{TotalFiles: len(files)}

	p.logger.Info(ctx, "[INGEST_DAILY_START] Starting daily data ingestion", logging.Fields{
		"file_count":  len(files),
		"batch_size":  p.opts.BatchSize,
		"max_workers": p.opts.MaxWorkers,
	})

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, p.opts.MaxWorkers)
	)

	for _, filePath := range files {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(filePath string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			fileOutcome, err := p.ingestDailyFile(ctx, filePath)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.FailedFiles++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(filePath), err))
				p.metrics.RecordIngestionError("file_error")
				p.logger.Error(ctx, "[INGEST_FILE_ERROR] Daily file ingestion failed", logging.Fields{
					"file_path": filePath,
				}, err)
				return
			}

			result.RowsInserted += fileOutcome.Inserted
			result.RowsFailed += fileOutcome.Failed
			result.LinesSkipped += fileOutcome.LinesSkipped
			result.BatchRetries += fileOutcome.Retries
			result.BatchSplits += fileOutcome.Splits
		}(filePath)
	}

	wg.Wait()

	result.Duration = p.clock.Since(startTime)
	p.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	p.logger.Info(ctx, "[INGEST_DAILY_COMPLETE] Daily data ingestion completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"failed_files":     result.FailedFiles,
		"rows_inserted":    result.RowsInserted,
		"rows_failed":      result.RowsFailed,
		"lines_skipped":    result.LinesSkipped,
		"batch_retries":    result.BatchRetries,
		"batch_splits":     result.BatchSplits,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}

type fileOutcome struct {
	Inserted     int
	Failed       int
	LinesSkipped int
	Retries      int
	Splits       int
}

// ingestDailyFile parses one station file, upserts its rows in fixed-size
// batches, and refreshes the station's materialized monthly/yearly rollups
// from the parsed data.
func (p *Pipeline) ingestDailyFile(ctx context.Context, filePath string) (*fileOutcome, error) {
	stationID, err := StationIDFromFilename(filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	outcome := &fileOutcome{}

	observations, cols, err := ParseDailyCSV(file, stationID, p.clock, func(lineNo int, parseErr error) {
		outcome.LinesSkipped++
		p.metrics.RecordSkippedLine("daily")
		p.logger.Warn(ctx, "[INGEST_DAILY_SKIP] Unparseable daily row skipped", logging.Fields{
			"file_path": filePath,
			"line_no":   lineNo,
			"reason":    parseErr.Error(),
		})
	})
	if err != nil {
		return nil, err
	}

	// Each product file updates only the columns it carries, so a
	// temperature import cannot null out stored rainfall for the same dates.
	insert := func(ctx context.Context, batch []*models.DailyObservation) error {
		return p.observations.UpsertObservationsBatch(ctx, batch, cols)
	}

	var abandoned map[*models.DailyObservation]struct{}

	for start := 0; start < len(observations); start += p.opts.BatchSize {
		end := start + p.opts.BatchSize
		if end > len(observations) {
			end = len(observations)
		}

		split := InsertWithSplit(ctx, observations[start:end], p.opts.Split, insert)
		outcome.Inserted += split.Inserted
		outcome.Failed += split.Failed
		outcome.Retries += split.Retries
		outcome.Splits += split.Splits

		for _, row := range split.FailedRows {
			if abandoned == nil {
				abandoned = make(map[*models.DailyObservation]struct{})
			}
			abandoned[row] = struct{}{}
		}

		for i := 0; i < split.Retries; i++ {
			p.metrics.BatchRetriesTotal.Inc()
		}
		for i := 0; i < split.Splits; i++ {
			p.metrics.BatchSplitsTotal.Inc()
		}
		for _, splitErr := range split.Errors {
			p.metrics.RecordIngestionError("batch_error")
			p.logger.Warn(ctx, "[INGEST_BATCH_ROW_FAILED] Row abandoned after batch splitting", logging.Fields{
				"file_path": filePath,
				"reason":    splitErr.Error(),
			})
		}
	}

	// Rollups materialize from the rows the daily store accepted; rows the
	// splitter abandoned must not leak values into the monthly/yearly series.
	committed := observations
	if len(abandoned) > 0 {
		committed = make([]*models.DailyObservation, 0, len(observations)-len(abandoned))
		for _, obs := range observations {
			if _, failed := abandoned[obs]; !failed {
				committed = append(committed, obs)
			}
		}
	}

	if err := p.rollups.UpsertStationMonthly(ctx, aggregation.RollupMonthly(stationID, committed), cols); err != nil {
		return outcome, fmt.Errorf("failed to materialize monthly rollups: %w", err)
	}
	if err := p.rollups.UpsertStationYearly(ctx, aggregation.RollupYearly(stationID, committed), cols); err != nil {
		return outcome, fmt.Errorf("failed to materialize yearly rollups: %w", err)
	}

	return outcome, nil
}
