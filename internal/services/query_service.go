package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weather-explorer/internal/aggregation"
	"weather-explorer/internal/models"
	"weather-explorer/internal/repository"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// Frequency is the time-bucket granularity of an aggregated query.
type Frequency string

// Supported aggregation frequencies
const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// ParseFrequency validates a frequency path segment.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyMonthly, FrequencyYearly:
		return Frequency(s), nil
	default:
		return "", &models.ValidationError{
			Field:   "frequency",
			Value:   s,
			Message: "frequency must be monthly or yearly",
		}
	}
}

// Metric selects which value columns an aggregated query returns.
type Metric string

// Supported query metrics. MetricAll is the unexported default when no
// data_type filter is supplied; MetricBothTemps returns both temperature
// columns together.
const (
	MetricRainfall  Metric = "rainfall"
	MetricMinTemp   Metric = "min_temp"
	MetricMaxTemp   Metric = "max_temp"
	MetricBothTemps Metric = "both_temps"
	MetricAll       Metric = ""
)

// ParseMetric validates a data_type query parameter. The empty string is
// valid and means "all metrics".
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricRainfall, MetricMinTemp, MetricMaxTemp, MetricBothTemps, MetricAll:
		return Metric(s), nil
	default:
		return "", &models.ValidationError{
			Field:   "data_type",
			Value:   s,
			Message: "data_type must be one of rainfall, min_temp, max_temp, both_temps",
		}
	}
}

// AggregatedPoint is one bucket of an aggregated station series. Month is
// nil for yearly buckets. Metric fields not selected by the query are nil.
type AggregatedPoint struct {
	Year     int      `json:"year"`
	Month    *int     `json:"month,omitempty"`
	Rainfall *float64 `json:"rainfall,omitempty"`
	MinTemp  *float64 `json:"min_temp,omitempty"`
	MaxTemp  *float64 `json:"max_temp,omitempty"`
}

// QueryService answers point, range, and aggregated lookups against raw and
// materialized data. It is read-only and stateless; concurrent queries need
// no coordination beyond the storage backend's isolation.
type QueryService struct {
	stations     repository.StationRepository
	observations repository.ObservationRepository
	rollups      repository.RollupRepository
	aggregates   repository.AggregateRepository
	regions      repository.RegionRepository
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewQueryService creates a new query service
func NewQueryService(
	stations repository.StationRepository,
	observations repository.ObservationRepository,
	rollups repository.RollupRepository,
	aggregates repository.AggregateRepository,
	regions repository.RegionRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *QueryService {
	return &QueryService{
		stations:     stations,
		observations: observations,
		rollups:      rollups,
		aggregates:   aggregates,
		regions:      regions,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// searchLimit caps station search results.
const searchLimit = 10

// SearchStations matches up to 10 stations by id, name, or state, exact
// numeric-id matches first.
func (s *QueryService) SearchStations(ctx context.Context, term string) ([]*models.Station, error) {
	return s.stations.SearchStations(ctx, term, searchLimit)
}

// GetStation retrieves one station by id.
func (s *QueryService) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	return s.stations.GetStation(ctx, stationID)
}

// GetDailyObservation returns the observation for one (station, date). A
// missing row is a valid outcome represented as a row of nulls, not an error
// and not a 404.
func (s *QueryService) GetDailyObservation(ctx context.Context, stationID string, date time.Time) (*models.DailyObservation, error) {
	obs, err := s.observations.GetObservation(ctx, stationID, date)

	var notFound *models.NotFoundError
	if errors.As(err, &notFound) {
		return &models.DailyObservation{
			StationID: models.PadStationID(stationID),
			Date:      date,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return obs, nil
}

// GetDailyRange returns daily rows for an inclusive range ordered by date
// ascending. A station with no rows in range yields an empty result.
func (s *QueryService) GetDailyRange(ctx context.Context, stationID string, start, end time.Time) ([]*models.DailyObservation, error) {
	if end.Before(start) {
		return nil, &models.ValidationError{
			Field:   "end_date",
			Value:   end.Format("2006-01-02"),
			Message: "end date precedes start date",
		}
	}
	return s.observations.GetObservationsRange(ctx, stationID, start, end)
}

// GetAggregatedSeries returns the materialized monthly or yearly series for
// a station over an inclusive range, with the metric filter applied.
func (s *QueryService) GetAggregatedSeries(ctx context.Context, stationID string, freq Frequency, start, end time.Time, metric Metric) ([]*AggregatedPoint, error) {
	if end.Before(start) {
		return nil, &models.ValidationError{
			Field:   "end_date",
			Value:   end.Format("2006-01-02"),
			Message: "end date precedes start date",
		}
	}

	switch freq {
	case FrequencyMonthly:
		rollups, err := s.rollups.GetStationMonthlySeries(ctx, stationID, start, end)
		if err != nil {
			return nil, err
		}
		points := make([]*AggregatedPoint, 0, len(rollups))
		for _, rollup := range rollups {
			month := rollup.Month
			points = append(points, filterPoint(&AggregatedPoint{
				Year:     rollup.Year,
				Month:    &month,
				Rainfall: rollup.Rainfall,
				MinTemp:  rollup.AvgMinTemp,
				MaxTemp:  rollup.AvgMaxTemp,
			}, metric))
		}
		return points, nil

	case FrequencyYearly:
		rollups, err := s.rollups.GetStationYearlySeries(ctx, stationID, start, end)
		if err != nil {
			return nil, err
		}
		points := make([]*AggregatedPoint, 0, len(rollups))
		for _, rollup := range rollups {
			points = append(points, filterPoint(&AggregatedPoint{
				Year:     rollup.Year,
				Rainfall: rollup.Rainfall,
				MinTemp:  rollup.AvgMinTemp,
				MaxTemp:  rollup.AvgMaxTemp,
			}, metric))
		}
		return points, nil

	default:
		return nil, &models.ValidationError{
			Field:   "frequency",
			Value:   string(freq),
			Message: "frequency must be monthly or yearly",
		}
	}
}

// filterPoint blanks the metric columns the query did not select.
// both_temps means the metric filter is not applied to temperatures: both
// columns come back together, rainfall is dropped.
func filterPoint(point *AggregatedPoint, metric Metric) *AggregatedPoint {
	switch metric {
	case MetricRainfall:
		point.MinTemp = nil
		point.MaxTemp = nil
	case MetricMinTemp:
		point.Rainfall = nil
		point.MaxTemp = nil
	case MetricMaxTemp:
		point.Rainfall = nil
		point.MinTemp = nil
	case MetricBothTemps:
		point.Rainfall = nil
	}
	return point
}

// GetStationPeriodStats computes the extended rollup for a station over an
// inclusive range from raw daily rows.
func (s *QueryService) GetStationPeriodStats(ctx context.Context, stationID string, start, end time.Time) (*models.StationPeriodStats, error) {
	if end.Before(start) {
		return nil, &models.ValidationError{
			Field:   "end_date",
			Value:   end.Format("2006-01-02"),
			Message: "end date precedes start date",
		}
	}

	timer := time.Now()
	defer func() {
		s.metrics.StatsCalculationDuration.Observe(time.Since(timer).Seconds())
	}()

	observations, err := s.observations.GetObservationsRange(ctx, stationID, start, end)
	if err != nil {
		return nil, err
	}

	return aggregation.ComputePeriodStats(models.PadStationID(stationID), start, end, observations), nil
}

// GetRegionSeries returns a region's full monthly aggregate series.
func (s *QueryService) GetRegionSeries(ctx context.Context, sa4Code string) ([]*models.RegionMonthlyAggregate, error) {
	return s.aggregates.GetRegionMonthlySeries(ctx, sa4Code)
}

// GetRegionsForMonth returns every region's aggregate for one month.
func (s *QueryService) GetRegionsForMonth(ctx context.Context, year, month int) ([]*models.RegionMonthlyAggregate, error) {
	if month < 1 || month > 12 {
		return nil, &models.ValidationError{
			Field:   "month",
			Value:   fmt.Sprintf("%d", month),
			Message: "month must be between 1 and 12",
		}
	}
	return s.aggregates.GetMonthlyForPeriod(ctx, year, month)
}

// GetRegionsForYear returns every region's yearly aggregate for one year.
func (s *QueryService) GetRegionsForYear(ctx context.Context, year int) ([]*models.RegionYearlyAggregate, error) {
	return s.aggregates.GetYearlyForYear(ctx, year)
}

// ListRegions returns all SA4 boundaries with geometry.
func (s *QueryService) ListRegions(ctx context.Context) ([]*models.Region, error) {
	return s.regions.ListRegions(ctx)
}

// GetRegion returns one SA4 boundary with geometry.
func (s *QueryService) GetRegion(ctx context.Context, sa4Code string) (*models.Region, error) {
	return s.regions.GetRegion(ctx, sa4Code)
}

// RegionSummaries lists every region with its station count; zero-station
// regions are included.
func (s *QueryService) RegionSummaries(ctx context.Context) ([]*models.RegionSummary, error) {
	return s.regions.RegionSummaries(ctx)
}

// StationsInRegion lists a region's stations. With a date, only stations
// whose operating year range covers that date's year are returned.
func (s *QueryService) StationsInRegion(ctx context.Context, sa4Code string, date *time.Time) ([]*models.Station, error) {
	var year *int
	if date != nil {
		y := date.Year()
		year = &y
	}
	return s.stations.StationsInRegion(ctx, sa4Code, year)
}
