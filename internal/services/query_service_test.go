package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-explorer/internal/models"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

// Shared across tests: prometheus collectors register globally, so the
// package gets exactly one.
var testMetrics = metrics.NewCollector("query_service_test")

func testLogger() *logging.StructuredLogger {
	return logging.NewStructuredLogger("query-service-test", "test", "error")
}

func f(v float64) *float64 {
	return &v
}

type fakeStationRepo struct {
	stations  []*models.Station
	inRegion  []*models.Station
	yearArg   *int
	searchArg string
	limitArg  int
}

func (r *fakeStationRepo) UpsertStation(ctx context.Context, station *models.Station) error {
	return nil
}

func (r *fakeStationRepo) UpsertStationsBatch(ctx context.Context, stations []*models.Station) error {
	return nil
}

func (r *fakeStationRepo) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	for _, s := range r.stations {
		if s.StationID == stationID {
			return s, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "station", ID: stationID}
}

func (r *fakeStationRepo) SearchStations(ctx context.Context, term string, limit int) ([]*models.Station, error) {
	r.searchArg = term
	r.limitArg = limit
	return r.stations, nil
}

func (r *fakeStationRepo) ListStations(ctx context.Context) ([]*models.Station, error) {
	return r.stations, nil
}

func (r *fakeStationRepo) UpdateStationRegion(ctx context.Context, stationID string, sa4Code *string) error {
	return nil
}

func (r *fakeStationRepo) StationsInRegion(ctx context.Context, sa4Code string, year *int) ([]*models.Station, error) {
	r.yearArg = year
	return r.inRegion, nil
}

type fakeObservationRepo struct {
	observations map[string]*models.DailyObservation
	series       []*models.DailyObservation
}

func obsKey(stationID string, date time.Time) string {
	return stationID + "|" + date.Format("2006-01-02")
}

func (r *fakeObservationRepo) UpsertObservationsBatch(ctx context.Context, observations []*models.DailyObservation, cols models.MetricColumns) error {
	return nil
}

func (r *fakeObservationRepo) GetObservation(ctx context.Context, stationID string, date time.Time) (*models.DailyObservation, error) {
	if obs, ok := r.observations[obsKey(stationID, date)]; ok {
		return obs, nil
	}
	return nil, &models.NotFoundError{Resource: "observation", ID: obsKey(stationID, date)}
}

func (r *fakeObservationRepo) GetObservationsRange(ctx context.Context, stationID string, start, end time.Time) ([]*models.DailyObservation, error) {
	return r.series, nil
}

type fakeRollupRepo struct {
	monthly []*models.StationMonthlyRollup
	yearly  []*models.StationYearlyRollup
}

func (r *fakeRollupRepo) UpsertStationMonthly(ctx context.Context, rollups []*models.StationMonthlyRollup, cols models.MetricColumns) error {
	return nil
}

func (r *fakeRollupRepo) UpsertStationYearly(ctx context.Context, rollups []*models.StationYearlyRollup, cols models.MetricColumns) error {
	return nil
}

func (r *fakeRollupRepo) GetStationMonthlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationMonthlyRollup, error) {
	return r.monthly, nil
}

func (r *fakeRollupRepo) GetStationYearlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationYearlyRollup, error) {
	return r.yearly, nil
}

type fakeAggregateRepo struct {
	monthlySeries []*models.RegionMonthlyAggregate
	yearlySeries  []*models.RegionYearlyAggregate
}

func (r *fakeAggregateRepo) AggregateCount(ctx context.Context) (int, error) {
	return len(r.monthlySeries) + len(r.yearlySeries), nil
}

func (r *fakeAggregateRepo) TruncateAggregates(ctx context.Context) error {
	return nil
}

func (r *fakeAggregateRepo) RebuildRegionMonthly(ctx context.Context, sa4Code string) error {
	return nil
}

func (r *fakeAggregateRepo) RebuildRegionYearly(ctx context.Context, sa4Code string) error {
	return nil
}

func (r *fakeAggregateRepo) GetRegionMonthlySeries(ctx context.Context, sa4Code string) ([]*models.RegionMonthlyAggregate, error) {
	return r.monthlySeries, nil
}

func (r *fakeAggregateRepo) GetMonthlyForPeriod(ctx context.Context, year, month int) ([]*models.RegionMonthlyAggregate, error) {
	return r.monthlySeries, nil
}

func (r *fakeAggregateRepo) GetYearlyForYear(ctx context.Context, year int) ([]*models.RegionYearlyAggregate, error) {
	return r.yearlySeries, nil
}

type fakeRegionRepo struct {
	regions   []*models.Region
	summaries []*models.RegionSummary
}

func (r *fakeRegionRepo) UpsertRegions(ctx context.Context, regions []*models.Region) error {
	return nil
}

func (r *fakeRegionRepo) GetRegion(ctx context.Context, sa4Code string) (*models.Region, error) {
	for _, region := range r.regions {
		if region.SA4Code == sa4Code {
			return region, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "region", ID: sa4Code}
}

func (r *fakeRegionRepo) ListRegions(ctx context.Context) ([]*models.Region, error) {
	return r.regions, nil
}

func (r *fakeRegionRepo) RegionSummaries(ctx context.Context) ([]*models.RegionSummary, error) {
	return r.summaries, nil
}

func newTestService(
	stations *fakeStationRepo,
	observations *fakeObservationRepo,
	rollups *fakeRollupRepo,
	aggregates *fakeAggregateRepo,
	regions *fakeRegionRepo,
) *QueryService {
	if stations == nil {
		stations = &fakeStationRepo{}
	}
	if observations == nil {
		observations = &fakeObservationRepo{}
	}
	if rollups == nil {
		rollups = &fakeRollupRepo{}
	}
	if aggregates == nil {
		aggregates = &fakeAggregateRepo{}
	}
	if regions == nil {
		regions = &fakeRegionRepo{}
	}
	return NewQueryService(stations, observations, rollups, aggregates, regions, testLogger(), testMetrics)
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{in: "monthly", want: FrequencyMonthly},
		{in: "yearly", want: FrequencyYearly},
		{in: "weekly", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				var validationErr *models.ValidationError
				require.ErrorAs(t, err, &validationErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMetric(t *testing.T) {
	for _, valid := range []string{"rainfall", "min_temp", "max_temp", "both_temps", ""} {
		_, err := ParseMetric(valid)
		assert.NoError(t, err, valid)
	}

	_, err := ParseMetric("humidity")
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestSearchStations_PassesLimit(t *testing.T) {
	stations := &fakeStationRepo{stations: []*models.Station{{StationID: "001000"}}}
	svc := newTestService(stations, nil, nil, nil, nil)

	result, err := svc.SearchStations(context.Background(), "KARUNJIE")
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, "KARUNJIE", stations.searchArg)
	assert.Equal(t, searchLimit, stations.limitArg)
}

func TestGetDailyObservation_Present(t *testing.T) {
	date := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	observations := &fakeObservationRepo{observations: map[string]*models.DailyObservation{
		obsKey("001000", date): {StationID: "001000", Date: date, Rainfall: f(4.2), MinTemp: f(12), MaxTemp: f(30)},
	}}
	svc := newTestService(nil, observations, nil, nil, nil)

	obs, err := svc.GetDailyObservation(context.Background(), "001000", date)
	require.NoError(t, err)
	require.NotNil(t, obs.Rainfall)
	assert.Equal(t, 4.2, *obs.Rainfall)
}

func TestGetDailyObservation_MissingIsNulls(t *testing.T) {
	svc := newTestService(nil, &fakeObservationRepo{}, nil, nil, nil)

	// A missing row is a valid all-null result, never an error or a 404.
	obs, err := svc.GetDailyObservation(context.Background(), "1000", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "001000", obs.StationID)
	assert.Nil(t, obs.Rainfall)
	assert.Nil(t, obs.MinTemp)
	assert.Nil(t, obs.MaxTemp)
}

func TestGetDailyRange_RejectsInvertedRange(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	start := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := svc.GetDailyRange(context.Background(), "001000", start, end)
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestGetAggregatedSeries_MetricFilter(t *testing.T) {
	rollups := &fakeRollupRepo{monthly: []*models.StationMonthlyRollup{
		{StationID: "001000", Year: 2022, Month: 1, Rainfall: f(120), AvgMinTemp: f(14), AvgMaxTemp: f(30)},
	}}
	svc := newTestService(nil, nil, rollups, nil, nil)

	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		metric       Metric
		wantRainfall bool
		wantMinTemp  bool
		wantMaxTemp  bool
	}{
		{metric: MetricRainfall, wantRainfall: true},
		{metric: MetricMinTemp, wantMinTemp: true},
		{metric: MetricMaxTemp, wantMaxTemp: true},
		{metric: MetricBothTemps, wantMinTemp: true, wantMaxTemp: true},
		{metric: MetricAll, wantRainfall: true, wantMinTemp: true, wantMaxTemp: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			points, err := svc.GetAggregatedSeries(context.Background(), "001000", FrequencyMonthly, start, end, tt.metric)
			require.NoError(t, err)
			require.Len(t, points, 1)

			point := points[0]
			assert.Equal(t, 2022, point.Year)
			require.NotNil(t, point.Month)
			assert.Equal(t, 1, *point.Month)
			assert.Equal(t, tt.wantRainfall, point.Rainfall != nil)
			assert.Equal(t, tt.wantMinTemp, point.MinTemp != nil)
			assert.Equal(t, tt.wantMaxTemp, point.MaxTemp != nil)
		})
	}
}

func TestGetAggregatedSeries_Yearly(t *testing.T) {
	rollups := &fakeRollupRepo{yearly: []*models.StationYearlyRollup{
		{StationID: "001000", Year: 2021, Rainfall: f(900)},
		{StationID: "001000", Year: 2022, Rainfall: f(650)},
	}}
	svc := newTestService(nil, nil, rollups, nil, nil)

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)

	points, err := svc.GetAggregatedSeries(context.Background(), "001000", FrequencyYearly, start, end, MetricRainfall)
	require.NoError(t, err)
	require.Len(t, points, 2)

	// Yearly buckets carry no month.
	assert.Nil(t, points[0].Month)
	require.NotNil(t, points[0].Rainfall)
	assert.Equal(t, 900.0, *points[0].Rainfall)
}

func TestGetStationPeriodStats(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 1, 31, 0, 0, 0, 0, time.UTC)

	observations := &fakeObservationRepo{series: []*models.DailyObservation{
		{StationID: "001000", Date: start, Rainfall: f(5)},
		{StationID: "001000", Date: start.AddDate(0, 0, 1), Rainfall: f(3)},
		{StationID: "001000", Date: start.AddDate(0, 0, 2), Rainfall: f(0)},
	}}
	svc := newTestService(nil, observations, nil, nil, nil)

	stats, err := svc.GetStationPeriodStats(context.Background(), "1000", start, end)
	require.NoError(t, err)

	assert.Equal(t, "001000", stats.StationID)
	require.NotNil(t, stats.RainyDays)
	assert.Equal(t, 2, *stats.RainyDays)
	require.NotNil(t, stats.LongestRainyRun)
	assert.Equal(t, 2, *stats.LongestRainyRun)
}

func TestGetRegionsForMonth_RejectsBadMonth(t *testing.T) {
	svc := newTestService(nil, nil, nil, &fakeAggregateRepo{}, nil)

	for _, month := range []int{0, 13, -1} {
		_, err := svc.GetRegionsForMonth(context.Background(), 2022, month)
		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr, "month %d", month)
	}

	_, err := svc.GetRegionsForMonth(context.Background(), 2022, 6)
	assert.NoError(t, err)
}

func TestStationsInRegion_DateFilter(t *testing.T) {
	stations := &fakeStationRepo{inRegion: []*models.Station{{StationID: "001000"}}}
	svc := newTestService(stations, nil, nil, nil, nil)

	date := time.Date(1975, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.StationsInRegion(context.Background(), "101", &date)
	require.NoError(t, err)
	require.NotNil(t, stations.yearArg)
	assert.Equal(t, 1975, *stations.yearArg)

	_, err = svc.StationsInRegion(context.Background(), "101", nil)
	require.NoError(t, err)
	assert.Nil(t, stations.yearArg)
}
