package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-explorer/internal/models"
	"weather-explorer/internal/services"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

var testMetrics = metrics.NewCollector("explorer_handlers_test")

type stubStationRepo struct {
	stations []*models.Station
}

func (r *stubStationRepo) UpsertStation(ctx context.Context, station *models.Station) error {
	return nil
}

func (r *stubStationRepo) UpsertStationsBatch(ctx context.Context, stations []*models.Station) error {
	return nil
}

func (r *stubStationRepo) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	return nil, &models.NotFoundError{Resource: "station", ID: stationID}
}

func (r *stubStationRepo) SearchStations(ctx context.Context, term string, limit int) ([]*models.Station, error) {
	return r.stations, nil
}

func (r *stubStationRepo) ListStations(ctx context.Context) ([]*models.Station, error) {
	return r.stations, nil
}

func (r *stubStationRepo) UpdateStationRegion(ctx context.Context, stationID string, sa4Code *string) error {
	return nil
}

func (r *stubStationRepo) StationsInRegion(ctx context.Context, sa4Code string, year *int) ([]*models.Station, error) {
	return r.stations, nil
}

type stubObservationRepo struct {
	observation *models.DailyObservation
	series      []*models.DailyObservation
}

func (r *stubObservationRepo) UpsertObservationsBatch(ctx context.Context, observations []*models.DailyObservation, cols models.MetricColumns) error {
	return nil
}

func (r *stubObservationRepo) GetObservation(ctx context.Context, stationID string, date time.Time) (*models.DailyObservation, error) {
	if r.observation == nil {
		return nil, &models.NotFoundError{Resource: "observation", ID: stationID}
	}
	return r.observation, nil
}

func (r *stubObservationRepo) GetObservationsRange(ctx context.Context, stationID string, start, end time.Time) ([]*models.DailyObservation, error) {
	return r.series, nil
}

type stubRollupRepo struct {
	monthly []*models.StationMonthlyRollup
}

func (r *stubRollupRepo) UpsertStationMonthly(ctx context.Context, rollups []*models.StationMonthlyRollup, cols models.MetricColumns) error {
	return nil
}

func (r *stubRollupRepo) UpsertStationYearly(ctx context.Context, rollups []*models.StationYearlyRollup, cols models.MetricColumns) error {
	return nil
}

func (r *stubRollupRepo) GetStationMonthlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationMonthlyRollup, error) {
	return r.monthly, nil
}

func (r *stubRollupRepo) GetStationYearlySeries(ctx context.Context, stationID string, start, end time.Time) ([]*models.StationYearlyRollup, error) {
	return nil, nil
}

type stubAggregateRepo struct {
	monthly []*models.RegionMonthlyAggregate
	yearly  []*models.RegionYearlyAggregate
}

func (r *stubAggregateRepo) AggregateCount(ctx context.Context) (int, error) {
	return len(r.monthly) + len(r.yearly), nil
}

func (r *stubAggregateRepo) TruncateAggregates(ctx context.Context) error {
	return nil
}

func (r *stubAggregateRepo) RebuildRegionMonthly(ctx context.Context, sa4Code string) error {
	return nil
}

func (r *stubAggregateRepo) RebuildRegionYearly(ctx context.Context, sa4Code string) error {
	return nil
}

func (r *stubAggregateRepo) GetRegionMonthlySeries(ctx context.Context, sa4Code string) ([]*models.RegionMonthlyAggregate, error) {
	return r.monthly, nil
}

func (r *stubAggregateRepo) GetMonthlyForPeriod(ctx context.Context, year, month int) ([]*models.RegionMonthlyAggregate, error) {
	return r.monthly, nil
}

func (r *stubAggregateRepo) GetYearlyForYear(ctx context.Context, year int) ([]*models.RegionYearlyAggregate, error) {
	return r.yearly, nil
}

type stubRegionRepo struct {
	regions   []*models.Region
	summaries []*models.RegionSummary
}

func (r *stubRegionRepo) UpsertRegions(ctx context.Context, regions []*models.Region) error {
	return nil
}

func (r *stubRegionRepo) GetRegion(ctx context.Context, sa4Code string) (*models.Region, error) {
	for _, region := range r.regions {
		if region.SA4Code == sa4Code {
			return region, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "region", ID: sa4Code}
}

func (r *stubRegionRepo) ListRegions(ctx context.Context) ([]*models.Region, error) {
	return r.regions, nil
}

func (r *stubRegionRepo) RegionSummaries(ctx context.Context) ([]*models.RegionSummary, error) {
	return r.summaries, nil
}

type testEnv struct {
	router       *mux.Router
	observations *stubObservationRepo
	stations     *stubStationRepo
	regions      *stubRegionRepo
}

func newTestEnv() *testEnv {
	env := &testEnv{
		observations: &stubObservationRepo{},
		stations:     &stubStationRepo{},
		regions:      &stubRegionRepo{},
	}

	logger := logging.NewStructuredLogger("explorer-handlers-test", "test", "error")
	queryService := services.NewQueryService(
		env.stations, env.observations, &stubRollupRepo{}, &stubAggregateRepo{}, env.regions,
		logger, testMetrics,
	)

	handler := NewExplorerHandler(queryService, logger, testMetrics)
	env.router = mux.NewRouter()
	handler.RegisterRoutes(env.router)

	return env
}

func doGet(t *testing.T, router *mux.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetDailyObservation_MissingRowIsNullShape(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/rainfall/station/001000/date/2023-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var body [2]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.JSONEq(t, "null", string(body[0]))
	assert.JSONEq(t, "[null,null]", string(body[1]))
}

func TestGetDailyObservation_PresentRow(t *testing.T) {
	env := newTestEnv()

	rainfall, minTemp, maxTemp := 4.2, 12.0, 30.5
	env.observations.observation = &models.DailyObservation{
		StationID: "001000",
		Date:      time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		Rainfall:  &rainfall,
		MinTemp:   &minTemp,
		MaxTemp:   &maxTemp,
	}

	rec := doGet(t, env.router, "/rainfall/station/001000/date/2022-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[4.2,[12,30.5]]", rec.Body.String())
}

func TestGetDailyObservation_BadDate(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/rainfall/station/001000/date/01-2023-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.Code)
}

func TestGetDailyRange_BadDates(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/rainfall/station/001000/date/2022-01-01/end_date/notadate")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Inverted ranges are a validation failure, not a server error.
	rec = doGet(t, env.router, "/rainfall/station/001000/date/2022-06-01/end_date/2022-01-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAggregatedSeries_Validation(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/rainfall/aggregated/station/001000/frequency/weekly/date/2022-01-01/end_date/2022-12-31")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, env.router, "/rainfall/aggregated/station/001000/frequency/monthly/date/2022-01-01/end_date/2022-12-31?data_type=humidity")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, env.router, "/rainfall/aggregated/station/001000/frequency/monthly/date/2022-01-01/end_date/2022-12-31")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchStations_RequiresQuery(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/stations/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.stations.stations = []*models.Station{{StationID: "001000", Name: "KARUNJIE"}}
	rec = doGet(t, env.router, "/stations/search?query=KARUNJIE")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []*models.Station
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "001000", body[0].StationID)
}

func TestRegionRoutes_FixedSegmentsWinOverCode(t *testing.T) {
	env := newTestEnv()

	// "month" and "year" must not be captured as a region code.
	rec := doGet(t, env.router, "/rainfall/sa4/month/6/year/2022")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, env.router, "/rainfall/sa4/year/2022")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, env.router, "/rainfall/sa4/101")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, env.router, "/rainfall/sa4/month/13/year/2022")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBoundary_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/boundaries/sa4/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.regions.regions = []*models.Region{{SA4Code: "101", Name: "Capital Region"}}
	rec = doGet(t, env.router, "/boundaries/sa4/101")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRegionStations_BadDateFilter(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/boundaries/sa4/101/stations?date=June-1975")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, env.router, "/boundaries/sa4/101/stations?date=1975-06-01")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv()

	rec := doGet(t, env.router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}
