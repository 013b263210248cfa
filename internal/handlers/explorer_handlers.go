package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"weather-explorer/internal/models"
	"weather-explorer/internal/services"
	"weather-explorer/pkg/logging"
	"weather-explorer/pkg/metrics"
)

const dateLayout = "2006-01-02"

// ExplorerHandler handles the query API endpoints
type ExplorerHandler struct {
	queryService *services.QueryService
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewExplorerHandler creates a new explorer handler
func NewExplorerHandler(
	queryService *services.QueryService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ExplorerHandler {
	return &ExplorerHandler{
		queryService: queryService,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SearchStations handles GET /stations/search
func (h *ExplorerHandler) SearchStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/stations/search", time.Now())

	term := r.URL.Query().Get("query")
	if term == "" {
		h.sendError(w, r, "query parameter is required", http.StatusBadRequest)
		return
	}

	stations, err := h.queryService.SearchStations(ctx, term)
	if err != nil {
		h.logger.Error(ctx, "[API_SEARCH_STATIONS_ERROR] Station search failed", logging.Fields{
			"term": term,
		}, err)
		h.serviceError(w, r, "/stations/search", err)
		return
	}

	h.metrics.RecordAPIRequest("/stations/search", "GET", "200")
	h.sendJSON(w, stations, http.StatusOK)
}

// GetDailyObservation handles GET /rainfall/station/{id}/date/{date}.
// The response is the positional form [rainfall, [min_temp, max_temp]];
// a station-date with no stored row yields [null, [null, null]], not a 404.
func (h *ExplorerHandler) GetDailyObservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/rainfall/station/date", time.Now())

	vars := mux.Vars(r)
	stationID := vars["id"]

	date, err := time.Parse(dateLayout, vars["date"])
	if err != nil {
		h.sendError(w, r, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	obs, err := h.queryService.GetDailyObservation(ctx, stationID, date)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_OBSERVATION_ERROR] Failed to get observation", logging.Fields{
			"station_id": stationID,
			"date":       vars["date"],
		}, err)
		h.serviceError(w, r, "/rainfall/station/date", err)
		return
	}

	response := [2]interface{}{
		obs.Rainfall,
		[2]*float64{obs.MinTemp, obs.MaxTemp},
	}

	h.metrics.RecordAPIRequest("/rainfall/station/date", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetDailyRange handles GET /rainfall/station/{id}/date/{start}/end_date/{end}
func (h *ExplorerHandler) GetDailyRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/rainfall/station/range", time.Now())

	vars := mux.Vars(r)
	stationID := vars["id"]

	start, end, ok := h.parseRange(w, r, vars["start"], vars["end"])
	if !ok {
		return
	}

	observations, err := h.queryService.GetDailyRange(ctx, stationID, start, end)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_RANGE_ERROR] Failed to get daily range", logging.Fields{
			"station_id": stationID,
			"start":      vars["start"],
			"end":        vars["end"],
		}, err)
		h.serviceError(w, r, "/rainfall/station/range", err)
		return
	}

	h.metrics.RecordAPIRequest("/rainfall/station/range", "GET", "200")
	h.sendJSON(w, observations, http.StatusOK)
}

// GetAggregatedSeries handles
// GET /rainfall/aggregated/station/{id}/frequency/{frequency}/date/{start}/end_date/{end}
func (h *ExplorerHandler) GetAggregatedSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/rainfall/aggregated", time.Now())

	vars := mux.Vars(r)
	stationID := vars["id"]

	frequency, err := services.ParseFrequency(vars["frequency"])
	if err != nil {
		h.serviceError(w, r, "/rainfall/aggregated", err)
		return
	}

	metric, err := services.ParseMetric(r.URL.Query().Get("data_type"))
	if err != nil {
		h.serviceError(w, r, "/rainfall/aggregated", err)
		return
	}

	start, end, ok := h.parseRange(w, r, vars["start"], vars["end"])
	if !ok {
		return
	}

	points, err := h.queryService.GetAggregatedSeries(ctx, stationID, frequency, start, end, metric)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_AGGREGATED_ERROR] Failed to get aggregated series", logging.Fields{
			"station_id": stationID,
			"frequency":  string(frequency),
			"data_type":  string(metric),
		}, err)
		h.serviceError(w, r, "/rainfall/aggregated", err)
		return
	}

	h.metrics.RecordAPIRequest("/rainfall/aggregated", "GET", "200")
	h.sendJSON(w, points, http.StatusOK)
}

// GetStationStatistics handles GET /rainfall/stats/station/{id}/date/{start}/end_date/{end}
func (h *ExplorerHandler) GetStationStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/rainfall/stats", time.Now())

	vars := mux.Vars(r)
	stationID := vars["id"]

	start, end, ok := h.parseRange(w, r, vars["start"], vars["end"])
	if !ok {
		return
	}

	stats, err := h.queryService.GetStationPeriodStats(ctx, stationID, start, end)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATS_ERROR] Failed to compute period statistics", logging.Fields{
			"station_id": stationID,
			"start":      vars["start"],
			"end":        vars["end"],
		}, err)
		h.serviceError(w, r, "/rainfall/stats", err)
		return
	}

	h.metrics.RecordAPIRequest("/rainfall/stats", "GET", "200")
	h.sendJSON(w, stats, http.StatusOK)
}

// GetRegionSeries handles GET /rainfall/sa4/{code}
func (h *ExplorerHandler) GetRegionSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/rainfall/sa4", time.Now())

	code := mux.Vars(r)["code"]

	series, err := h.queryService.GetRegionSeries(ctx, code)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_REGION_SERIES_ERROR] Failed to get region series", logging.Fields{
			"sa4_code": code,
		}, err)
		h.serviceError(w, r, "/rainfall/sa4", err)
		return
	}

	h.metrics.RecordAPIRequest("/rainfall/sa4", "GET", "200")
	h.sendJSON(w, series, http.StatusOK)
}

// GetRegionsForMonth handles GET /rainfall/sa4/month/{month}/year/{year}
func (h *ExplorerHandler) GetRegionsForMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/rainfall/sa4/month", time.Now())

	vars := mux.Vars(r)

	month, err := strconv.Atoi(vars["month"])
	if err != nil {
		h.sendError(w, r, "invalid month, expected integer", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		h.sendError(w, r, "invalid year, expected integer", http.StatusBadRequest)
		return
	}

	aggregates, err := h.queryService.GetRegionsForMonth(ctx, year, month)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_REGION_MONTH_ERROR] Failed to get monthly aggregates", logging.Fields{
			"year":  year,
			"month": month,
		}, err)
		h.serviceError(w, r, "/rainfall/sa4/month", err)
		return
	}

	h.metrics.RecordAPIRequest("/rainfall/sa4/month", "GET", "200")
	h.sendJSON(w, aggregates, http.StatusOK)
}

// GetRegionsForYear handles GET /rainfall/sa4/year/{year}
func (h *ExplorerHandler) GetRegionsForYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/rainfall/sa4/year", time.Now())

	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		h.sendError(w, r, "invalid year, expected integer", http.StatusBadRequest)
		return
	}

	aggregates, err := h.queryService.GetRegionsForYear(ctx, year)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_REGION_YEAR_ERROR] Failed to get yearly aggregates", logging.Fields{
			"year": year,
		}, err)
		h.serviceError(w, r, "/rainfall/sa4/year", err)
		return
	}

	h.metrics.RecordAPIRequest("/rainfall/sa4/year", "GET", "200")
	h.sendJSON(w, aggregates, http.StatusOK)
}

// ListBoundaries handles GET /boundaries/sa4
func (h *ExplorerHandler) ListBoundaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/boundaries/sa4", time.Now())

	regions, err := h.queryService.ListRegions(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_BOUNDARIES_ERROR] Failed to list boundaries", logging.Fields{}, err)
		h.serviceError(w, r, "/boundaries/sa4", err)
		return
	}

	h.metrics.RecordAPIRequest("/boundaries/sa4", "GET", "200")
	h.sendJSON(w, regions, http.StatusOK)
}

// GetBoundary handles GET /boundaries/sa4/{code}
func (h *ExplorerHandler) GetBoundary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/boundaries/sa4/code", time.Now())

	code := mux.Vars(r)["code"]

	region, err := h.queryService.GetRegion(ctx, code)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_BOUNDARY_ERROR] Failed to get boundary", logging.Fields{
			"sa4_code": code,
		}, err)
		h.serviceError(w, r, "/boundaries/sa4/code", err)
		return
	}

	h.metrics.RecordAPIRequest("/boundaries/sa4/code", "GET", "200")
	h.sendJSON(w, region, http.StatusOK)
}

// GetRegionStations handles GET /boundaries/sa4/{code}/stations
func (h *ExplorerHandler) GetRegionStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/boundaries/sa4/stations", time.Now())

	code := mux.Vars(r)["code"]

	var date *time.Time
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			h.sendError(w, r, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = &parsed
	}

	stations, err := h.queryService.StationsInRegion(ctx, code, date)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_REGION_STATIONS_ERROR] Failed to get region stations", logging.Fields{
			"sa4_code": code,
		}, err)
		h.serviceError(w, r, "/boundaries/sa4/stations", err)
		return
	}

	h.metrics.RecordAPIRequest("/boundaries/sa4/stations", "GET", "200")
	h.sendJSON(w, stations, http.StatusOK)
}

// GetRegionSummaries handles GET /boundaries/sa4-summary
func (h *ExplorerHandler) GetRegionSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration("/boundaries/sa4-summary", time.Now())

	summaries, err := h.queryService.RegionSummaries(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_SUMMARIES_ERROR] Failed to get region summaries", logging.Fields{}, err)
		h.serviceError(w, r, "/boundaries/sa4-summary", err)
		return
	}

	h.metrics.RecordAPIRequest("/boundaries/sa4-summary", "GET", "200")
	h.sendJSON(w, summaries, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ExplorerHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parseRange parses a start/end path pair, writing a 400 on bad input.
func (h *ExplorerHandler) parseRange(w http.ResponseWriter, r *http.Request, startStr, endStr string) (time.Time, time.Time, bool) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		h.sendError(w, r, "invalid start date, expected YYYY-MM-DD", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		h.sendError(w, r, "invalid end date, expected YYYY-MM-DD", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// serviceError maps service-layer errors to HTTP statuses: validation
// failures to 400, missing resources to 404, anything else to 500.
func (h *ExplorerHandler) serviceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		h.sendError(w, r, validationErr.Message, http.StatusBadRequest)
		return
	}

	var notFoundErr *models.NotFoundError
	if errors.As(err, &notFoundErr) {
		h.sendError(w, r, notFoundErr.Error(), http.StatusNotFound)
		return
	}

	h.metrics.RecordAPIError("internal_error", endpoint)
	h.sendError(w, r, "internal server error", http.StatusInternalServerError)
}

// observeDuration records the request latency for an endpoint.
func (h *ExplorerHandler) observeDuration(endpoint string, startTime time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
}

// sendJSON sends a JSON response
func (h *ExplorerHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *ExplorerHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all explorer API routes. The fixed-segment sa4
// month/year routes are registered before the {code} catch-all so mux
// matches them first.
func (h *ExplorerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stations/search", h.SearchStations).Methods("GET")

	router.HandleFunc("/rainfall/station/{id}/date/{start}/end_date/{end}", h.GetDailyRange).Methods("GET")
	router.HandleFunc("/rainfall/station/{id}/date/{date}", h.GetDailyObservation).Methods("GET")
	router.HandleFunc("/rainfall/aggregated/station/{id}/frequency/{frequency}/date/{start}/end_date/{end}", h.GetAggregatedSeries).Methods("GET")
	router.HandleFunc("/rainfall/stats/station/{id}/date/{start}/end_date/{end}", h.GetStationStatistics).Methods("GET")

	router.HandleFunc("/rainfall/sa4/month/{month}/year/{year}", h.GetRegionsForMonth).Methods("GET")
	router.HandleFunc("/rainfall/sa4/year/{year}", h.GetRegionsForYear).Methods("GET")
	router.HandleFunc("/rainfall/sa4/{code}", h.GetRegionSeries).Methods("GET")

	router.HandleFunc("/boundaries/sa4-summary", h.GetRegionSummaries).Methods("GET")
	router.HandleFunc("/boundaries/sa4/{code}/stations", h.GetRegionStations).Methods("GET")
	router.HandleFunc("/boundaries/sa4/{code}", h.GetBoundary).Methods("GET")
	router.HandleFunc("/boundaries/sa4", h.ListBoundaries).Methods("GET")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
