package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"weather-explorer/internal/models"
)

// Daily data arrives as per-metric product files, so the conflict action may
// only touch the columns that file carries. A temperature import overwriting
// rainfall with null was exactly the failure mode this guards against.
func TestObservationConflictClause_TemperatureOnlyProduct(t *testing.T) {
	clause := observationConflictClause(models.MetricColumns{MaxTemp: true})

	assert.Contains(t, clause, "max_temp = EXCLUDED.max_temp")
	assert.NotContains(t, clause, "rainfall")
	assert.NotContains(t, clause, "min_temp = EXCLUDED.min_temp")
}

func TestObservationConflictClause_RainfallOnlyProduct(t *testing.T) {
	clause := observationConflictClause(models.MetricColumns{Rainfall: true})

	assert.Contains(t, clause, "rainfall = EXCLUDED.rainfall")
	assert.NotContains(t, clause, "temp")
}

func TestObservationConflictClause_AllColumns(t *testing.T) {
	clause := observationConflictClause(models.MetricColumns{Rainfall: true, MinTemp: true, MaxTemp: true})

	assert.Contains(t, clause, "rainfall = EXCLUDED.rainfall")
	assert.Contains(t, clause, "min_temp = EXCLUDED.min_temp")
	assert.Contains(t, clause, "max_temp = EXCLUDED.max_temp")
}

func TestObservationConflictClause_NoColumns(t *testing.T) {
	assert.Equal(t, "ON CONFLICT (station_id, date) DO NOTHING",
		observationConflictClause(models.MetricColumns{}))
}

func TestRollupConflictClause_TemperatureOnlyProduct(t *testing.T) {
	clause := rollupConflictClause("station_id, year, month", models.MetricColumns{MinTemp: true})

	assert.Contains(t, clause, "ON CONFLICT (station_id, year, month)")
	assert.Contains(t, clause, "avg_min_temp = EXCLUDED.avg_min_temp")
	assert.NotContains(t, clause, "rainfall")
	assert.NotContains(t, clause, "avg_max_temp")
}

func TestRollupConflictClause_RainfallOnlyProduct(t *testing.T) {
	clause := rollupConflictClause("station_id, year", models.MetricColumns{Rainfall: true})

	assert.Contains(t, clause, "ON CONFLICT (station_id, year)")
	assert.Contains(t, clause, "rainfall = EXCLUDED.rainfall")
	assert.NotContains(t, clause, "avg_min_temp")
	assert.NotContains(t, clause, "avg_max_temp")
}
