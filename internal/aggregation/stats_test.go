package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-explorer/internal/models"
)

func period() (time.Time, time.Time) {
	return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
}

func rainSeq(start time.Time, values []*float64) []*models.DailyObservation {
	observations := make([]*models.DailyObservation, len(values))
	for i, v := range values {
		observations[i] = &models.DailyObservation{
			StationID: "001000",
			Date:      start.AddDate(0, 0, i),
			Rainfall:  v,
		}
	}
	return observations
}

func TestComputePeriodStats_Empty(t *testing.T) {
	start, end := period()
	stats := ComputePeriodStats("001000", start, end, nil)

	// No data means null everything, not zeros and not an error.
	assert.Nil(t, stats.TotalRainfall)
	assert.Nil(t, stats.RainyDays)
	assert.Nil(t, stats.RainfallIntensity)
	assert.Nil(t, stats.WettestDay)
	assert.Nil(t, stats.DaysAbove30C)
}

func TestComputePeriodStats_RunsBrokenByNull(t *testing.T) {
	start, end := period()

	// [1mm, 2mm, null, 3mm, 0mm, 5mm]: the null breaks the opening run, so
	// the longest rainy run is 2 ([1,2]), not 3.
	observations := rainSeq(start, []*float64{f(1), f(2), nil, f(3), f(0), f(5)})

	stats := ComputePeriodStats("001000", start, end, observations)

	require.NotNil(t, stats.LongestRainyRun)
	assert.Equal(t, 2, *stats.LongestRainyRun)
	require.NotNil(t, stats.LongestDryRun)
	assert.Equal(t, 1, *stats.LongestDryRun)
	require.NotNil(t, stats.RainyDays)
	assert.Equal(t, 4, *stats.RainyDays)
	require.NotNil(t, stats.TotalRainfall)
	assert.Equal(t, 11.0, *stats.TotalRainfall)
}

func TestComputePeriodStats_RunsBrokenByCalendarGap(t *testing.T) {
	start, end := period()

	observations := []*models.DailyObservation{
		{StationID: "001000", Date: start, Rainfall: f(1)},
		{StationID: "001000", Date: start.AddDate(0, 0, 1), Rainfall: f(2)},
		// Two missing calendar days, then more rain.
		{StationID: "001000", Date: start.AddDate(0, 0, 4), Rainfall: f(3)},
		{StationID: "001000", Date: start.AddDate(0, 0, 5), Rainfall: f(4)},
		{StationID: "001000", Date: start.AddDate(0, 0, 6), Rainfall: f(5)},
	}

	stats := ComputePeriodStats("001000", start, end, observations)

	require.NotNil(t, stats.LongestRainyRun)
	assert.Equal(t, 3, *stats.LongestRainyRun)
}

func TestComputePeriodStats_IntensityNullWithoutRainyDays(t *testing.T) {
	start, end := period()

	observations := rainSeq(start, []*float64{f(0), f(0), f(0)})

	stats := ComputePeriodStats("001000", start, end, observations)

	require.NotNil(t, stats.RainyDays)
	assert.Equal(t, 0, *stats.RainyDays)
	// Zero rainy days leaves intensity undefined, never a division by zero.
	assert.Nil(t, stats.RainfallIntensity)
	require.NotNil(t, stats.LongestDryRun)
	assert.Equal(t, 3, *stats.LongestDryRun)
	// Mean rainfall is zero, so the coefficient of variation is undefined too.
	assert.Nil(t, stats.RainfallVariability)
}

func TestComputePeriodStats_Intensity(t *testing.T) {
	start, end := period()

	observations := rainSeq(start, []*float64{f(10), f(0), f(20)})

	stats := ComputePeriodStats("001000", start, end, observations)

	require.NotNil(t, stats.RainfallIntensity)
	assert.Equal(t, 15.0, *stats.RainfallIntensity)
	require.NotNil(t, stats.RainfallVariability)
	assert.Greater(t, *stats.RainfallVariability, 0.0)
}

func TestComputePeriodStats_SingleValueVariabilityNull(t *testing.T) {
	start, end := period()

	observations := rainSeq(start, []*float64{f(10)})

	stats := ComputePeriodStats("001000", start, end, observations)

	// Fewer than two values: dispersion is undefined.
	assert.Nil(t, stats.RainfallVariability)
	require.NotNil(t, stats.TotalRainfall)
	assert.Equal(t, 10.0, *stats.TotalRainfall)
}

func TestComputePeriodStats_ExtremesFirstOccurrenceWins(t *testing.T) {
	start, end := period()

	observations := []*models.DailyObservation{
		obs(2022, 1, 1, f(5), f(2), f(31)),
		obs(2022, 1, 2, f(9), f(-1), f(35)),
		obs(2022, 1, 3, f(9), f(-1), f(35)),
		obs(2022, 1, 4, f(3), f(4), f(28)),
	}

	stats := ComputePeriodStats("001000", start, end, observations)

	require.NotNil(t, stats.WettestDay)
	assert.Equal(t, 9.0, stats.WettestDay.Value)
	assert.Equal(t, time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), stats.WettestDay.Date)

	require.NotNil(t, stats.HottestDay)
	assert.Equal(t, 35.0, stats.HottestDay.Value)
	assert.Equal(t, time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), stats.HottestDay.Date)

	require.NotNil(t, stats.ColdestDay)
	assert.Equal(t, -1.0, stats.ColdestDay.Value)
	assert.Equal(t, time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), stats.ColdestDay.Date)
}

func TestComputePeriodStats_TemperatureCounts(t *testing.T) {
	start, end := period()

	observations := []*models.DailyObservation{
		obs(2022, 7, 1, nil, f(-2), f(12)),
		obs(2022, 7, 2, nil, f(-0.5), f(10)),
		obs(2022, 7, 3, nil, f(1), f(31)),
		obs(2022, 7, 4, nil, f(3), nil),
	}

	stats := ComputePeriodStats("001000", start, end, observations)

	require.NotNil(t, stats.DaysAbove30C)
	assert.Equal(t, 1, *stats.DaysAbove30C)
	require.NotNil(t, stats.DaysBelow0C)
	assert.Equal(t, 2, *stats.DaysBelow0C)

	// Range and variability only use days with both temperatures present.
	require.NotNil(t, stats.AvgTempRange)
	assert.InDelta(t, ((12.0+2.0)+(10.0+0.5)+(31.0-1.0))/3.0, *stats.AvgTempRange, 1e-9)
	require.NotNil(t, stats.TempVariability)

	// Rainfall was never observed, so its derived measures stay null.
	assert.Nil(t, stats.TotalRainfall)
	assert.Nil(t, stats.RainyDays)
}

func TestComputePeriodStats_UnsortedInput(t *testing.T) {
	start, end := period()

	observations := []*models.DailyObservation{
		{StationID: "001000", Date: start.AddDate(0, 0, 2), Rainfall: f(3)},
		{StationID: "001000", Date: start, Rainfall: f(1)},
		{StationID: "001000", Date: start.AddDate(0, 0, 1), Rainfall: f(2)},
	}

	stats := ComputePeriodStats("001000", start, end, observations)

	require.NotNil(t, stats.LongestRainyRun)
	assert.Equal(t, 3, *stats.LongestRainyRun)
}
