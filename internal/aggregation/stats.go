package aggregation

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"weather-explorer/internal/models"
)

// ComputePeriodStats derives the extended rollup for one station over an
// inclusive date range. It is a pure function of the observations passed in;
// a period with no qualifying data yields null fields, never an error.
//
// Run semantics: consecutive-day runs require contiguous calendar dates. A
// missing day or a null rainfall observation breaks both the rainy and the
// dry run.
func ComputePeriodStats(stationID string, start, end time.Time, observations []*models.DailyObservation) *models.StationPeriodStats {
	stats := &models.StationPeriodStats{
		StationID: stationID,
		StartDate: start,
		EndDate:   end,
	}

	if len(observations) == 0 {
		return stats
	}

	sorted := make([]*models.DailyObservation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	computeRainfall(stats, sorted)
	computeTemperature(stats, sorted)

	return stats
}

func computeRainfall(stats *models.StationPeriodStats, observations []*models.DailyObservation) {
	var (
		values    []float64
		total     float64
		rainyDays int

		rainyRun, longestRainy int
		dryRun, longestDry     int
		prevDate               time.Time
	)

	for _, obs := range observations {
		contiguous := !prevDate.IsZero() && obs.Date.Sub(prevDate) == 24*time.Hour
		prevDate = obs.Date

		if obs.Rainfall == nil {
			// A null observation breaks both runs.
			rainyRun, dryRun = 0, 0
			continue
		}

		values = append(values, *obs.Rainfall)
		total += *obs.Rainfall

		if !contiguous {
			rainyRun, dryRun = 0, 0
		}

		if *obs.Rainfall > 0 {
			rainyDays++
			rainyRun++
			dryRun = 0
		} else {
			dryRun++
			rainyRun = 0
		}

		if rainyRun > longestRainy {
			longestRainy = rainyRun
		}
		if dryRun > longestDry {
			longestDry = dryRun
		}

		if stats.WettestDay == nil || *obs.Rainfall > stats.WettestDay.Value {
			stats.WettestDay = &models.ExtremeDay{Date: obs.Date, Value: *obs.Rainfall}
		}
	}

	if len(values) == 0 {
		return
	}

	stats.TotalRainfall = &total
	stats.RainyDays = intPtr(rainyDays)
	stats.LongestRainyRun = intPtr(longestRainy)
	stats.LongestDryRun = intPtr(longestDry)

	// Intensity is undefined with zero rainy days; leave it null rather than
	// divide by zero.
	if rainyDays > 0 {
		intensity := total / float64(rainyDays)
		stats.RainfallIntensity = &intensity
	}

	stats.RainfallVariability = coefficientOfVariation(values)
}

func computeTemperature(stats *models.StationPeriodStats, observations []*models.DailyObservation) {
	var (
		rangeSum   float64
		rangeCount int
		dailyMeans []float64

		daysAbove30, daysBelow0  int
		maxTempSeen, minTempSeen bool
	)

	for _, obs := range observations {
		if obs.MaxTemp != nil {
			maxTempSeen = true
			if *obs.MaxTemp > 30 {
				daysAbove30++
			}
			if stats.HottestDay == nil || *obs.MaxTemp > stats.HottestDay.Value {
				stats.HottestDay = &models.ExtremeDay{Date: obs.Date, Value: *obs.MaxTemp}
			}
		}

		if obs.MinTemp != nil {
			minTempSeen = true
			if *obs.MinTemp < 0 {
				daysBelow0++
			}
			if stats.ColdestDay == nil || *obs.MinTemp < stats.ColdestDay.Value {
				stats.ColdestDay = &models.ExtremeDay{Date: obs.Date, Value: *obs.MinTemp}
			}
		}

		if obs.MaxTemp != nil && obs.MinTemp != nil {
			rangeSum += *obs.MaxTemp - *obs.MinTemp
			rangeCount++
			dailyMeans = append(dailyMeans, (*obs.MaxTemp+*obs.MinTemp)/2)
		}
	}

	if maxTempSeen {
		stats.DaysAbove30C = intPtr(daysAbove30)
	}
	if minTempSeen {
		stats.DaysBelow0C = intPtr(daysBelow0)
	}

	if rangeCount > 0 {
		avgRange := rangeSum / float64(rangeCount)
		stats.AvgTempRange = &avgRange
	}

	// Daily mean temperatures cross zero, which makes a coefficient of
	// variation meaningless; plain standard deviation is the dispersion
	// measure here.
	if len(dailyMeans) >= 2 {
		sd := stat.StdDev(dailyMeans, nil)
		stats.TempVariability = &sd
	}
}

// coefficientOfVariation returns stddev/mean over the values, or nil when
// fewer than two values exist or the mean is zero.
func coefficientOfVariation(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	mean := stat.Mean(values, nil)
	if mean == 0 {
		return nil
	}

	cv := stat.StdDev(values, nil) / mean
	return &cv
}

func intPtr(v int) *int {
	return &v
}
