// Package aggregation computes derived statistics from raw daily
// observations: per-station monthly/yearly rollups, per-region period means,
// and extended station period statistics.
package aggregation

import (
	"sort"

	"weather-explorer/internal/models"
)

type periodKey struct {
	year  int
	month int
}

type periodAccumulator struct {
	rainfallSum  float64
	rainfallSeen bool
	minTempSum   float64
	minTempCount int
	maxTempSum   float64
	maxTempCount int
}

func (a *periodAccumulator) add(obs *models.DailyObservation) {
	if obs.Rainfall != nil {
		a.rainfallSum += *obs.Rainfall
		a.rainfallSeen = true
	}
	if obs.MinTemp != nil {
		a.minTempSum += *obs.MinTemp
		a.minTempCount++
	}
	if obs.MaxTemp != nil {
		a.maxTempSum += *obs.MaxTemp
		a.maxTempCount++
	}
}

func (a *periodAccumulator) rainfall() *float64 {
	if !a.rainfallSeen {
		return nil
	}
	v := a.rainfallSum
	return &v
}

func (a *periodAccumulator) avgMinTemp() *float64 {
	if a.minTempCount == 0 {
		return nil
	}
	v := a.minTempSum / float64(a.minTempCount)
	return &v
}

func (a *periodAccumulator) avgMaxTemp() *float64 {
	if a.maxTempCount == 0 {
		return nil
	}
	v := a.maxTempSum / float64(a.maxTempCount)
	return &v
}

// RollupMonthly buckets one station's daily observations by (year, month).
// Rainfall is summed over non-null values, temperatures are averaged; a
// period where every value of a metric is null yields a null metric, never
// zero. Output is ordered by (year, month) ascending.
func RollupMonthly(stationID string, observations []*models.DailyObservation) []*models.StationMonthlyRollup {
	buckets := make(map[periodKey]*periodAccumulator)
	for _, obs := range observations {
		key := periodKey{year: obs.Date.Year(), month: int(obs.Date.Month())}
		acc, ok := buckets[key]
		if !ok {
			acc = &periodAccumulator{}
			buckets[key] = acc
		}
		acc.add(obs)
	}

	keys := make([]periodKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	rollups := make([]*models.StationMonthlyRollup, 0, len(keys))
	for _, key := range keys {
		acc := buckets[key]
		rollups = append(rollups, &models.StationMonthlyRollup{
			StationID:  stationID,
			Year:       key.year,
			Month:      key.month,
			Rainfall:   acc.rainfall(),
			AvgMinTemp: acc.avgMinTemp(),
			AvgMaxTemp: acc.avgMaxTemp(),
		})
	}

	return rollups
}

// RollupYearly buckets one station's daily observations by year, with the
// same null semantics as RollupMonthly. Output is ordered by year ascending.
func RollupYearly(stationID string, observations []*models.DailyObservation) []*models.StationYearlyRollup {
	buckets := make(map[int]*periodAccumulator)
	for _, obs := range observations {
		year := obs.Date.Year()
		acc, ok := buckets[year]
		if !ok {
			acc = &periodAccumulator{}
			buckets[year] = acc
		}
		acc.add(obs)
	}

	years := make([]int, 0, len(buckets))
	for year := range buckets {
		years = append(years, year)
	}
	sort.Ints(years)

	rollups := make([]*models.StationYearlyRollup, 0, len(years))
	for _, year := range years {
		acc := buckets[year]
		rollups = append(rollups, &models.StationYearlyRollup{
			StationID:  stationID,
			Year:       year,
			Rainfall:   acc.rainfall(),
			AvgMinTemp: acc.avgMinTemp(),
			AvgMaxTemp: acc.avgMaxTemp(),
		})
	}

	return rollups
}
