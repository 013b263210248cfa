package models

import "time"

// ExtremeDay is a single extreme observation within a period, carrying its
// date and value. Ties break to the first occurrence in date order.
type ExtremeDay struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// StationPeriodStats is the extended per-station rollup over an arbitrary
// date range. Every derived measure is nullable: a station/period with no
// qualifying data yields nulls, never zeros and never an error.
type StationPeriodStats struct {
	StationID string    `json:"station_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Rainfall measures
	TotalRainfall       *float64 `json:"total_rainfall"`
	RainyDays           *int     `json:"rainy_days"`
	LongestRainyRun     *int     `json:"longest_rainy_run"`
	LongestDryRun       *int     `json:"longest_dry_run"`
	RainfallIntensity   *float64 `json:"rainfall_intensity"`
	RainfallVariability *float64 `json:"rainfall_variability"`

	// Temperature measures
	AvgTempRange    *float64 `json:"avg_temp_range"`
	TempVariability *float64 `json:"temp_variability"`
	DaysAbove30C    *int     `json:"days_above_30c"`
	DaysBelow0C     *int     `json:"days_below_0c"`

	// Extremes
	WettestDay *ExtremeDay `json:"wettest_day"`
	HottestDay *ExtremeDay `json:"hottest_day"`
	ColdestDay *ExtremeDay `json:"coldest_day"`
}
