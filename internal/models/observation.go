package models

import "time"

// DailyObservation represents one row of the raw observation store, keyed by
// (station id, calendar date). It is the immutable source of truth for all
// rollups; re-imports upsert the value fields in place.
type DailyObservation struct {
	StationID string    `json:"station_id" db:"station_id"`
	Date      time.Time `json:"date" db:"date"`
	Rainfall  *float64  `json:"rainfall" db:"rainfall"`
	MinTemp   *float64  `json:"min_temp" db:"min_temp"`
	MaxTemp   *float64  `json:"max_temp" db:"max_temp"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MetricColumns records which value columns a daily data product carries.
// Rainfall and each temperature arrive as separate per-station files, so
// upserts update only the carried columns; otherwise importing one product
// would null out the values stored by another.
type MetricColumns struct {
	Rainfall bool
	MinTemp  bool
	MaxTemp  bool
}

// StationMonthlyRollup is the materialized per-station monthly series.
// Rainfall is the period sum; temperatures are means of non-null daily values.
type StationMonthlyRollup struct {
	StationID  string   `json:"station_id" db:"station_id"`
	Year       int      `json:"year" db:"year"`
	Month      int      `json:"month" db:"month"`
	Rainfall   *float64 `json:"rainfall" db:"rainfall"`
	AvgMinTemp *float64 `json:"avg_min_temp" db:"avg_min_temp"`
	AvgMaxTemp *float64 `json:"avg_max_temp" db:"avg_max_temp"`
}

// StationYearlyRollup is the materialized per-station yearly series.
type StationYearlyRollup struct {
	StationID  string   `json:"station_id" db:"station_id"`
	Year       int      `json:"year" db:"year"`
	Rainfall   *float64 `json:"rainfall" db:"rainfall"`
	AvgMinTemp *float64 `json:"avg_min_temp" db:"avg_min_temp"`
	AvgMaxTemp *float64 `json:"avg_max_temp" db:"avg_max_temp"`
}
