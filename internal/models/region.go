package models

import "encoding/json"

// Region is an SA4 statistical-area boundary. Immutable reference data loaded
// once from a shapefile-derived GeoJSON source.
type Region struct {
	SA4Code   string          `json:"sa4_code21" db:"sa4_code21"`
	Name      string          `json:"sa4_name21" db:"sa4_name21"`
	StateName string          `json:"state_name21" db:"state_name21"`
	AreaSqKm  *float64        `json:"area_sqkm,omitempty" db:"area_sqkm"`
	Geometry  json.RawMessage `json:"geometry,omitempty" db:"geometry"`
}

// RegionMonthlyAggregate is one row of the materialized regional rollup:
// arithmetic means over all station-days in the region and period with
// non-null values for the respective metric.
type RegionMonthlyAggregate struct {
	SA4Code  string   `json:"sa4_code" db:"sa4_code"`
	Year     int      `json:"year" db:"year"`
	Month    int      `json:"month" db:"month"`
	Rainfall *float64 `json:"rainfall" db:"rainfall"`
	MaxTemp  *float64 `json:"max_temp" db:"max_temp"`
	MinTemp  *float64 `json:"min_temp" db:"min_temp"`
}

// RegionYearlyAggregate is the yearly counterpart of RegionMonthlyAggregate.
type RegionYearlyAggregate struct {
	SA4Code  string   `json:"sa4_code" db:"sa4_code"`
	Year     int      `json:"year" db:"year"`
	Rainfall *float64 `json:"rainfall" db:"rainfall"`
	MaxTemp  *float64 `json:"max_temp" db:"max_temp"`
	MinTemp  *float64 `json:"min_temp" db:"min_temp"`
}

// RegionSummary pairs a region with its station membership count and, when
// available, current aggregate values. Regions with zero stations still
// appear (left join semantics).
type RegionSummary struct {
	SA4Code      string   `json:"sa4_code" db:"sa4_code21"`
	Name         string   `json:"sa4_name" db:"sa4_name21"`
	StateName    string   `json:"state_name" db:"state_name21"`
	StationCount int      `json:"station_count" db:"station_count"`
	Rainfall     *float64 `json:"rainfall,omitempty" db:"rainfall"`
	MaxTemp      *float64 `json:"max_temp,omitempty" db:"max_temp"`
	MinTemp      *float64 `json:"min_temp,omitempty" db:"min_temp"`
}
