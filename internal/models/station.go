package models

import (
	"fmt"
	"strings"
	"time"
)

// Station represents a weather observation station from the BOM roster.
// NULL-able columns are pointers so missing values survive round trips as
// null, never zero.
type Station struct {
	StationID string    `json:"station_id" db:"station_id"`
	Name      string    `json:"station_name" db:"station_name"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Height    *float64  `json:"station_height,omitempty" db:"station_height"`
	State     string    `json:"station_state" db:"station_state"`
	StartYear int       `json:"station_start_year" db:"station_start_year"`
	EndYear   int       `json:"station_end_year" db:"station_end_year"`
	SA4Code   *string   `json:"sa4_code,omitempty" db:"sa4_code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OperatesIn reports whether the station's operating range covers the year.
// Both endpoints are inclusive; an open end year is resolved to the import
// run's current year at parse time, so no special case is needed here.
func (s *Station) OperatesIn(year int) bool {
	return year >= s.StartYear && year <= s.EndYear
}

// PadStationID left-pads a numeric station identifier to the canonical
// 6-digit external representation ("1000" -> "001000").
func PadStationID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 6 {
		return id
	}
	return fmt.Sprintf("%06s", id)
}
