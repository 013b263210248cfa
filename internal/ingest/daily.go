package ingest

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"weather-explorer/internal/models"
)

// dailyColumns locates the fields of a per-station daily CSV by header name.
// Rainfall-only files carry no temperature columns; either temperature file
// carries one of them. An index of -1 means the column is absent.
type dailyColumns struct {
	year     int
	month    int
	day      int
	rainfall int
	maxTemp  int
	minTemp  int
}

func (c *dailyColumns) metricColumns() models.MetricColumns {
	return models.MetricColumns{
		Rainfall: c.rainfall >= 0,
		MinTemp:  c.minTemp >= 0,
		MaxTemp:  c.maxTemp >= 0,
	}
}

// StationIDFromFilename extracts the station id encoded in a daily data
// filename: the second underscore-delimited token, left-padded to 6 digits
// ("IDCJAC0009_1000_1800_Data.csv" -> "001000").
func StationIDFromFilename(name string) (string, error) {
	base := filepath.Base(name)
	parts := strings.Split(base, "_")
	if len(parts) < 2 || parts[1] == "" {
		return "", &models.ValidationError{
			Field:   "filename",
			Value:   base,
			Message: "no station id token in filename",
		}
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return "", &models.ValidationError{
			Field:   "filename",
			Value:   base,
			Message: "non-numeric station id token in filename",
		}
	}
	return models.PadStationID(parts[1]), nil
}

func resolveDailyColumns(header []string) (*dailyColumns, error) {
	cols := &dailyColumns{year: -1, month: -1, day: -1, rainfall: -1, maxTemp: -1, minTemp: -1}

	for i, label := range header {
		label = strings.TrimSpace(label)
		switch {
		case strings.EqualFold(label, "Year"):
			cols.year = i
		case strings.EqualFold(label, "Month"):
			cols.month = i
		case strings.EqualFold(label, "Day"):
			cols.day = i
		case strings.HasPrefix(label, "Rainfall amount"):
			cols.rainfall = i
		case strings.HasPrefix(label, "Maximum temperature"):
			cols.maxTemp = i
		case strings.HasPrefix(label, "Minimum temperature"):
			cols.minTemp = i
		}
	}

	if cols.year < 0 || cols.month < 0 || cols.day < 0 {
		return nil, &models.ValidationError{
			Field:   "header",
			Value:   strings.Join(header, ","),
			Message: "daily CSV header missing Year/Month/Day columns",
		}
	}
	if cols.rainfall < 0 && cols.maxTemp < 0 && cols.minTemp < 0 {
		return nil, &models.ValidationError{
			Field:   "header",
			Value:   strings.Join(header, ","),
			Message: "daily CSV header carries no metric columns",
		}
	}

	return cols, nil
}

// nullableFloat parses a metric cell. Blank or non-numeric means null, never
// zero.
func nullableFloat(cell string) *float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &v
}

func cellAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// ParseDailyCSV reads one station's daily observation CSV. Rows with an
// unparseable calendar date are reported through onSkip and skipped; metric
// cells that are blank or non-numeric become null values on an otherwise
// valid row. The returned MetricColumns reports which value columns the file
// carries so writers can leave the other products' columns untouched.
func ParseDailyCSV(r io.Reader, stationID string, clock clockwork.Clock, onSkip func(lineNo int, err error)) ([]*models.DailyObservation, models.MetricColumns, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, models.MetricColumns{}, &models.ValidationError{Field: "header", Message: "daily CSV has no header row"}
	}

	cols, err := resolveDailyColumns(header)
	if err != nil {
		return nil, models.MetricColumns{}, err
	}

	var observations []*models.DailyObservation
	now := clock.Now().UTC()

	lineNo := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			if onSkip != nil {
				onSkip(lineNo, err)
			}
			continue
		}

		year, errY := strconv.Atoi(strings.TrimSpace(cellAt(record, cols.year)))
		month, errM := strconv.Atoi(strings.TrimSpace(cellAt(record, cols.month)))
		day, errD := strconv.Atoi(strings.TrimSpace(cellAt(record, cols.day)))
		if errY != nil || errM != nil || errD != nil {
			if onSkip != nil {
				onSkip(lineNo, &models.ValidationError{Field: "date", Message: "unparseable year/month/day"})
			}
			continue
		}

		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
			if onSkip != nil {
				onSkip(lineNo, &models.ValidationError{Field: "date", Message: "invalid calendar date"})
			}
			continue
		}

		observations = append(observations, &models.DailyObservation{
			StationID: stationID,
			Date:      date,
			Rainfall:  nullableFloat(cellAt(record, cols.rainfall)),
			MaxTemp:   nullableFloat(cellAt(record, cols.maxTemp)),
			MinTemp:   nullableFloat(cellAt(record, cols.minTemp)),
			CreatedAt: now,
		})
	}

	return observations, cols.metricColumns(), nil
}
