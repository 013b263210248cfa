package ingest

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"weather-explorer/internal/models"
)

// Column describes one fixed-width field of the station roster, located by
// byte offsets into the line. End of -1 means "to end of line".
type Column struct {
	Label string
	Start int
	End   int
}

// RosterSchema is the schema descriptor derived from the roster's header row.
// Column boundaries come from the header labels' positions, so format drift
// in the source file is handled by re-deriving offsets, not editing constants.
type RosterSchema struct {
	Columns []Column
}

// Indexes into the header-derived columns. The roster header reads
// "Site Dist Site name Start End Lat Lon Source STA Height (m) ...";
// whitespace splitting breaks "Site name" into two labels and "Height (m)"
// into two, which is why the name spans two columns and the height label is
// "Height". This mapping is brittle by construction and tracks the upstream
// file exactly.
const (
	colID        = 0
	colNameFirst = 2
	colNameLast  = 3
	colStartYear = 4
	colEndYear   = 5
	colLatitude  = 6
	colLongitude = 7
	colState     = 9
	colHeight    = 10

	rosterMinColumns = 11
)

// openEndSentinel marks a still-operating station or an unknown height in the
// roster. For end years it maps to the current year at import time; for
// heights it maps to null.
const openEndSentinel = ".."

var summaryLineRe = regexp.MustCompile(`^\s*(\d+)\s+stations?\s*$`)

// DeriveRosterSchema computes column offsets from a header row. Each
// whitespace-delimited label starts a column; a column extends to the start
// of the next label.
func DeriveRosterSchema(header string) (*RosterSchema, error) {
	var cols []Column

	inLabel := false
	for i, r := range header {
		isSpace := r == ' ' || r == '\t'
		if !isSpace && !inLabel {
			cols = append(cols, Column{Start: i, End: -1})
			inLabel = true
		} else if isSpace && inLabel {
			inLabel = false
		}
	}

	for i := range cols {
		end := len(header)
		if i+1 < len(cols) {
			end = cols[i+1].Start
		}
		label := strings.TrimSpace(header[cols[i].Start:end])
		cols[i].Label = label
		if i+1 < len(cols) {
			cols[i].End = cols[i+1].Start
		}
	}

	if len(cols) < rosterMinColumns {
		return nil, &models.ValidationError{
			Field:   "header",
			Value:   header,
			Message: "roster header has too few columns",
		}
	}

	return &RosterSchema{Columns: cols}, nil
}

// Field extracts and trims the column at index idx from a data line.
func (s *RosterSchema) Field(line string, idx int) string {
	return strings.TrimSpace(s.span(line, idx, idx))
}

// span returns the raw text covered by columns [from, to] inclusive.
func (s *RosterSchema) span(line string, from, to int) string {
	if from < 0 || to >= len(s.Columns) {
		return ""
	}
	start := s.Columns[from].Start
	if start >= len(line) {
		return ""
	}
	end := s.Columns[to].End
	if end < 0 || end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

// IsSummaryLine reports whether a roster line is the trailing
// "<count> stations" summary that signals end-of-data.
func IsSummaryLine(line string) bool {
	return summaryLineRe.MatchString(line)
}

// ParseRosterLine parses one fixed-width station line against the schema.
// An end year of ".." maps to the clock's current year so the station is
// included in active range queries; a height of ".." maps to null.
func ParseRosterLine(schema *RosterSchema, line string, clock clockwork.Clock) (*models.Station, error) {
	rawID := schema.Field(line, colID)
	if rawID == "" {
		return nil, &models.ValidationError{Field: "station_id", Value: rawID, Message: "empty station id"}
	}
	if _, err := strconv.Atoi(rawID); err != nil {
		return nil, &models.ValidationError{Field: "station_id", Value: rawID, Message: "non-numeric station id"}
	}

	lat, err := strconv.ParseFloat(schema.Field(line, colLatitude), 64)
	if err != nil {
		return nil, &models.ValidationError{Field: "latitude", Value: schema.Field(line, colLatitude), Message: "unparseable latitude"}
	}

	lon, err := strconv.ParseFloat(schema.Field(line, colLongitude), 64)
	if err != nil {
		return nil, &models.ValidationError{Field: "longitude", Value: schema.Field(line, colLongitude), Message: "unparseable longitude"}
	}

	startYear, err := strconv.Atoi(schema.Field(line, colStartYear))
	if err != nil {
		return nil, &models.ValidationError{Field: "start_year", Value: schema.Field(line, colStartYear), Message: "unparseable start year"}
	}

	endYear := 0
	rawEnd := schema.Field(line, colEndYear)
	if rawEnd == openEndSentinel || rawEnd == "" {
		endYear = clock.Now().Year()
	} else {
		endYear, err = strconv.Atoi(rawEnd)
		if err != nil {
			return nil, &models.ValidationError{Field: "end_year", Value: rawEnd, Message: "unparseable end year"}
		}
	}

	var height *float64
	if rawHeight := schema.Field(line, colHeight); rawHeight != "" && rawHeight != openEndSentinel {
		if h, err := strconv.ParseFloat(rawHeight, 64); err == nil {
			height = &h
		}
	}

	now := clock.Now().UTC()
	return &models.Station{
		StationID: models.PadStationID(rawID),
		Name:      strings.TrimSpace(schema.span(line, colNameFirst, colNameLast)),
		Latitude:  lat,
		Longitude: lon,
		Height:    height,
		State:     schema.Field(line, colState),
		StartYear: startYear,
		EndYear:   endYear,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RosterResult carries the outcome of a roster parse.
type RosterResult struct {
	Stations     []*models.Station
	SkippedLines int
}

// looksLikeHeader matches the roster's column label row.
func looksLikeHeader(line string) bool {
	return strings.Contains(line, "Site") && strings.Contains(line, "Lat")
}

// ParseRoster reads a full fixed-width roster. Preamble lines before the
// header row are ignored, unparseable station lines are reported through
// onSkip and skipped, and the "<count> stations" summary line terminates
// parsing.
func ParseRoster(r io.Reader, clock clockwork.Clock, onSkip func(lineNo int, line string, err error)) (*RosterResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	result := &RosterResult{}

	var schema *RosterSchema
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if schema == nil {
			if looksLikeHeader(line) {
				derived, err := DeriveRosterSchema(line)
				if err != nil {
					return nil, err
				}
				schema = derived
			}
			continue
		}

		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "-") {
			continue
		}

		if IsSummaryLine(line) {
			break
		}

		station, err := ParseRosterLine(schema, line, clock)
		if err != nil {
			result.SkippedLines++
			if onSkip != nil {
				onSkip(lineNo, line, err)
			}
			continue
		}

		result.Stations = append(result.Stations, station)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if schema == nil {
		return nil, &models.ValidationError{Field: "roster", Message: "no header row found"}
	}

	return result, nil
}
