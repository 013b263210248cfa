package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationIDFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "rainfall product file", filename: "IDCJAC0009_1000_1800_Data.csv", want: "001000"},
		{name: "full path", filename: "/data/daily/IDCJAC0010_040004_1800_Data.csv", want: "040004"},
		{name: "no id token", filename: "Data.csv", wantErr: true},
		{name: "non-numeric id token", filename: "IDCJAC0009_notanid_1800.csv", wantErr: true},
		{name: "empty id token", filename: "IDCJAC0009__1800.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StationIDFromFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDailyCSV(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))

	input := strings.Join([]string{
		"Product code,Bureau of Meteorology station number,Year,Month,Day,Rainfall amount (millimetres),Period over which rainfall was measured (days),Quality",
		"IDCJAC0009,001000,2022,1,1,4.2,1,Y",
		"IDCJAC0009,001000,2022,1,2,,1,Y",
		"IDCJAC0009,001000,2022,1,3,0,1,Y",
		"IDCJAC0009,001000,2022,2,30,1.0,1,Y",
		"IDCJAC0009,001000,2022,13,1,1.0,1,Y",
	}, "\n")

	var skipped int
	observations, cols, err := ParseDailyCSV(strings.NewReader(input), "001000", clock, func(lineNo int, err error) {
		skipped++
	})
	require.NoError(t, err)

	// Feb 30 and month 13 are not calendar dates; both rows skipped.
	require.Len(t, observations, 3)
	assert.Equal(t, 2, skipped)

	require.NotNil(t, observations[0].Rainfall)
	assert.Equal(t, 4.2, *observations[0].Rainfall)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), observations[0].Date)

	// A blank cell is null, never zero.
	assert.Nil(t, observations[1].Rainfall)

	// A literal zero stays zero.
	require.NotNil(t, observations[2].Rainfall)
	assert.Equal(t, 0.0, *observations[2].Rainfall)

	// Rainfall-only product carries no temperature columns.
	for _, obs := range observations {
		assert.Nil(t, obs.MinTemp)
		assert.Nil(t, obs.MaxTemp)
	}
	assert.True(t, cols.Rainfall)
	assert.False(t, cols.MinTemp)
	assert.False(t, cols.MaxTemp)
}

func TestParseDailyCSV_TemperatureProduct(t *testing.T) {
	clock := clockwork.NewFakeClock()

	input := strings.Join([]string{
		"Product code,Bureau of Meteorology station number,Year,Month,Day,Maximum temperature (Degree C),Days of accumulation of maximum temperature,Quality",
		"IDCJAC0010,040004,2022,1,1,31.5,1,Y",
		"IDCJAC0010,040004,2022,1,2,null,1,Y",
	}, "\n")

	observations, cols, err := ParseDailyCSV(strings.NewReader(input), "040004", clock, nil)
	require.NoError(t, err)
	require.Len(t, observations, 2)

	// A per-metric product reports only its own column as carried.
	assert.False(t, cols.Rainfall)
	assert.False(t, cols.MinTemp)
	assert.True(t, cols.MaxTemp)

	require.NotNil(t, observations[0].MaxTemp)
	assert.Equal(t, 31.5, *observations[0].MaxTemp)

	// Non-numeric cells on an otherwise valid row are null values, not
	// skipped rows.
	assert.Nil(t, observations[1].MaxTemp)
}

func TestParseDailyCSV_BadHeader(t *testing.T) {
	clock := clockwork.NewFakeClock()

	_, _, err := ParseDailyCSV(strings.NewReader("Product code,Station,Quality\nIDCJAC0009,001000,Y\n"), "001000", clock, nil)
	assert.Error(t, err)

	_, _, err = ParseDailyCSV(strings.NewReader(""), "001000", clock, nil)
	assert.Error(t, err)
}
