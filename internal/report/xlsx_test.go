package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/albapepper/vitalsync/internal/provider"
)

func TestSeriesXLSX_Layout(t *testing.T) {
	day := time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)
	s := provider.Series{
		MemberID: "mom",
		Period:   provider.PeriodWeek,
		Source:   provider.SourceProvider,
		Days: []provider.DayReading{
			{Date: day, HeartRate: 72.5, Steps: 8000, SleepHours: 7.5, Systolic: 120, Diastolic: 80, OxygenSaturation: 98},
			{Date: day.AddDate(0, 0, 1)},
		},
	}

	raw, err := SeriesXLSX(s)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 5)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"2026-05-09", "72.5", "8000", "7.5", "120", "80", "98"}, rows[1])
	assert.Equal(t, []string{"2026-05-10"}, rows[2], "empty days stay blank")

	score, err := f.GetCellValue(sheetName, "B5")
	require.NoError(t, err)
	assert.Equal(t, "Health score", mustCell(t, f, "A5"))
	assert.NotEmpty(t, score)
	assert.Equal(t, provider.SourceProvider, mustCell(t, f, "B6"))
}

func mustCell(t *testing.T, f *excelize.File, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheetName, cell)
	require.NoError(t, err)
	return v
}
