// Package report renders historical series as spreadsheets.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/albapepper/vitalsync/internal/provider"
)

const sheetName = "History"

var headers = []string{
	"Date", "Heart Rate (bpm)", "Steps", "Sleep (h)",
	"Systolic (mmHg)", "Diastolic (mmHg)", "Oxygen (%)",
}

var columnWidths = []float64{12, 16, 10, 10, 16, 17, 12}

// SeriesXLSX renders the series as a single-sheet workbook. Zero cells mean
// no samples that day and are left blank. A trailing row records the health
// score and the data source.
func SeriesXLSX(s provider.Series) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, h := range headers {
		if err := setCell(f, col+1, 1, h); err != nil {
			f.Close()
			return nil, err
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheetName, name, name, columnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", "G1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("set header style: %w", err)
	}

	for i, d := range s.Days {
		row := i + 2
		values := []any{
			d.Date.Format("2006-01-02"),
			blankZero(d.HeartRate),
			blankZeroInt(d.Steps),
			blankZero(d.SleepHours),
			blankZero(d.Systolic),
			blankZero(d.Diastolic),
			blankZero(d.OxygenSaturation),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := setCell(f, col+1, row, v); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	footer := len(s.Days) + 3
	if err := setCell(f, 1, footer, "Health score"); err != nil {
		f.Close()
		return nil, err
	}
	if err := setCell(f, 2, footer, s.HealthScore()); err != nil {
		f.Close()
		return nil, err
	}
	if err := setCell(f, 1, footer+1, "Source"); err != nil {
		f.Close()
		return nil, err
	}
	if err := setCell(f, 2, footer+1, s.Source); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func blankZero(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func blankZeroInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
