package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv or xlsx; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

type column struct {
	label string
	value func(GeneratorStats) any
}

var columns = []column{
	{"Generator", func(g GeneratorStats) any { return g.Name }},
	{"Runtime (hrs)", func(g GeneratorStats) any { return g.TotalRuntimeHours }},
	{"Fuel Consumed (L)", func(g GeneratorStats) any { return g.TotalFuelConsumed }},
	{"Fuel Received (L)", func(g GeneratorStats) any { return g.TotalFuelReceived }},
	{"Cost (₹)", func(g GeneratorStats) any { return g.TotalCost }},
	{"Efficiency (L/hr)", func(g GeneratorStats) any { return g.AverageEfficiency }},
	{"Cost/Hour (₹)", func(g GeneratorStats) any { return g.CostPerHour }},
	{"Runtime (This Month)", func(g GeneratorStats) any { return g.RuntimeThisMonth }},
	{"Runtime (This Year)", func(g GeneratorStats) any { return g.RuntimeThisYear }},
	{"Runtime (Total)", func(g GeneratorStats) any { return g.RuntimeTotal }},
	{"Fuel (This Month)", func(g GeneratorStats) any { return g.FuelConsumedThisMonth }},
	{"Fuel (This Year)", func(g GeneratorStats) any { return g.FuelConsumedThisYear }},
	{"Fuel (Total)", func(g GeneratorStats) any { return g.FuelConsumedTotal }},
	{"Cost (This Month)", func(g GeneratorStats) any { return g.CostThisMonth }},
	{"Cost (This Year)", func(g GeneratorStats) any { return g.CostThisYear }},
	{"Cost (Total)", func(g GeneratorStats) any { return g.CostTotal }},
}

func summaryRows(s Summary) [][2]any {
	return [][2]any{
		{"Generators", s.GeneratorCount},
		{"Total Runtime (hrs)", s.TotalRuntimeHours},
		{"Total Fuel Consumed (L)", s.TotalFuelConsumed},
		{"Total Fuel Received (L)", s.TotalFuelReceived},
		{"Total Cost (₹)", s.TotalCost},
		{"Average Efficiency (L/hr)", s.AverageEfficiency},
		{"Weighted Average Rate (₹/L)", s.WeightedAverageRate},
	}
}

func cellText(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Filename is generator-report-<start>-to-<end>.<ext>. A report without a
// period is named from "all" to today.
func Filename(rep *Report, f Format, now time.Time) string {
	start, end := "all", now.Format("2006-01-02")
	if rep.Period.Start != nil && rep.Period.End != nil {
		start = rep.Period.Start.Format("2006-01-02")
		end = rep.Period.End.Format("2006-01-02")
	}
	return fmt.Sprintf("generator-report-%s-to-%s.%s", start, end, f)
}

// Write renders rep in format f.
func Write(w io.Writer, rep *Report, f Format) error {
	if f == FormatXLSX {
		return WriteXLSX(w, rep)
	}
	return WriteCSV(w, rep)
}

// WriteCSV writes one row per generator followed by a summary block.
func WriteCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.label
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, g := range rep.Generators {
		record := make([]string, len(columns))
		for i, c := range columns {
			record[i] = cellText(c.value(g))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	_ = cw.Write([]string{})
	_ = cw.Write([]string{"Summary"})
	for _, row := range summaryRows(rep.Overall) {
		_ = cw.Write([]string{cellText(row[0]), cellText(row[1])})
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Generators"

// WriteXLSX writes the same layout as WriteCSV into a styled workbook.
func WriteXLSX(w io.Writer, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	summaryStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E7E6E6"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, c.label); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetColWidth(sheetName, "A", lastCol, 18); err != nil {
		return err
	}

	for r, g := range rep.Generators {
		for i, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(sheetName, cell, c.value(g)); err != nil {
				return err
			}
		}
	}

	row := len(rep.Generators) + 3
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetCellValue(sheetName, cell, "Summary")
	_ = f.SetCellStyle(sheetName, cell, cell, summaryStyle)
	for _, kv := range summaryRows(rep.Overall) {
		row++
		keyCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheetName, keyCell, kv[0])
		_ = f.SetCellValue(sheetName, valueCell, kv[1])
	}

	_, err = f.WriteTo(w)
	return err
}
