package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *Report {
	return &Report{
		Generators: []GeneratorStats{{
			GeneratorID:       uuid.New(),
			Name:              "Alpha, North",
			TotalRuntimeHours: 2,
			TotalFuelConsumed: 20,
			TotalCost:         1866.67,
			AverageEfficiency: 10,
			CostPerHour:       933.33,
			RuntimeTotal:      2,
			FuelConsumedTotal: 20,
			CostTotal:         1866.67,
		}},
		Overall: Summary{GeneratorCount: 1, TotalRuntimeHours: 2, TotalFuelConsumed: 20, TotalCost: 1866.67, AverageEfficiency: 10, WeightedAverageRate: 93.33},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records[0]) != 16 || records[0][0] != "Generator" || records[0][15] != "Cost (Total)" {
		t.Fatalf("unexpected header %v", records[0])
	}
	row := records[1]
	if row[0] != "Alpha, North" || row[4] != "1866.67" || row[6] != "933.33" {
		t.Fatalf("unexpected row %v", row)
	}
	last := records[len(records)-1]
	if last[0] != "Weighted Average Rate (₹/L)" || last[1] != "93.33" {
		t.Fatalf("unexpected summary tail %v", last)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleReport()); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	name, err := f.GetCellValue(sheetName, "A2")
	if err != nil || name != "Alpha, North" {
		t.Fatalf("A2 = %q, %v", name, err)
	}
	summary, _ := f.GetCellValue(sheetName, "A4")
	if summary != "Summary" {
		t.Fatalf("A4 = %q, want Summary", summary)
	}
}

func TestFilenameAndFormat(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	rep := &Report{Period: Period{Start: &start, End: &end}}
	if got := Filename(rep, FormatCSV, end); got != "generator-report-2025-05-01-to-2025-05-31.csv" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename(&Report{}, FormatXLSX, end); got != "generator-report-all-to-2025-05-31.xlsx" {
		t.Errorf("Filename = %q", got)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected pdf to be rejected")
	}
	if f, _ := ParseFormat(""); f != FormatCSV {
		t.Errorf("default format = %q, want csv", f)
	}
}
