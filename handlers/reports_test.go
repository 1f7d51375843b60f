package handlers

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"p9e.in/genfuel/pkg/archive"
)

func (e *testEnv) seedReport(t *testing.T) {
	t.Helper()
	e.setupContainer(t, 5000, 100)
	g := e.createGenerator(t, map[string]any{"name": "G1", "capacity": 500, "fuelEfficiency": 10, "operatorId": e.worker.ID})
	e.do(t, e.h.TransferToGenerator, call{method: "POST", path: "/api/fuel/generator/transfer",
		body: map[string]any{"generatorId": g.ID, "amount": 60}, as: &e.admin})
	start := time.Now().Add(-3 * time.Hour).UTC()
	rr := e.do(t, e.h.AddRunLog, call{method: "POST", path: "/api/fuel/generator/run-log", as: &e.worker,
		body: map[string]any{"generatorId": g.ID, "startTime": start, "endTime": start.Add(2 * time.Hour)}})
	if rr.Code != http.StatusOK {
		t.Fatalf("run log: %d %s", rr.Code, rr.Body.String())
	}
}

func TestGeneratorReport(t *testing.T) {
	env := newTestEnv(t)
	env.seedReport(t)

	rr := env.do(t, env.h.GeneratorReport, call{method: "GET", path: "/api/fuel/reports/generators", as: &env.admin})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	rep := decode[struct {
		Generators []struct {
			Name              string  `json:"name"`
			TotalRuntimeHours float64 `json:"totalRuntimeHours"`
			TotalFuelConsumed float64 `json:"totalFuelConsumed"`
			TotalCost         float64 `json:"totalCost"`
		} `json:"generators"`
		Overall struct {
			WeightedAverageRate float64 `json:"weightedAverageRate"`
		} `json:"overall"`
	}](t, rr)
	if len(rep.Generators) != 1 {
		t.Fatalf("generators = %d, want 1", len(rep.Generators))
	}
	g := rep.Generators[0]
	if g.Name != "G1" || g.TotalRuntimeHours != 2 || g.TotalFuelConsumed != 20 || g.TotalCost != 1800 {
		t.Errorf("unexpected stats %+v", g)
	}
	if rep.Overall.WeightedAverageRate != 90 {
		t.Errorf("rate = %v, want 90", rep.Overall.WeightedAverageRate)
	}

	rr = env.do(t, env.h.GeneratorReport, call{method: "GET", path: "/api/fuel/reports/generators?startDate=bad&endDate=2025-01-01", as: &env.admin})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad range: status %d, want 400", rr.Code)
	}
}

func TestExportGeneratorReport(t *testing.T) {
	env := newTestEnv(t)
	env.seedReport(t)

	rr := env.do(t, env.h.ExportGeneratorReport, call{method: "GET", path: "/api/fuel/reports/generators/export", as: &env.admin})
	if rr.Code != http.StatusOK {
		t.Fatalf("csv: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("content type %q", rr.Header().Get("Content-Type"))
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "generator-report-all-to-") {
		t.Errorf("content disposition %q", cd)
	}
	cr := csv.NewReader(bytes.NewReader(rr.Body.Bytes()))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) < 2 || rows[0][0] != "Generator" || rows[1][0] != "G1" {
		t.Errorf("unexpected csv head %v", rows[:2])
	}

	rr = env.do(t, env.h.ExportGeneratorReport, call{method: "GET", path: "/api/fuel/reports/generators/export?format=xlsx", as: &env.admin})
	if rr.Code != http.StatusOK {
		t.Fatalf("xlsx: %d", rr.Code)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Generators", "A2"); v != "G1" {
		t.Errorf("A2 = %q, want G1", v)
	}

	rr = env.do(t, env.h.ExportGeneratorReport, call{method: "GET", path: "/api/fuel/reports/generators/export?format=pdf", as: &env.admin})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unsupported format: status %d, want 400", rr.Code)
	}
}

func TestArchiveGeneratorReport(t *testing.T) {
	env := newTestEnv(t)
	env.seedReport(t)
	dir := t.TempDir()
	env.h.archive = archive.NewLocalStore(dir)

	rr := env.do(t, env.h.ArchiveGeneratorReport, call{method: "POST",
		path: "/api/fuel/reports/generators/archive?startDate=2025-01-01&endDate=2025-01-31", as: &env.admin})
	if rr.Code != http.StatusCreated {
		t.Fatalf("archive: %d %s", rr.Code, rr.Body.String())
	}
	obj := decode[archive.Object](t, rr)
	if obj.Name != "generator-report-2025-01-01-to-2025-01-31.csv" || obj.Size == 0 {
		t.Errorf("unexpected object %+v", obj)
	}
	if _, err := os.Stat(filepath.Join(dir, obj.Name)); err != nil {
		t.Errorf("archived file missing: %v", err)
	}

	env.h.archive = nil
	rr = env.do(t, env.h.ArchiveGeneratorReport, call{method: "POST", path: "/api/fuel/reports/generators/archive", as: &env.admin})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("no archive: status %d, want 503", rr.Code)
	}
}
