package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/pkg/apperr"
	"p9e.in/genfuel/pkg/report"
	"p9e.in/genfuel/utils"
)

// buildReport parses the optional date range and builds the report.
func (h *Handler) buildReport(r *http.Request) (*report.Report, error) {
	rng, err := utils.ParseDateRange(r.URL.Query())
	if err != nil {
		return nil, apperr.Validationf("%s", err.Error())
	}
	return h.reports.Build(r.Context(), rng)
}

// renderReport builds the report in the requested format.
func (h *Handler) renderReport(r *http.Request) ([]byte, string, report.Format, error) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return nil, "", "", apperr.Validationf("%s", err.Error())
	}
	rep, err := h.buildReport(r)
	if err != nil {
		return nil, "", "", err
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, rep, format); err != nil {
		return nil, "", "", fmt.Errorf("render %s report: %w", format, err)
	}
	return buf.Bytes(), report.Filename(rep, format, h.now()), format, nil
}

// GeneratorReport returns per-generator statistics and the overall summary.
func (h *Handler) GeneratorReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.buildReport(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ExportGeneratorReport streams the report as a CSV or XLSX download.
func (h *Handler) ExportGeneratorReport(w http.ResponseWriter, r *http.Request) {
	data, name, format, err := h.renderReport(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ArchiveGeneratorReport stores a rendered report in the archive.
func (h *Handler) ArchiveGeneratorReport(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive is not configured")
		return
	}
	data, name, format, err := h.renderReport(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	obj, err := h.archive.Put(r.Context(), name, format.ContentType(), data)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("archive report: %w", err))
		return
	}
	middleware.Logger(r.Context()).Info("report archived", "name", obj.Name, "size", obj.Size)
	writeJSON(w, http.StatusCreated, obj)
}
