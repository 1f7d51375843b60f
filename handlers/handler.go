package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/apperr"
	"p9e.in/genfuel/pkg/archive"
	"p9e.in/genfuel/pkg/ledger"
	"p9e.in/genfuel/pkg/report"
	"p9e.in/genfuel/pkg/store"
)

const maxBodyBytes = 1 << 20

// Options wires the handler dependencies.
type Options struct {
	Store   store.Store
	Ledger  *ledger.Service
	Reports *report.Builder
	Archive archive.Store
	JWT     *middleware.JWT
	// DevMode exposes internal error text in 500 responses.
	DevMode bool
}

type Handler struct {
	store   store.Store
	ledger  *ledger.Service
	reports *report.Builder
	archive archive.Store
	jwt     *middleware.JWT
	devMode bool
	now     func() time.Time
}

func New(opts Options) *Handler {
	return &Handler{
		store:   opts.Store,
		ledger:  opts.Ledger,
		reports: opts.Reports,
		archive: opts.Archive,
		jwt:     opts.JWT,
		devMode: opts.DevMode,
		now:     time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError picks the status from the error's kind. Unclassified errors
// are logged and hidden unless running in development.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if kind := apperr.KindOf(err); kind != apperr.Internal {
		msg, _ := apperr.Message(err)
		writeError(w, kind.Status(), msg)
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
		return
	}

	middleware.Logger(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	msg := "internal server error"
	if h.devMode {
		msg = err.Error()
	}
	writeError(w, http.StatusInternalServerError, msg)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validationf("request body is required")
		}
		return apperr.Validationf("invalid JSON")
	}
	return nil
}

// decodePatch reads a JSON object and rejects keys outside allowed.
func decodePatch(r *http.Request, allowed ...string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		return nil, err
	}
	for k := range raw {
		if !slices.Contains(allowed, k) {
			return nil, apperr.Validationf("invalid updates")
		}
	}
	return raw, nil
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validationf("invalid %s", what)
	}
	return id, nil
}

// currentUser loads the authenticated caller.
func (h *Handler) currentUser(r *http.Request) (models.User, error) {
	id := middleware.GetUserID(r)
	if id == uuid.Nil {
		return models.User{}, apperr.New(apperr.Unauthorized, "not authenticated")
	}
	u, err := h.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperr.New(apperr.Unauthorized, "user no longer exists")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load current user: %w", err)
	}
	return u, nil
}

// actor builds the ledger actor from the request claims.
func actor(r *http.Request) ledger.Actor {
	a := ledger.Actor{ID: middleware.GetUserID(r)}
	if c := middleware.GetClaims(r); c != nil {
		a.Name = c.Name
	}
	return a
}

// Health reports liveness and store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		middleware.Logger(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
