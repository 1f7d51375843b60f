package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/apperr"
	"p9e.in/genfuel/pkg/store"
	"p9e.in/genfuel/utils"
)

var errGeneratorNotFound = apperr.New(apperr.NotFound, "generator not found")

type createGeneratorReq struct {
	Name           string     `json:"name"`
	Capacity       float64    `json:"capacity"`
	Location       string     `json:"location"`
	FuelEfficiency float64    `json:"fuelEfficiency"`
	OperatorID     *uuid.UUID `json:"operatorId"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
}

// checkOperator verifies that id, when set, names an existing user.
func (h *Handler) checkOperator(r *http.Request, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	_, err := h.store.GetUser(r.Context(), *id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.NotFound, "operator not found")
	}
	return err
}

func (h *Handler) CreateGenerator(w http.ResponseWriter, r *http.Request) {
	var req createGeneratorReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		h.respondError(w, r, apperr.Validationf("name is required"))
		return
	case req.Capacity <= 0:
		h.respondError(w, r, apperr.Validationf("capacity must be greater than 0"))
		return
	case req.FuelEfficiency <= 0:
		h.respondError(w, r, apperr.Validationf("fuelEfficiency must be greater than 0"))
		return
	}
	if err := utils.ValidateOptionalCoordinate(req.Latitude, req.Longitude); err != nil {
		h.respondError(w, r, apperr.Validationf("%s", err.Error()))
		return
	}
	if err := h.checkOperator(r, req.OperatorID); err != nil {
		h.respondError(w, r, err)
		return
	}

	g := models.Generator{
		Name:           req.Name,
		Capacity:       utils.Round2(req.Capacity),
		Location:       strings.TrimSpace(req.Location),
		FuelEfficiency: req.FuelEfficiency,
		OperatorID:     req.OperatorID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	}
	if err := h.store.CreateGenerator(r.Context(), &g); err != nil {
		h.respondError(w, r, err)
		return
	}
	created, err := h.store.GetGenerator(r.Context(), g.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.Logger(r.Context()).Info("generator created", "generator_id", g.ID, "name", g.Name)
	writeJSON(w, http.StatusCreated, created)
}

// UpdateGenerator patches name, location, operatorId, latitude or longitude.
// A null operatorId unassigns the generator.
func (h *Handler) UpdateGenerator(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"], "generator id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	raw, err := decodePatch(r, "name", "location", "operatorId", "latitude", "longitude")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	g, err := h.store.GetGenerator(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, r, errGeneratorNotFound)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	targets := map[string]any{
		"name":       &g.Name,
		"location":   &g.Location,
		"operatorId": &g.OperatorID,
		"latitude":   &g.Latitude,
		"longitude":  &g.Longitude,
	}
	for k, v := range raw {
		if err := json.Unmarshal(v, targets[k]); err != nil {
			h.respondError(w, r, apperr.Validationf("invalid %s", k))
			return
		}
	}
	g.Name = strings.TrimSpace(g.Name)
	g.Location = strings.TrimSpace(g.Location)
	if g.Name == "" {
		h.respondError(w, r, apperr.Validationf("name is required"))
		return
	}
	if err := utils.ValidateOptionalCoordinate(g.Latitude, g.Longitude); err != nil {
		h.respondError(w, r, apperr.Validationf("%s", err.Error()))
		return
	}
	if _, ok := raw["operatorId"]; ok {
		if err := h.checkOperator(r, g.OperatorID); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	if err := h.store.UpdateGeneratorDetails(r.Context(), &g); err != nil {
		h.respondError(w, r, err)
		return
	}
	updated, err := h.store.GetGenerator(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// visibleGenerators lists every generator for admins and only the caller's
// own for workers.
func (h *Handler) visibleGenerators(r *http.Request) ([]models.Generator, error) {
	var operator *uuid.UUID
	if middleware.GetRole(r) != string(models.RoleAdmin) {
		id := middleware.GetUserID(r)
		operator = &id
	}
	gens, err := h.store.ListGenerators(r.Context(), operator)
	if err != nil {
		return nil, err
	}
	if gens == nil {
		gens = []models.Generator{}
	}
	return gens, nil
}

func (h *Handler) ListGenerators(w http.ResponseWriter, r *http.Request) {
	gens, err := h.visibleGenerators(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gens)
}

// GeneratorMap returns the visible generators as a GeoJSON FeatureCollection.
func (h *Handler) GeneratorMap(w http.ResponseWriter, r *http.Request) {
	gens, err := h.visibleGenerators(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	fc := utils.GeneratorFeatureCollection(gens)
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(fc)
}

func (h *Handler) GetGenerator(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"], "generator id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	g, err := h.store.GetGenerator(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, r, errGeneratorNotFound)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	// workers may only see generators they operate
	if middleware.GetRole(r) != string(models.RoleAdmin) && !g.OperatedBy(middleware.GetUserID(r)) {
		h.respondError(w, r, errGeneratorNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
