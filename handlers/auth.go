// handlers/auth.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/apperr"
	"p9e.in/genfuel/pkg/store"
)

const minPasswordLen = 6

var errInvalidCredentials = apperr.New(apperr.Unauthorized, "invalid email or password")

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResp struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hashPassword(pw string) (string, error) {
	if len(pw) < minPasswordLen {
		return "", apperr.Validationf("password must be at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, status int, u models.User) {
	token, err := h.jwt.GenerateToken(u)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("generate token: %w", err))
		return
	}
	writeJSON(w, status, authResp{User: u, Token: token})
}

// Register creates an account; role defaults to worker.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" {
		h.respondError(w, r, apperr.Validationf("name is required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		h.respondError(w, r, apperr.Validationf("a valid email is required"))
		return
	}
	// Registration is open to both roles; the first admin of a fresh
	// deployment signs up here unless SEED_ADMIN_EMAIL is configured.
	role := models.RoleWorker
	if req.Role != "" {
		role = models.Role(req.Role)
	}
	if !role.Valid() {
		h.respondError(w, r, apperr.Validationf("invalid role"))
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	u := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
	}
	if err := h.store.CreateUser(r.Context(), &u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.respondError(w, r, err)
		return
	}
	middleware.Logger(r.Context()).Info("user registered", "user_id", u.ID, "role", u.Role)
	h.issue(w, r, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := h.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, r, errInvalidCredentials)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		h.respondError(w, r, errInvalidCredentials)
		return
	}
	h.issue(w, r, http.StatusOK, u)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateProfile changes name, phone or address. Any other key is rejected.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	raw, err := decodePatch(r, "name", "phone", "address")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := h.currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	fields := map[string]*string{"name": &u.Name, "phone": &u.Phone, "address": &u.Address}
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			h.respondError(w, r, apperr.Validationf("%s must be a string", k))
			return
		}
		*fields[k] = strings.TrimSpace(s)
	}
	if u.Name == "" {
		h.respondError(w, r, apperr.Validationf("name is required"))
		return
	}
	if err := h.store.UpdateUser(r.Context(), &u); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := h.currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	u.PasswordHash = hash
	if err := h.store.UpdateUser(r.Context(), &u); err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.Logger(r.Context()).Info("password changed", "user_id", u.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated successfully"})
}

// ListWorkers returns every account with the worker role.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.store.ListUsersByRole(r.Context(), models.RoleWorker)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if workers == nil {
		workers = []models.User{}
	}
	writeJSON(w, http.StatusOK, workers)
}

type userRoleReq struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req userRoleReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	role := models.Role(req.Role)
	if !role.Valid() {
		h.respondError(w, r, apperr.Validationf("invalid role"))
		return
	}
	id, err := parseID(req.UserID, "userId")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := h.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	u.Role = role
	if err := h.store.UpdateUser(r.Context(), &u); err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.Logger(r.Context()).Info("user role updated", "user_id", u.ID, "role", role, "by", middleware.GetUserID(r))
	writeJSON(w, http.StatusOK, u)
}
