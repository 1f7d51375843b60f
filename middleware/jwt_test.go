package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"p9e.in/genfuel/models"
)

func newTestJWT(t *testing.T) *JWT {
	t.Helper()
	j, err := NewJWT("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	return j
}

func TestNewJWTRequiresSecret(t *testing.T) {
	if _, err := NewJWT("  ", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	j := newTestJWT(t)
	u := models.User{ID: uuid.New(), Name: "Asha", Email: "asha@example.com", Role: models.RoleAdmin}
	token, err := j.GenerateToken(u)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := j.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != u.ID.String() || claims.Role != "admin" || claims.Email != u.Email {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	j := newTestJWT(t)
	u := models.User{ID: uuid.New(), Role: models.RoleWorker}

	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return issued }
	token, err := j.GenerateToken(u)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	j.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := j.Parse(token); err == nil {
		t.Error("expected expired token to be rejected")
	}

	other, _ := NewJWT("another-secret", time.Hour)
	foreign, _ := other.GenerateToken(u)
	j.now = time.Now
	if _, err := j.Parse(foreign); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	j := newTestJWT(t)
	u := models.User{ID: uuid.New(), Name: "Ravi", Role: models.RoleWorker}
	token, _ := j.GenerateToken(u)

	var seen uuid.UUID
	h := j.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
	if seen != u.ID {
		t.Errorf("handler saw user %v, want %v", seen, u.ID)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole([]string{"admin"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{"admin passes", &Claims{UserID: uuid.NewString(), Role: "admin"}, http.StatusOK},
		{"worker forbidden", &Claims{UserID: uuid.NewString(), Role: "worker"}, http.StatusForbidden},
		{"anonymous forbidden", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
