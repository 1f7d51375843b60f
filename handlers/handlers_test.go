package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/archive"
	"p9e.in/genfuel/pkg/ledger"
	"p9e.in/genfuel/pkg/report"
	"p9e.in/genfuel/pkg/store"
)

type testEnv struct {
	h      *Handler
	store  *store.MemoryStore
	jwt    *middleware.JWT
	admin  models.User
	worker models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	j, err := middleware.NewJWT("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	env := &testEnv{
		h: New(Options{
			Store:   s,
			Ledger:  ledger.NewService(s, nil),
			Reports: report.NewBuilder(s, time.UTC),
			Archive: archive.NewLocalStore(t.TempDir()),
			JWT:     j,
		}),
		store: s,
		jwt:   j,
	}
	env.admin = env.createUser(t, "Admin", "admin@example.com", "secret1", models.RoleAdmin)
	env.worker = env.createUser(t, "Ravi", "ravi@example.com", "secret2", models.RoleWorker)
	return env
}

func (e *testEnv) createUser(t *testing.T, name, email, password string, role models.Role) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	if err := e.store.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func claimsFor(u models.User) *middleware.Claims {
	return &middleware.Claims{UserID: u.ID.String(), Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

type call struct {
	method string
	path   string
	body   any
	as     *models.User
	vars   map[string]string
}

func (e *testEnv) do(t *testing.T, fn http.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := c.body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	if c.as != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claimsFor(*c.as)))
	}
	if c.vars != nil {
		req = mux.SetURLVars(req, c.vars)
	}
	rr := httptest.NewRecorder()
	fn(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rr)["error"]
}

func (e *testEnv) createGenerator(t *testing.T, body map[string]any) models.Generator {
	t.Helper()
	rr := e.do(t, e.h.CreateGenerator, call{method: "POST", path: "/api/generators", body: body, as: &e.admin})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create generator: %d %s", rr.Code, rr.Body.String())
	}
	return decode[models.Generator](t, rr)
}
