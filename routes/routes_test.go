package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"p9e.in/genfuel/handlers"
	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/pkg/archive"
	"p9e.in/genfuel/pkg/ledger"
	"p9e.in/genfuel/pkg/ratelimit"
	"p9e.in/genfuel/pkg/report"
	"p9e.in/genfuel/pkg/store"
)

func newServer(t *testing.T, limiter middleware.Limiter) *httptest.Server {
	t.Helper()
	s := store.NewMemoryStore()
	j, err := middleware.NewJWT("routes-test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	h := handlers.New(handlers.Options{
		Store:   s,
		Ledger:  ledger.NewService(s, nil),
		Reports: report.NewBuilder(s, time.UTC),
		Archive: archive.NewLocalStore(t.TempDir()),
		JWT:     j,
	})
	srv := httptest.NewServer(RegisterRoutes(Deps{Handler: h, JWT: j, LoginLimiter: limiter}))
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func register(t *testing.T, srv *httptest.Server, name, email, role string) string {
	t.Helper()
	resp, out := send(t, srv, "POST", "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password1", "role": role,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: %d %v", email, resp.StatusCode, out)
	}
	return out["token"].(string)
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, nil)
	resp, out := send(t, srv, "GET", "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("healthz: %d %v", resp.StatusCode, out)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}
}

func TestRoleGating(t *testing.T) {
	srv := newServer(t, nil)
	admin := register(t, srv, "Admin", "admin@example.com", "admin")
	worker := register(t, srv, "Ravi", "ravi@example.com", "worker")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", "GET", "/api/generators", "", http.StatusUnauthorized},
		{"worker lists generators", "GET", "/api/generators", worker, http.StatusOK},
		{"worker blocked from stats", "GET", "/api/fuel/stats", worker, http.StatusForbidden},
		{"admin stats", "GET", "/api/fuel/stats", admin, http.StatusOK},
		{"admin blocked from worker history", "GET", "/api/fuel/worker/history", admin, http.StatusForbidden},
		{"worker history", "GET", "/api/fuel/worker/history", worker, http.StatusOK},
		{"worker blocked from workers list", "GET", "/api/auth/workers", worker, http.StatusForbidden},
		{"map is not an id", "GET", "/api/generators/map", worker, http.StatusOK},
		{"admin report", "GET", "/api/fuel/reports/generators", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := send(t, srv, tt.method, tt.path, tt.token, nil)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tt.want, out)
			}
		})
	}
}

func TestFuelFlowThroughRouter(t *testing.T) {
	srv := newServer(t, nil)
	admin := register(t, srv, "Admin", "admin@example.com", "admin")
	worker := register(t, srv, "Ravi", "ravi@example.com", "worker")

	_, profile := send(t, srv, "GET", "/api/auth/profile", worker, nil)
	workerID := profile["id"].(string)

	if resp, out := send(t, srv, "POST", "/api/fuel/main-container", admin, map[string]any{"capacity": 1000}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create container: %d %v", resp.StatusCode, out)
	}
	if resp, out := send(t, srv, "POST", "/api/fuel/main-container/add", admin, map[string]any{
		"quantity": 300, "rate": 90, "receivedBy": "Suresh", "receivingUnitName": "Store",
		"receivingUnitLocation": "Pune", "supplyingUnitName": "IOCL", "supplyingUnitLocation": "Chakan",
	}); resp.StatusCode != http.StatusOK || out["success"] != true {
		t.Fatalf("add fuel: %d %v", resp.StatusCode, out)
	}

	resp, gen := send(t, srv, "POST", "/api/generators", admin, map[string]any{
		"name": "G1", "capacity": 100, "fuelEfficiency": 10, "operatorId": workerID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create generator: %d %v", resp.StatusCode, gen)
	}
	genID := gen["id"].(string)

	if resp, out := send(t, srv, "POST", "/api/fuel/generator/transfer", admin, map[string]any{"generatorId": genID, "amount": 50}); resp.StatusCode != http.StatusOK {
		t.Fatalf("transfer: %d %v", resp.StatusCode, out)
	}
	resp, out := send(t, srv, "POST", "/api/fuel/generator/run-log", worker, map[string]any{
		"generatorId": genID, "startTime": "2025-01-01T10:00:00Z", "endTime": "2025-01-01T12:00:00Z",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("run log: %d %v", resp.StatusCode, out)
	}

	_, got := send(t, srv, "GET", "/api/generators/"+genID, worker, nil)
	if got["currentFuel"] != float64(30) {
		t.Errorf("generator fuel = %v, want 30", got["currentFuel"])
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter, err := ratelimit.NewFixedWindowLimiter(rdb, "test:login", 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	srv := newServer(t, limiter)
	register(t, srv, "Ravi", "ravi@example.com", "worker")
	creds := map[string]string{"email": "ravi@example.com", "password": "password1"}

	for i := 0; i < 2; i++ {
		if resp, out := send(t, srv, "POST", "/api/auth/login", "", creds); resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d: %d %v", i, resp.StatusCode, out)
		}
	}
	resp, _ := send(t, srv, "POST", "/api/auth/login", "", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("third login: status %d, want 429", resp.StatusCode)
	}
}

func TestLoginLimitNotBypassedByForwardedFor(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter, err := ratelimit.NewFixedWindowLimiter(rdb, "test:login", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	srv := newServer(t, limiter)
	register(t, srv, "Ravi", "ravi@example.com", "worker")

	codes := make([]int, 0, 3)
	for _, xff := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req, err := http.NewRequest("POST", srv.URL+"/api/auth/login",
			strings.NewReader(`{"email":"ravi@example.com","password":"password1"}`))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, want [200 429 429]", codes)
	}
}
