package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"p9e.in/genfuel/handlers"
	"p9e.in/genfuel/middleware"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Handler      *handlers.Handler
	JWT          *middleware.JWT
	LoginLimiter middleware.Limiter // nil disables login rate limiting

	// TrustedProxies may set X-Forwarded-For; nil trusts no one.
	TrustedProxies *middleware.TrustedProxies
	CORSOrigin     string
	// ReportDir, when set, serves locally archived reports under /reports/.
	ReportDir string
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(d Deps) http.Handler {
	h := d.Handler
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Health).Methods("GET")
	if d.ReportDir != "" {
		r.PathPrefix("/reports/").Handler(
			d.JWT.Middleware(middleware.RequireRole(admin, http.StripPrefix("/reports/", http.FileServer(http.Dir(d.ReportDir))))),
		)
	}

	api := r.PathPrefix("/api").Subrouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.Handle("/auth/login", middleware.RateLimit(d.LoginLimiter, d.TrustedProxies, http.HandlerFunc(h.Login))).Methods("POST")

	// =====================================================
	// Protected Routes (require JWT authentication)
	// =====================================================
	protected := api.NewRoute().Subrouter()
	protected.Use(d.JWT.Middleware)

	registerAuthRoutes(protected, h)
	registerFuelRoutes(protected, h)
	registerGeneratorRoutes(protected, h)

	return middleware.WithRequestID(
		middleware.WithRequestLog(
			middleware.WithSecurityHeaders(
				middleware.WithCORS(d.CORSOrigin, r),
			),
		),
	)
}

var (
	admin  = []string{"admin"}
	worker = []string{"worker"}
)

func adminOnly(f http.HandlerFunc) http.Handler  { return middleware.RequireRole(admin, f) }
func workerOnly(f http.HandlerFunc) http.Handler { return middleware.RequireRole(worker, f) }

func registerAuthRoutes(api *mux.Router, h *handlers.Handler) {
	api.HandleFunc("/auth/profile", h.GetProfile).Methods("GET")
	api.HandleFunc("/auth/profile", h.UpdateProfile).Methods("PATCH")
	api.HandleFunc("/auth/change-password", h.ChangePassword).Methods("POST")

	api.Handle("/auth/workers", adminOnly(h.ListWorkers)).Methods("GET")
	api.Handle("/auth/user-role", adminOnly(h.UpdateUserRole)).Methods("PATCH")
}

func registerFuelRoutes(api *mux.Router, h *handlers.Handler) {
	// Worker routes
	api.Handle("/fuel/generator/run-log", workerOnly(h.AddRunLog)).Methods("POST")
	api.Handle("/fuel/worker/history", workerOnly(h.WorkerHistory)).Methods("GET")

	// Admin routes
	api.Handle("/fuel/main-container", adminOnly(h.CreateMainContainer)).Methods("POST")
	api.Handle("/fuel/main-container", adminOnly(h.UpdateMainContainer)).Methods("PATCH")
	api.Handle("/fuel/main-container/add", adminOnly(h.AddMainContainerFuel)).Methods("POST")
	api.Handle("/fuel/generator/transfer", adminOnly(h.TransferToGenerator)).Methods("POST")
	api.Handle("/fuel/stats", adminOnly(h.Stats)).Methods("GET")
	api.Handle("/fuel/history", adminOnly(h.History)).Methods("GET")
	api.Handle("/fuel/reports/generators", adminOnly(h.GeneratorReport)).Methods("GET")
	api.Handle("/fuel/reports/generators/export", adminOnly(h.ExportGeneratorReport)).Methods("GET")
	api.Handle("/fuel/reports/generators/archive", adminOnly(h.ArchiveGeneratorReport)).Methods("POST")
}

func registerGeneratorRoutes(api *mux.Router, h *handlers.Handler) {
	api.Handle("/generators", adminOnly(h.CreateGenerator)).Methods("POST")
	api.Handle("/generators/{id}", adminOnly(h.UpdateGenerator)).Methods("PATCH")

	api.HandleFunc("/generators", h.ListGenerators).Methods("GET")
	api.HandleFunc("/generators/map", h.GeneratorMap).Methods("GET")
	api.HandleFunc("/generators/{id}", h.GetGenerator).Methods("GET")
}
