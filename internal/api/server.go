// ABOUTME: HTTP server struct, constructor, and handler wiring for CoachDesk.
// ABOUTME: Holds the store, URL signer, object store, and argon2 semaphore.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/jmadsen/coachdesk/internal/config"
	"github.com/jmadsen/coachdesk/internal/storage"
	"github.com/jmadsen/coachdesk/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	cfg         *config.Config
	signer      *storage.Signer
	objects     storage.ObjectStore
	argon2Sem   chan struct{}
	rateLimiter *ipRateLimiter
}

// NewServer creates a Server wired to the given store and object backend.
func NewServer(s *store.Store, cfg *config.Config, objects storage.ObjectStore) *Server {
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	// 10 login attempts per minute per IP, burst of 10.
	rl := newIPRateLimiter(rate.Limit(10.0/60), 10, evictTTL)
	return &Server{
		store:       s,
		cfg:         cfg,
		signer:      storage.NewSigner([]byte(cfg.StorageSecret), cfg.ExternalURL),
		objects:     objects,
		argon2Sem:   make(chan struct{}, cfg.Argon2MaxConcurrent),
		rateLimiter: rl,
	}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}
	r := chi.NewRouter()

	// ── Security headers ──────────────────────────────────────────────────────
	// Must be first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	// ── Standard chi middleware ───────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit — protects against OOM from large request bodies.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	// ── CORS for the portal frontend ──────────────────────────────────────────
	if srv.cfg.PortalOrigin != "" {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   []string{srv.cfg.PortalOrigin},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Requested-By"},
			AllowCredentials: true,
		}).Handler)
	}

	r.Use(csrfProtect)

	// ── Infrastructure endpoints ──────────────────────────────────────────────
	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	// ── Signed file downloads (no session; the signature is the credential) ───
	r.Get("/files/*", srv.fileDownloadHandler)

	// ── API v1 sub-router ─────────────────────────────────────────────────────
	apiRouter := chi.NewRouter()
	apiRouter.Use(srv.authRateLimit())

	// Auth routes via huma (OpenAPI 3.1). Login is additionally rate limited.
	humaConfig := huma.DefaultConfig("CoachDesk API", "0.1.0")
	humaConfig.Info.Description = "Business coaching portal API"
	api := humachi.New(apiRouter, humaConfig)
	registerAuthRoutes(api, srv)

	// Admin routes: every request passes requireAuth then requireAdmin.
	apiRouter.Route("/admin", func(r chi.Router) {
		r.Use(srv.RequireAdmin())

		r.Route("/leads", func(r chi.Router) {
			r.Post("/", srv.createLeadHandler)
			r.Get("/", srv.listLeadsHandler)
			r.Route("/{lead_id}", func(r chi.Router) {
				r.Get("/", srv.getLeadHandler)
				r.Patch("/", srv.updateLeadHandler)
				r.Delete("/", srv.deleteLeadHandler)
				r.Post("/invite", srv.inviteLeadHandler)

				r.Post("/products", srv.createProductHandler)
				r.Get("/products", srv.listProductsHandler)
				r.Post("/sessions", srv.createSessionHandler)
				r.Get("/sessions", srv.listSessionsHandler)
				r.Post("/tasks", srv.createTaskHandler)
				r.Get("/tasks", srv.listTasksHandler)
			})
		})

		r.Patch("/products/{product_id}", srv.updateProductHandler)
		r.Delete("/products/{product_id}", srv.deleteProductHandler)
		r.Patch("/sessions/{session_id}", srv.updateSessionHandler)
		r.Delete("/sessions/{session_id}", srv.deleteSessionHandler)

		r.Route("/tasks/{task_id}", func(r chi.Router) {
			r.Patch("/", srv.updateTaskHandler)
			r.Delete("/", srv.deleteTaskHandler)
			r.Post("/subtasks", srv.createSubtaskHandler)
			r.Post("/attachments", srv.createTaskAttachmentHandler)
		})
		r.Route("/subtasks/{subtask_id}", func(r chi.Router) {
			r.Patch("/", srv.updateSubtaskHandler)
			r.Delete("/", srv.deleteSubtaskHandler)
			r.Post("/attachments", srv.createSubtaskAttachmentHandler)
		})
		r.Delete("/attachments/{attachment_id}", srv.deleteAttachmentHandler)

		r.Route("/materials", func(r chi.Router) {
			r.Post("/", srv.createMaterialHandler)
			r.Get("/", srv.listMaterialsHandler)
			r.Get("/{material_id}", srv.getMaterialHandler)
			r.Patch("/{material_id}", srv.updateMaterialHandler)
			r.Delete("/{material_id}", srv.deleteMaterialHandler)
		})
	})

	// Portal routes: any authenticated caller, reads scoped by RLS.
	apiRouter.Route("/portal", func(r chi.Router) {
		r.Use(srv.RequireAuth())
		r.Get("/company", srv.portalCompanyHandler)
		r.Get("/products", srv.portalProductsHandler)
		r.Get("/sessions", srv.portalSessionsHandler)
		r.Get("/tasks", srv.portalTasksHandler)
		r.Get("/tasks/{task_id}", srv.portalTaskDetailHandler)
		r.Get("/materials", srv.portalMaterialsHandler)
	})

	// Download-URL issuer: available to both roles; visibility enforced by RLS.
	apiRouter.With(srv.RequireAuth()).
		Get("/materials/{material_id}/download-url", srv.downloadURLHandler)

	r.Mount("/api/v1", apiRouter)

	return r
}

// acquireArgon2 tries to acquire the argon2 semaphore. Returns false if all
// slots are in use — the caller should return 503 immediately (do NOT block).
func (srv *Server) acquireArgon2() bool {
	select {
	case srv.argon2Sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (srv *Server) releaseArgon2() { <-srv.argon2Sem }

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "healthz: failed to encode response", "error", err)
		}
	}
}
