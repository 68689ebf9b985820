package handlers

// router.go constructs the chi router, registers all middleware, and wires all
// routes to their respective handlers. it is the single source of truth for
// the HTTP surface area of the lead magnet host.
// adding a new endpoint means adding one line in this file, nothing else.

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/db"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/publish"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/site"
)

// adminJsonBodyLimit caps the small JSON bodies of the admin and auth endpoints
const adminJsonBodyLimit = 64 << 10 // 64KB

// RouterDependencies groups all external dependencies that the router and
// its handlers need. passing a single struct instead of N arguments keeps
// CreateAndSetupRouter's signature stable as more handlers are added.
type RouterDependencies struct {
	Logger    *slog.Logger
	Database  *db.Database
	Publisher *publish.Publisher
	Responder *site.Responder

	// AdminPassword guards the admin API. empty leaves it open (local development).
	AdminPassword string

	// AllowedOrigin is the CORS origin of the public submission endpoint
	AllowedOrigin string

	MaxUploadBytes     int64
	SubmissionMaxBytes int64
}

// CreateAndSetupRouter constructs the chi multiplexer, attaches middleware, constructs
// all handlers with their dependencies, and registers all routes.
// it returns a plain http.Handler so the serve command has no chi import or awareness.
func CreateAndSetupRouter(dependencies RouterDependencies) http.Handler {
	router := chi.NewRouter()

	// chi middleware runs on every request before the handler is called (top to bottom).
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// middleware.Logger logs the method, path, status code, and latency of every request.
	router.Use(middleware.Logger)
	// middleware.Recoverer catches panics in handlers and returns a 500 instead of crashing the process.
	router.Use(middleware.Recoverer)

	// --- handler construction ---
	// each handler receives only the dependencies it actually needs.
	healthHandler := NewHealthHandler(dependencies.Logger, dependencies.Database)
	authHandler := NewAuthHandler(dependencies.AdminPassword, dependencies.Logger)
	siteHandler := NewSiteHandler(dependencies.Responder, dependencies.Logger)
	submissionHandler := NewSubmissionHandler(dependencies.Database, dependencies.Logger)
	leadMagnetHandler := NewLeadMagnetHandler(dependencies.Database, dependencies.Publisher, dependencies.Logger)

	// --- route registration ---

	// root level, load balancers and uptime monitors expect these paths
	router.Get("/health", healthHandler.Health)
	router.Get("/ready", healthHandler.Ready)

	// public lead magnet pages. "/lm/{slug}/" (trailing slash) lands on the wildcard
	// route with an empty path, which the responder treats as the root document.
	router.Get("/lm/{slug}", siteHandler.ServeRoot)
	router.Get("/lm/{slug}/*", siteHandler.ServeAsset)

	router.Route("/api", func(apiRouter chi.Router) {
		// public: posted by the injected form script from the lead magnet pages
		apiRouter.Group(func(publicRouter chi.Router) {
			publicRouter.Use(CORSMiddleware(dependencies.AllowedOrigin))
			publicRouter.Use(BodyLimitMiddleware(dependencies.SubmissionMaxBytes))
			publicRouter.Post("/submissions", submissionHandler.CreateSubmission)
			// preflight for cross-origin pages, answered by the CORS middleware
			publicRouter.Options("/submissions", func(http.ResponseWriter, *http.Request) {})
		})

		apiRouter.With(BodyLimitMiddleware(adminJsonBodyLimit)).Post("/auth", authHandler.Login)
		apiRouter.Delete("/auth", authHandler.Logout)

		// admin: everything below needs the admin-session cookie
		apiRouter.Group(func(adminRouter chi.Router) {
			adminRouter.Use(AdminSessionMiddleware(dependencies.AdminPassword, dependencies.Logger))

			adminRouter.With(BodyLimitMiddleware(dependencies.MaxUploadBytes)).Post("/upload", leadMagnetHandler.Upload)

			adminRouter.Get("/lead-magnets", leadMagnetHandler.ListLeadMagnets)
			adminRouter.Get("/lead-magnets/{id}", leadMagnetHandler.GetLeadMagnet)
			adminRouter.With(BodyLimitMiddleware(adminJsonBodyLimit)).Patch("/lead-magnets/{id}", leadMagnetHandler.PatchLeadMagnet)
			adminRouter.Delete("/lead-magnets/{id}", leadMagnetHandler.DeleteLeadMagnet)
			adminRouter.Get("/lead-magnets/{id}/submissions.csv", leadMagnetHandler.ExportSubmissionsCSV)
		})
	})

	return router
}
