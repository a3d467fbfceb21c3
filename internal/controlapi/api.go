// Package controlapi implements the REST API of the Accolade control plane:
// badge catalog listing, event ingestion, manual awards and revocations.
package controlapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/trigger"
	"github.com/rafaeljc/accolade/internal/validation"
)

// Engine is the subset of the badge engine the API drives directly.
type Engine interface {
	AwardManually(ctx context.Context, userID, badgeID, reason string) (badge.AwardResult, error)
	Revoke(ctx context.Context, userID, badgeID string) error
	ListAwards(ctx context.Context, userID string) ([]*badge.Award, error)
}

// BadgeLister lists every catalog definition, inactive ones included.
type BadgeLister interface {
	List(ctx context.Context) ([]*badge.Definition, error)
}

// API is the main struct that holds dependencies and the router for the control plane.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	logger  *slog.Logger
	engine  Engine
	badges  BadgeLister
	trigger *trigger.Adapter

	maxBodyBytes int64

	// apiKeyHash is the SHA-256 hash (hex) of the valid API key.
	apiKeyHash string

	// skipAuth disables authentication (tests and local development only).
	skipAuth bool
}

// Deps groups the collaborators of the API.
type Deps struct {
	Logger     *slog.Logger
	Engine     Engine
	Badges     BadgeLister
	Dispatcher trigger.Dispatcher

	// MaxBodyBytes caps request bodies when positive.
	MaxBodyBytes int64
}

// NewAPI creates a new API instance with authentication enabled.
// Panics if apiKeyHash is empty.
func NewAPI(deps Deps, apiKeyHash string) *API {
	return NewAPIWithConfig(deps, apiKeyHash, false)
}

// NewAPIWithConfig creates a new API instance with explicit control over authentication.
//
// Panics if:
//   - Engine, Badges or Dispatcher are nil
//   - apiKeyHash is empty when skipAuth is false
func NewAPIWithConfig(deps Deps, apiKeyHash string, skipAuth bool) *API {
	validation.AssertDependency(deps.Engine, "controlapi: engine")
	validation.AssertDependency(deps.Badges, "controlapi: badge lister")
	validation.AssertDependency(deps.Dispatcher, "controlapi: dispatcher")

	if !skipAuth && apiKeyHash == "" {
		panic("controlapi: apiKeyHash cannot be empty when authentication is enabled")
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	api := &API{
		Router:       chi.NewRouter(),
		logger:       log,
		engine:       deps.Engine,
		badges:       deps.Badges,
		trigger:      trigger.NewAdapter(log, deps.Dispatcher),
		maxBodyBytes: deps.MaxBodyBytes,
		apiKeyHash:   apiKeyHash,
		skipAuth:     skipAuth,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger(a.logger))
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))
	if a.maxBodyBytes > 0 {
		a.Router.Use(middleware.RequestSize(a.maxBodyBytes))
	}

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(a.authenticateAPIKey)

		r.Get("/badges", a.handleListBadges)
		r.Post("/events", a.handleIngestEvent)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/evaluate", a.handleEvaluate)
			r.Post("/reconcile", a.handleReconcile)
			r.Get("/badges", a.handleListAwards)
			r.Post("/badges/{badgeID}", a.handleAwardManually)
			r.Delete("/badges/{badgeID}", a.handleRevoke)
		})
	})
}

// handleHealthCheck reports that the HTTP server is serving. Dependency
// readiness is reported by the observability server.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
