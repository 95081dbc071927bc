// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package httpapi serves the account API over HTTP.
//
// Errors are written as RFC 7807 problem documents whose status is derived
// from the oops error code. Access tokens travel in the Authorization header;
// refresh tokens travel in the response body and in an HttpOnly cookie scoped
// to /auth.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/access"
	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/observability"
)

// Config tunes the transport.
type Config struct {
	// AllowedOrigins are glob patterns for CORS origins. Empty disables CORS.
	AllowedOrigins []string
	// SecureCookies marks the refresh cookie Secure and enables HSTS.
	SecureCookies bool
	// RefreshTTL is the refresh cookie max-age.
	RefreshTTL time.Duration
	// RateLimit is requests per minute per client IP on credential
	// endpoints. Zero disables limiting.
	RateLimit int
}

// Deps are the services behind the API.
type Deps struct {
	Auth     *auth.Service
	Profiles *auth.ProfileService
	Policy   *access.Policy
	// Metrics is optional.
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// API holds the HTTP handlers.
type API struct {
	auth     *auth.Service
	profiles *auth.ProfileService
	policy   *access.Policy
	metrics  *observability.Metrics
	logger   *slog.Logger
	validate *validator.Validate
	cors     *corsPolicy
	cfg      Config
}

// New creates an API.
func New(deps Deps, cfg Config) (*API, error) {
	if deps.Auth == nil || deps.Profiles == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("auth and profile services are required")
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = auth.DefaultRefreshTTL
	}
	cors, err := newCORSPolicy(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	a := &API{
		auth:     deps.Auth,
		profiles: deps.Profiles,
		policy:   deps.Policy,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		validate: newValidator(),
		cors:     cors,
		cfg:      cfg,
	}
	if a.policy == nil {
		a.policy = access.DefaultPolicy()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Handler returns the routed HTTP handler.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(a.instrument)
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders(a.cfg.SecureCookies))
	r.Use(a.cors.handler)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, simpleProblem(http.StatusNotFound, CodeNotFound, "no such route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, simpleProblem(http.StatusMethodNotAllowed, CodeNotAllowed, "method not allowed on this route"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.rateLimit(a.cfg.RateLimit))
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/forgot-password", a.forgotPassword)
			r.Patch("/reset-password/{token}", a.resetPassword)
			r.Post("/resend-verification", a.resendVerification)
		})
		r.Post("/refresh-token", a.refresh)
		r.Get("/verify-email/{token}", a.verifyEmail)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticated, a.active)
			r.Post("/logout", a.logout)
			r.Get("/me", a.me)
			r.Patch("/change-password", a.changePassword)
			r.With(a.guard(access.OpSelfSessions)).Get("/sessions", a.listSessions)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(a.authenticated)
		r.With(a.guard(access.OpSelfUpdate)).Patch("/me", a.updateSelf)
		r.With(a.guard(access.OpSelfDeactivate)).Delete("/me", a.deactivateSelf)

		r.With(a.guard(access.OpUsersList)).Get("/", a.listUsers)
		r.Route("/{id}", func(r chi.Router) {
			r.With(a.guard(access.OpUsersGet)).Get("/", a.getUser)
			r.With(a.guard(access.OpUsersRole)).Patch("/role", a.setRole)
			r.With(a.guard(access.OpUsersStatus)).Patch("/status", a.setStatus)
			r.With(a.guard(access.OpUsersUnlock)).Post("/unlock", a.unlockUser)
			r.With(a.guard(access.OpUsersDelete)).Delete("/", a.deleteUser)
		})
	})

	return r
}
