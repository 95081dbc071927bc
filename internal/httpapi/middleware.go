// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/accountd/accountd/internal/access"
	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/logging"
)

var tracer = otel.Tracer("accountd/httpapi")

// requestContext copies chi's request id into the logging context and
// echoes it back to the client.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
			r = r.WithContext(logging.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// instrument traces, measures and logs every request once routing is done.
func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), "http.request",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)

		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		a.metrics.ObserveRequest(r.Method, route, status, elapsed)
		a.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"bytes", ww.BytesWritten(),
		)
	})
}

func secureHeaders(secureCookies bool) func(http.Handler) http.Handler {
	opts := secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	}
	if secureCookies {
		opts.STSSeconds = 31536000
		opts.STSIncludeSubdomains = true
	}
	return secure.New(opts).Handler
}

// corsPolicy answers cross-origin requests from origins matching one of the
// configured glob patterns. '*' does not cross a '.'.
type corsPolicy struct {
	origins []glob.Glob
}

func newCORSPolicy(patterns []string) (*corsPolicy, error) {
	p := &corsPolicy{}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.Code("HTTP_CONFIG_INVALID").
				With("origin", pattern).
				Wrapf(err, "invalid allowed origin pattern")
		}
		p.origins = append(p.origins, g)
	}
	return p, nil
}

func (p *corsPolicy) allows(origin string) bool {
	for _, g := range p.origins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete}, ", ")
	corsHeaders = "Authorization, Content-Type, X-Request-Id"
)

func (p *corsPolicy) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Origin")
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if !p.allows(origin) {
			if preflight {
				writeProblem(w, simpleProblem(http.StatusForbidden, auth.CodeForbidden, "origin not allowed"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		if preflight {
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", strconv.Itoa(600))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.Set("Access-Control-Expose-Headers", "Retry-After, X-Request-Id")
		next.ServeHTTP(w, r)
	})
}

// rateLimit bounds credential endpoints per client IP. A non-positive limit
// disables it.
func (a *API) rateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			a.logger.WarnContext(r.Context(), "rate limit exceeded", "path", r.URL.Path)
			writeProblem(w, simpleProblem(http.StatusTooManyRequests, CodeRateLimited, "too many requests, slow down"))
		}),
	)
}

// authenticated resolves the bearer token and stores the account in the
// request context. Disabled accounts are resolved too; the per-route guard
// decides.
func (a *API) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			a.writeError(w, r, access.Decision{Reason: access.DenyUnauthenticated}.Err())
			return
		}
		account, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("account.id", account.ID.String()))
		next.ServeHTTP(w, r.WithContext(access.WithAccount(r.Context(), account)))
	})
}

// guard requires the caller to be allowed the named operation.
func (a *API) guard(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := a.policy.Authorize(access.AccountFrom(r.Context()), operation)
			if !decision.IsAllowed() {
				a.writeError(w, r, decision.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// active requires an authenticated, enabled account without any role check.
func (a *API) active(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if decision := access.Check(access.AccountFrom(r.Context())); !decision.IsAllowed() {
			a.writeError(w, r, decision.Err())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
