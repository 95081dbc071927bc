// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/pkg/errutil"
)

// Codes produced by the transport itself.
const (
	CodeRateLimited = "HTTP_RATE_LIMITED"
	CodeNotFound    = "HTTP_NOT_FOUND"
	CodeNotAllowed  = "HTTP_METHOD_NOT_ALLOWED"
	CodeInternal    = "INTERNAL"
)

const problemTypeBase = "https://accountd.dev/problems/"

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"errors,omitempty"`
}

var statusByCode = map[string]int{
	auth.CodeValidationFailed:      http.StatusBadRequest,
	auth.CodeDuplicateAccount:      http.StatusConflict,
	auth.CodeAccountNotFound:       http.StatusNotFound,
	auth.CodeInvalidCredentials:    http.StatusUnauthorized,
	auth.CodeAccountLocked:         http.StatusLocked,
	auth.CodeAccountDisabled:       http.StatusForbidden,
	auth.CodeInvalidToken:          http.StatusUnauthorized,
	auth.CodeStaleToken:            http.StatusUnauthorized,
	auth.CodeUnauthenticated:       http.StatusUnauthorized,
	auth.CodeInvalidOrExpiredToken: http.StatusBadRequest,
	auth.CodeForbidden:             http.StatusForbidden,
	auth.CodeDeliveryFailed:        http.StatusBadGateway,
	CodeRateLimited:                http.StatusTooManyRequests,
	CodeNotFound:                   http.StatusNotFound,
	CodeNotAllowed:                 http.StatusMethodNotAllowed,
}

// StatusFor maps an error code to its HTTP status. Unknown codes are
// server errors.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func problemFor(err error) Problem {
	code := errutil.Code(err)
	status := StatusFor(code)
	p := Problem{
		Status: status,
		Title:  http.StatusText(status),
		Code:   code,
		Detail: err.Error(),
	}
	if status == http.StatusInternalServerError {
		// Internal failures never leak their cause.
		p.Code = CodeInternal
		p.Detail = "an unexpected error occurred"
	}
	if fields, ok := errutil.ContextValue(err, "fields"); ok {
		if m, ok := fields.(map[string]string); ok {
			p.Fields = m
		}
	}
	p.Type = problemTypeBase + strings.ToLower(strings.ReplaceAll(p.Code, "_", "-"))
	return p
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	logger := a.logger.With("method", r.Method, "path", r.URL.Path)
	if p.Status >= http.StatusInternalServerError {
		errutil.LogError(r.Context(), logger, "request failed", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "code", p.Code, "status", p.Status)
	}
	if p.Code == auth.CodeAccountLocked {
		if secs, ok := errutil.ContextValue(err, "retry_after_seconds"); ok {
			w.Header().Set("Retry-After", fmt.Sprint(secs))
		}
	}
	if p.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="accountd"`)
	}
	writeProblem(w, p)
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func simpleProblem(status int, code, detail string) Problem {
	return Problem{
		Type:   problemTypeBase + strings.ToLower(strings.ReplaceAll(code, "_", "-")),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
