// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/access"
	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/pkg/errutil"
)

// RefreshCookie is the name of the refresh token cookie.
const RefreshCookie = "refresh_token"

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,http_url,max=2048"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,nefield=CurrentPassword"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Account          auth.AccountView `json:"account"`
	AccessToken      string           `json:"access_token"`
	RefreshToken     string           `json:"refresh_token"`
	TokenType        string           `json:"token_type"`
	AccessExpiresAt  time.Time        `json:"access_expires_at"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type sessionView struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionsResponse struct {
	Sessions []sessionView `json:"sessions"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Profile: auth.Profile{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			AvatarURL: req.AvatarURL,
		},
		Client: clientInfo(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusCreated, result)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.auth.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   clientInfo(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, result)
}

// refresh prefers the cookie and falls back to the body for clients that
// cannot hold cookies.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	token := req.RefreshToken
	if c, err := r.Cookie(RefreshCookie); err == nil && c.Value != "" {
		token = c.Value
	}
	if token == "" {
		a.writeError(w, r, oops.Code(auth.CodeUnauthenticated).Errorf("refresh token is required"))
		return
	}

	result, err := a.auth.Refresh(r.Context(), token, clientInfo(r))
	if err != nil {
		if errutil.HasCode(err, auth.CodeInvalidToken, auth.CodeStaleToken) {
			a.clearRefreshCookie(w)
		}
		a.writeError(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, result)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	a.auth.Logout(r.Context(), access.AccountFrom(r.Context()).ID)
	a.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	account, err := a.auth.Me(r.Context(), access.AccountFrom(r.Context()).ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.NewAccountView(account))
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.auth.Sessions(r.Context(), access.AccountFrom(r.Context()).ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := sessionsResponse{Sessions: make([]sessionView, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, sessionView{
			ID:        s.ID.String(),
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.auth.ChangePassword(r.Context(), access.AccountFrom(r.Context()).ID,
		req.CurrentPassword, req.NewPassword, clientInfo(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, result)
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{
		Message: "if an account exists for this address, a reset link has been sent",
	})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, clientInfo(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, result)
}

func (a *API) verifyEmail(w http.ResponseWriter, r *http.Request) {
	account, err := a.auth.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.NewAccountView(account))
}

func (a *API) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.auth.ResendVerification(r.Context(), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{
		Message: "if an unverified account exists for this address, a verification link has been sent",
	})
}

func (a *API) writeAuth(w http.ResponseWriter, status int, result *auth.AuthResult) {
	a.setRefreshCookie(w, result.Tokens.RefreshToken, result.Tokens.RefreshExpiresAt)
	writeJSON(w, status, authResponse{
		Account:          auth.NewAccountView(result.Account),
		AccessToken:      result.Tokens.AccessToken,
		RefreshToken:     result.Tokens.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  result.Tokens.AccessExpiresAt,
		RefreshExpiresAt: result.Tokens.RefreshExpiresAt,
	})
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/auth",
		Expires:  expires,
		MaxAge:   int(a.cfg.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func clientInfo(r *http.Request) auth.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return auth.ClientInfo{UserAgent: r.UserAgent(), IPAddress: ip}
}
