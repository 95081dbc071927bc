// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/access"
	"github.com/accountd/accountd/internal/auth"
)

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,http_url,max=2048"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user moderator admin"`
}

type statusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type listResponse struct {
	Accounts []auth.AccountView `json:"accounts"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

func (a *API) updateSelf(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	account, err := a.profiles.UpdateProfile(r.Context(), access.AccountFrom(r.Context()).ID, auth.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.NewAccountView(account))
}

func (a *API) deactivateSelf(w http.ResponseWriter, r *http.Request) {
	if err := a.profiles.Deactivate(r.Context(), access.AccountFrom(r.Context()).ID); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	opts = opts.Normalize()
	accounts, err := a.profiles.List(r.Context(), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]auth.AccountView, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, auth.NewAccountView(acc))
	}
	writeJSON(w, http.StatusOK, listResponse{Accounts: views, Limit: opts.Limit, Offset: opts.Offset})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	account, err := a.profiles.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.NewAccountView(account))
}

func (a *API) setRole(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req roleRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.profiles.SetRole(r.Context(), id, auth.Role(req.Role)); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAccount(w, r, id)
}

func (a *API) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.profiles.SetActive(r.Context(), id, *req.IsActive); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAccount(w, r, id)
}

func (a *API) unlockUser(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.profiles.ClearLockout(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.profiles.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) writeAccount(w http.ResponseWriter, r *http.Request, id ulid.ULID) {
	account, err := a.profiles.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.NewAccountView(account))
}

func accountID(r *http.Request) (ulid.ULID, error) {
	raw := chi.URLParam(r, "id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code(auth.CodeValidationFailed).
			With("id", raw).
			Errorf("account id is not a valid ULID")
	}
	return id, nil
}

func listOptions(r *http.Request) (auth.ListOptions, error) {
	var opts auth.ListOptions
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return auth.ListOptions{}, oops.Code(auth.CodeValidationFailed).
				With(name, raw).
				Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return opts, nil
}
