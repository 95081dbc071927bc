// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package access decides whether an account may perform an operation.
//
// Decisions depend only on the account's role and active flag. There is no
// role hierarchy: an admin is not implicitly a moderator, every rule lists
// the roles it admits.
package access

import (
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
)

// Reason explains a Decision.
type Reason int

// Reason constants.
const (
	Allowed Reason = iota
	DenyUnauthenticated
	DenyAccountDisabled
	DenyForbidden
)

func (r Reason) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyAccountDisabled:
		return "account_disabled"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an access check.
type Decision struct {
	Reason    Reason
	Operation string
}

// IsAllowed reports whether the decision permits the operation.
func (d Decision) IsAllowed() bool {
	return d.Reason == Allowed
}

// Err converts a denial to a coded error. Returns nil when allowed.
func (d Decision) Err() error {
	var code, msg string
	switch d.Reason {
	case Allowed:
		return nil
	case DenyUnauthenticated:
		code, msg = auth.CodeUnauthenticated, "authentication required"
	case DenyAccountDisabled:
		code, msg = auth.CodeAccountDisabled, "account is disabled"
	default:
		code, msg = auth.CodeForbidden, "insufficient permissions"
	}
	b := oops.Code(code)
	if d.Operation != "" {
		b = b.With("operation", d.Operation)
	}
	return b.Errorf("%s", msg)
}

// Check allows an active account whose role is one of required. With no
// required roles any active account is allowed. A nil account is
// unauthenticated.
func Check(account *auth.Account, required ...auth.Role) Decision {
	switch {
	case account == nil:
		return Decision{Reason: DenyUnauthenticated}
	case !account.IsActive:
		return Decision{Reason: DenyAccountDisabled}
	case len(required) == 0:
		return Decision{Reason: Allowed}
	}
	for _, r := range required {
		if account.Role == r {
			return Decision{Reason: Allowed}
		}
	}
	return Decision{Reason: DenyForbidden}
}
