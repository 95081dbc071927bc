// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package access

import (
	"context"

	"github.com/accountd/accountd/internal/auth"
)

type accountKey struct{}

// WithAccount returns a context carrying the authenticated account.
func WithAccount(ctx context.Context, account *auth.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFrom returns the authenticated account, or nil if the request is
// anonymous.
func AccountFrom(ctx context.Context) *auth.Account {
	a, _ := ctx.Value(accountKey{}).(*auth.Account)
	return a
}
