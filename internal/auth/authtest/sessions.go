// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/accountd/accountd/internal/auth"
)

// Sessions is an in-memory auth.RefreshSessionRepository.
type Sessions struct {
	mu   sync.Mutex
	byID map[ulid.ULID]*auth.RefreshSession
}

var _ auth.RefreshSessionRepository = (*Sessions)(nil)

// NewSessions creates an empty repository.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[ulid.ULID]*auth.RefreshSession)}
}

// Len returns the number of stored sessions, usable or not.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Create implements auth.RefreshSessionRepository.
func (r *Sessions) Create(_ context.Context, session *auth.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[session.ID]; ok {
		return auth.ErrDuplicate
	}
	r.byID[session.ID] = cloneSession(session)
	return nil
}

// GetByID implements auth.RefreshSessionRepository.
func (r *Sessions) GetByID(_ context.Context, id ulid.ULID) (*auth.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneSession(s), nil
}

// Rotate implements auth.RefreshSessionRepository.
func (r *Sessions) Rotate(_ context.Context, id ulid.ULID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || !s.IsUsableAt(now) {
		return auth.ErrNotFound
	}
	at := now
	s.RotatedAt = &at
	return nil
}

// ListByAccount implements auth.RefreshSessionRepository.
func (r *Sessions) ListByAccount(_ context.Context, accountID ulid.ULID, now time.Time) ([]*auth.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auth.RefreshSession
	for _, s := range r.byID {
		if s.AccountID == accountID && s.IsUsableAt(now) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) > 0 })
	return out, nil
}

// DeleteByAccount implements auth.RefreshSessionRepository.
func (r *Sessions) DeleteByAccount(_ context.Context, accountID ulid.ULID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.AccountID == accountID {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired implements auth.RefreshSessionRepository.
func (r *Sessions) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if !s.ExpiresAt.After(cutoff) || (s.RotatedAt != nil && s.RotatedAt.Before(cutoff)) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func cloneSession(s *auth.RefreshSession) *auth.RefreshSession {
	c := *s
	if s.RotatedAt != nil {
		v := *s.RotatedAt
		c.RotatedAt = &v
	}
	return &c
}
