// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package authtest

import (
	"context"
	"regexp"
	"sync"

	"github.com/accountd/accountd/internal/auth"
)

var linkToken = regexp.MustCompile(`(?:verify-email|reset-password)/([0-9a-f]+)`)

// Mailer records every message. When Err is set, Send fails with it and
// records nothing.
type Mailer struct {
	mu       sync.Mutex
	messages []auth.Message
	Err      error
}

var _ auth.Mailer = (*Mailer)(nil)

// Send implements auth.Mailer.
func (m *Mailer) Send(_ context.Context, msg auth.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// SetErr changes the delivery error under the mailer's lock.
func (m *Mailer) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Messages returns a copy of the recorded messages.
func (m *Mailer) Messages() []auth.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auth.Message(nil), m.messages...)
}

// LastToken extracts the plaintext secret from the most recent message sent
// to the address, or "" when there is none.
func (m *Mailer) LastToken(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].To != to {
			continue
		}
		if match := linkToken.FindStringSubmatch(m.messages[i].Body); match != nil {
			return match[1]
		}
	}
	return ""
}
