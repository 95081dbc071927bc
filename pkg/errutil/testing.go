// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package errutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails t unless err carries code, at any wrapping depth.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected an error with code %s", code)
	assert.Equal(t, code, Code(err), "error: %v", err)
}

// AssertErrorContext fails t unless err carries key with value in its oops
// context.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	got, ok := ContextValue(err, key)
	require.True(t, ok, "error %v has no context key %q", err, key)
	assert.Equal(t, value, got)
}
