// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package errutil

import "github.com/samber/oops"

// Code returns the oops error code carried by err, or "" when err is not an
// oops error or has no string code.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// HasCode reports whether err carries one of the given oops error codes.
func HasCode(err error, codes ...string) bool {
	code := Code(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// ContextValue returns a value attached to err with oops With, searching
// every wrapped layer.
func ContextValue(err error, key string) (any, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil, false
	}
	v, ok := oopsErr.Context()[key]
	return v, ok
}
