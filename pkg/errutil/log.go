// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at ERROR. Oops errors contribute their code and context
// as separate attributes; ctx lets the handler add request and trace ids.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	attrs := []any{"error", err.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if kv := oopsErr.Context(); len(kv) > 0 {
			attrs = append(attrs, "context", kv)
		}
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
