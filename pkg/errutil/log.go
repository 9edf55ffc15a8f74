// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code and context are
// logged as separate attributes. args are extra key/value pairs.
func LogError(logger *slog.Logger, msg string, err error, args ...any) {
	logAt(logger, slog.LevelError, msg, err, args)
}

// LogWarn is LogError at warn level, for best-effort failures the caller
// recovers from.
func LogWarn(logger *slog.Logger, msg string, err error, args ...any) {
	logAt(logger, slog.LevelWarn, msg, err, args)
}

func logAt(logger *slog.Logger, level slog.Level, msg string, err error, args []any) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, len(args)+6)
	attrs = append(attrs, args...)

	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	} else {
		attrs = append(attrs, "error", err)
	}
	logger.Log(context.Background(), level, msg, attrs...)
}

// Code returns the oops code of err, or "" for other errors.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code, ok := any(oopsErr.Code()).(string); ok {
		return code
	}
	return ""
}
