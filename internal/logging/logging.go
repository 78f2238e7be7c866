// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the RIB daemon's structured logger, with
// optional forwarding to a syslog collector for deployments that run the
// IPCP as a managed service.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is a thin wrapper over log/slog that carries a persistent set of
// fields (component, neighbor name, port id, ...) through a call chain.
type Logger struct {
	inner *slog.Logger
}

// New builds a Logger writing text-formatted records to w at the given
// level. If w is nil, os.Stderr is used.
func New(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(handler)}
}

// NewWithWriters builds a Logger that fans out to every writer in ws (used
// to combine a local log file with a syslog forwarder).
func NewWithWriters(level slog.Level, ws ...io.Writer) *Logger {
	if len(ws) == 0 {
		return New(nil, level)
	}
	return New(io.MultiWriter(ws...), level)
}

// WithFields returns a derived Logger that always attaches the given
// key/value pairs (must be an even-length list, as with slog.Logger.With).
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// InfoContext logs at INFO honoring a context's deadline/cancel-derived
// attributes installed by slog handlers that support them.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.inner.InfoContext(ctx, msg, args...)
}

// Nop returns a Logger that discards everything, for tests that don't care
// about log output.
func Nop() *Logger {
	return New(io.Discard, slog.LevelError+1)
}
