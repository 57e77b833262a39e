package gldraw

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called while a texture decoder goroutine logs.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for gldraw.
// By default, gldraw produces no log output. Call SetLogger to enable logging.
//
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by gldraw:
//   - [slog.LevelDebug]: GPU object allocation, uploads, binding resolution
//   - [slog.LevelInfo]: lifecycle events (drawable initialized, texture ready)
//   - [slog.LevelWarn]: non-fatal issues (texture decode failure seen at draw time)
//
// Backends that accept a logger (see [LoggerSetter]) are wired by the
// caller, for example:
//
//	l := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	gldraw.SetLogger(l)
//	soft.SetLogger(l)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by gldraw.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// LoggerSetter is implemented by contexts that accept a logger.
type LoggerSetter interface {
	SetLogger(*slog.Logger)
}

// PropagateLogger passes l to ctx if the context accepts a logger.
func PropagateLogger(ctx Context, l *slog.Logger) {
	if ls, ok := ctx.(LoggerSetter); ok {
		ls.SetLogger(l)
	}
}
