// Package diag is cartomesh's logging façade: a single package-level
// *slog.Logger every other package calls through, so a caller wires one
// real sink (text, JSON, or discard) instead of each package picking its
// own. The default is a discard logger; nothing cartomesh does is logged
// until a caller opts in with SetLogger.
package diag

import (
	"io"
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetLogger installs l as the package-wide logger. Passing nil restores the
// discard logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

// Logger returns the currently installed logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// ReleaseFailed logs a resource that failed to release cleanly during
// Close. cartomesh never lets a release error abort a Close call — every
// view and buffer gets a chance to release — so this is the only record a
// caller gets of the failure.
func ReleaseFailed(resource string, err error) {
	Logger().Error("resource release failed", "resource", resource, "error", err)
}

// HaloExchanged logs the completion of one HaloUpdate pass at debug level:
// useful for tracing a stencil loop without paying for it by default.
func HaloExchanged(directions int, bytesSent int) {
	Logger().Debug("halo exchange complete", "directions", directions, "bytes_sent", bytesSent)
}

// GridFormed logs the grid geometry a Splitter resolved to, once, at setup
// time.
func GridFormed(rank int, dims []int, coords []int) {
	Logger().Info("grid formed", "rank", rank, "dims", dims, "coords", coords)
}
