package logger

import (
	"log/slog"
	"os"

	"go.uber.org/zap"
)

// L is the package level logger used by commands.
var L = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Set replaces the default logger with the provided one.
func Set(l *slog.Logger) {
	if l != nil {
		L = l
	}
}

// Configure sets L to a text logger on stderr, at debug level when verbose,
// and returns the zap logger handed to library packages. Library logging is
// silent unless verbose.
func Configure(verbose bool) *zap.SugaredLogger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	Set(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	if !verbose {
		return zap.NewNop().Sugar()
	}
	z, err := zap.NewDevelopment()
	if err != nil {
		L.Warn("zap logger", "err", err)
		return zap.NewNop().Sugar()
	}
	return z.Sugar()
}
