package hyperroute

import "log/slog"

// logger is the package logger. Use WithLogger or SetDefaultLogger to replace it.
var logger = slog.Default()

// DefaultLogger returns the logger used by the hyperroute package.
func DefaultLogger() *slog.Logger {
	return logger
}

// SetDefaultLogger overrides the logger used by the hyperroute package.
func SetDefaultLogger(l *slog.Logger) {
	if l == nil {
		logger = slog.Default()
		return
	}
	logger = l
}
