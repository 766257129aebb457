// Package utils holds process-level helpers shared by the hive commands.
package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger. When debug is true, uses development config
// (console output, debug level); otherwise uses production config (JSON, info level).
// Both write ISO8601 timestamps to stderr.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build(zap.Fields(zap.String("service", "hive")))
}

// NewLoggerOrNop is NewLogger falling back to a no-op logger when the config cannot be built.
func NewLoggerOrNop(debug bool) *zap.Logger {
	l, err := NewLogger(debug)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
