package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerName is the root name of every scribe logger.
const LoggerName = "scribe"

// NewLogger returns the scribe logger. Debug mode uses zap's development
// config (console, debug level); otherwise JSON at info level. Timestamps are
// ISO8601 and every entry carries the build version.
func NewLogger(debug bool, version string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named(LoggerName).With(zap.String("version", version)), nil
}
