// Package logging builds the zap logger shared by commands and pipeline stages.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for the given environment. "production" yields JSON
// output at info level; anything else a colored console logger. debug lowers
// the level to debug in both modes.
func New(env string, debug bool) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	// progress markers go to stdout; keep logs on stderr
	config.OutputPaths = []string{"stderr"}
	return config.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
