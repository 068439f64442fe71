package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger configured for structured production
// logging. The level "silent" returns a no-op logger, which the admin CLI
// uses so command output stays parseable.
func NewLogger(level string) (*zap.Logger, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "silent" {
		return zap.NewNop(), nil
	}

	cfg := zap.NewProductionConfig()

	switch normalized {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn", "warning":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}
