// Package logger constructs the process-wide *zap.Logger, matching the
// call site referenced (but not vendored) in the teacher's
// pkg/node/node.go: logger.NewLogger(&logger.LoggerConfig{Debug: false}).
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Config switches between zap's production and development presets.
type Config struct {
	// Debug selects zap.NewDevelopment (human-readable, debug-level)
	// over zap.NewProduction (JSON, info-level) when true.
	Debug bool
}

// NewLogger builds a *zap.Logger per cfg. Injected by constructor
// throughout the module — never held in a package-level global.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if cfg.Debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("logger: building development logger: %w", err)
		}
		return l, nil
	}

	l, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("logger: building production logger: %w", err)
	}
	return l, nil
}
