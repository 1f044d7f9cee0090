// Package logging builds the zap logger shared by the engine and the CLI.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a logger at the given level ("debug", "info", "warn", "error")
// using the json or console encoder. Output goes to stderr unless paths are
// given; stdout is left to command output.
func New(level, format string, paths ...string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(strings.ToLower(level)); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
	}

	var enc zapcore.EncoderConfig
	switch format {
	case "", FormatJSON:
		format = FormatJSON
		enc = zap.NewProductionEncoderConfig()
	case FormatConsole:
		enc = zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	if len(paths) == 0 {
		paths = []string{"stderr"}
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      format == FormatConsole,
		Encoding:         format,
		EncoderConfig:    enc,
		OutputPaths:      paths,
		ErrorOutputPaths: []string{"stderr"},
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return log, nil
}
