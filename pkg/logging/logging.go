// Package logging builds the zap logger shared by the binaries.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger at level writing to stderr. JSON output is meant for
// collection; the console encoder for people.
func New(level string, json bool) (*zap.Logger, error) {
	return NewTo(level, json, "stderr")
}

// NewTo is New writing to path instead, for binaries that own the terminal.
func NewTo(level string, json bool, path string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if level == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	encoding := "json"
	if !json {
		encoding = "console"
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		if path == "stderr" {
			enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	cfg := zap.Config{
		Level:             lvl,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     enc,
		OutputPaths:       []string{path},
		ErrorOutputPaths:  []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
