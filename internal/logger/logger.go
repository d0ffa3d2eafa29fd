// Package logger builds the application's zap logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls level and output format.
type Config struct {
	Level    string // debug, info, warn, error
	Encoding string // json or console
	Output   string // defaults to stdout
}

// New builds a logger with ISO8601 timestamps. An unknown level is an
// error; an unknown encoding falls back to JSON.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	name := strings.ToLower(cfg.Level)
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	encoding := strings.ToLower(cfg.Encoding)
	switch encoding {
	case "console":
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	default:
		encoding = "json"
		enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	zc := zap.Config{
		Level:             level,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     enc,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
	}
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}
