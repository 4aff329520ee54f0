// Package logging builds the zap loggers used by the command line tools.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error (default: info)
	Format string // console or json (default: console)

	// Out receives entries below error level, Err the rest. When Err is
	// nil every entry goes to Out.
	Out io.Writer
	Err io.Writer
}

// New returns a logger with RFC 3339 timestamps and caller information.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Out == nil {
		return nil, fmt.Errorf("logging: nil output")
	}

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	var encoder zapcore.Encoder
	switch opts.Format {
	case "", FormatConsole:
		config.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(config)
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(config)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	out := zapcore.Lock(zapcore.AddSync(opts.Out))
	if opts.Err == nil {
		return zap.New(zapcore.NewCore(encoder, out, level), zap.AddCaller()), nil
	}

	isError := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel && level.Enabled(lvl)
	})
	isInfo := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && level.Enabled(lvl)
	})
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(opts.Err)), isError),
		zapcore.NewCore(encoder, out, isInfo),
	)
	return zap.New(core, zap.AddCaller()), nil
}

// ParseLevel parses a level name. The empty string is info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("logging: %w", err)
	}
	return level, nil
}
