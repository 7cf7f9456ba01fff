// Package log is a thin context-aware wrapper over zap.
//
// Every entry point takes a context so that hooks can attach request scoped
// fields (the redaction operation id, the acting user) without callers
// threading them through by hand.
package log

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field.
type Field = zap.Field

// Field constructors re-exported so callers only import this package.
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Any      = zap.Any
	Duration = zap.Duration
)

// Cause attaches err under the "error" key.
func Cause(err error) Field {
	return zap.Error(err)
}

// Config selects the level and encoding of the global logger.
type Config struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "console" | "json"
}

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	global atomic.Pointer[zap.Logger]
	hooks  atomic.Pointer[[]Hook]
)

func init() {
	l, err := New(Config{})
	if err != nil {
		l = zap.NewNop()
	}
	global.Store(l)
	hooks.Store(&[]Hook{HookFunc(operationFields)})
}

// New builds a zap logger bound to the package's atomic level.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level != "" {
		if err := SetLevel(cfg.Level); err != nil {
			return nil, err
		}
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}
	if encoding != "console" && encoding != "json" {
		return nil, fmt.Errorf("unknown log encoding %q", encoding)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = encoding
	zc.Sampling = nil
	zc.OutputPaths = []string{"stderr"}
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	if encoding == "console" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zc.Build(zap.AddCallerSkip(1))
}

// Setup builds a logger from cfg and installs it globally.
func Setup(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return global.Load()
}

// SetLevel changes the level of loggers built by New.
func SetLevel(s string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", s, err)
	}
	level.SetLevel(l)
	return nil
}

// AddHook registers a hook applied to every subsequent entry.
func AddHook(h Hook) {
	for {
		cur := hooks.Load()
		next := append(append([]Hook{}, *cur...), h)
		if hooks.CompareAndSwap(cur, &next) {
			return
		}
	}
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	write(ctx, zapcore.DebugLevel, msg, fields)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	write(ctx, zapcore.InfoLevel, msg, fields)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	write(ctx, zapcore.WarnLevel, msg, fields)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	write(ctx, zapcore.ErrorLevel, msg, fields)
}

func write(ctx context.Context, lvl zapcore.Level, msg string, fields []Field) {
	l := global.Load()
	ce := l.Check(lvl, msg)
	if ce == nil {
		return
	}
	for _, h := range *hooks.Load() {
		fields = append(fields, h.Apply(ctx, msg)...)
	}
	ce.Write(fields...)
}
