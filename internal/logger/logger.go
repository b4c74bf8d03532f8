package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// level gates every entry of the process-wide logger and is changed by SetLevel.
	//nolint:gochecknoglobals // Shared by the CLI and every service.
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	// global is returned by FromContext when the context carries no logger.
	//nolint:gochecknoglobals // Shared by the CLI and every service.
	global = newConsole(os.Stderr, level)
)

// newConsole builds a sugared logger printing colored, human-readable entries to w.
func newConsole(w zapcore.WriteSyncer, enabler zapcore.LevelEnabler) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.ConsoleSeparator = "  "

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(w), enabler)

	return zap.New(core).Sugar()
}

// ParseLogLevel maps a configured level name to a zap level.
// An empty name means info; "warning" is accepted as an alias of "warn".
// Levels above error are rejected.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	name := strings.ToLower(strings.TrimSpace(s))

	switch name {
	case "":
		return zapcore.InfoLevel, true
	case "warning":
		name = "warn"
	}

	parsed, err := zapcore.ParseLevel(name)
	if err != nil || parsed > zapcore.ErrorLevel {
		return zapcore.InfoLevel, false
	}

	return parsed, true
}

// Logger returns the process-wide logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLevel changes the minimum level of the process-wide logger.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// Sync flushes buffered entries.
func Sync() {
	_ = global.Sync()
}

// Debug logs args at debug level.
func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

// DebugKV logs message with key-value pairs at debug level.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info logs args at info level.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// InfoKV logs message with key-value pairs at info level.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn logs args at warn level.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// WarnKV logs message with key-value pairs at warn level.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// ErrorKV logs message with key-value pairs at error level.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
