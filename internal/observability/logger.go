package observability

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	base *zap.Logger
}

// NewLogger builds a logger from a LOG_LEVEL value. "dev" (and the empty
// string) selects the human-readable development encoder at debug level.
// Level names select JSON output at that level. The request-log format names
// accepted by the previous Node service (combined, common, short, tiny) fall
// back to JSON at info.
func NewLogger(level string) *Logger {
	level = strings.ToLower(strings.TrimSpace(level))

	var cfg zap.Config
	switch level {
	case "", "dev", "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.DisableStacktrace = true

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewExample()
	}
	return &Logger{base: base}
}

// NewLoggerFrom wraps an existing zap logger.
func NewLoggerFrom(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{base: base}
}

func NewNopLogger() *Logger {
	return &Logger{base: zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.base.Debug(message, toZap(fields)...)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.base.Info(message, toZap(fields)...)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.base.Warn(message, toZap(fields)...)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.base.Error(message, toZap(fields)...)
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.base.Core().Enabled(level)
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
