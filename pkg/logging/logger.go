package logging

import (
	"context"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// StructuredLogger provides structured JSON logging backed by zap
type StructuredLogger struct {
	zl      *zap.Logger
	service string
	version string
}

// NewStructuredLogger creates a new structured logger for the given service.
// Level is one of "debug", "info", "warn", "error"; anything else means info.
func NewStructuredLogger(service, version, level string) *StructuredLogger {
	zapLevel := zapcore.InfoLevel
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		zapLevel,
	)

	hostname, _ := os.Hostname()

	zl := zap.New(core).With(
		zap.String("service", service),
		zap.String("version", version),
		zap.String("hostname", hostname),
	)

	return &StructuredLogger{
		zl:      zl,
		service: service,
		version: version,
	}
}

// Debug logs a debug message with structured fields
func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.zl.Debug(message, l.zapFields(ctx, fields, nil)...)
}

// Info logs an info message with structured fields
func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.zl.Info(message, l.zapFields(ctx, fields, nil)...)
}

// Warn logs a warning message with structured fields
func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.zl.Warn(message, l.zapFields(ctx, fields, nil)...)
}

// Error logs an error message with structured fields and error details
func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.zl.Error(message, l.zapFields(ctx, fields, err)...)
}

// Fatal logs a fatal message and exits the program
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.zl.Fatal(message, l.zapFields(ctx, fields, err)...)
}

// Sync flushes buffered log entries
func (l *StructuredLogger) Sync() error {
	return l.zl.Sync()
}

type contextKey string

// RequestIDKey carries a per-request identifier through contexts
const RequestIDKey contextKey = "request_id"

func (l *StructuredLogger) zapFields(ctx context.Context, fields Fields, err error) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)

	if ctx != nil {
		if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
			out = append(out, zap.String("request_id", requestID))
		}
	}

	// Sorted so log lines are deterministic for a given field set
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}

	if err != nil {
		out = append(out, zap.Error(err))
	}

	return out
}

// WithFields creates a new logger with additional fields attached to every entry
func (l *StructuredLogger) WithFields(fields Fields) *StructuredLogger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zfields := make([]zap.Field, 0, len(fields))
	for _, k := range keys {
		zfields = append(zfields, zap.Any(k, fields[k]))
	}

	return &StructuredLogger{
		zl:      l.zl.With(zfields...),
		service: l.service,
		version: l.version,
	}
}
