// Package logger provides a global, Sugared Zap logger. It emits JSON logs,
// is configured once through functional options and enriches every entry
// with fields stored in the context and with the active trace/span IDs when
// an OpenTelemetry span is recording.
//
// Logging before Init is a no-op, so library packages can log freely in
// tests without any setup.
package logger

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// baseLogger is the global SugaredLogger instance set by Init.
	baseLogger *zap.SugaredLogger

	// initBaseLoggerOnce guards baseLogger so it is only configured once.
	initBaseLoggerOnce sync.Once

	// nopLogger is used while Init has not been called.
	nopLogger = zap.NewNop().Sugar()
)

// fieldsKey is the context key holding extra key/value pairs.
type fieldsKey struct{}

// config holds configuration options for the logger.
type config struct {
	level  string    // minimum log level (debug, info, warn, error, panic, fatal)
	writer io.Writer // destination of the JSON entries
}

// Option configures the logger before initialization.
type Option func(*config)

// WithLevel sets the minimum log level. Default: "info".
func WithLevel(l string) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithWriter sets where entries are written. Default: os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// Init configures the global logger. Calling Init again after a successful
// initialization has no effect.
//
// Parameters:
//   - opts: WithLevel and WithWriter options.
//
// Returns:
//   - An error if the level cannot be parsed.
func Init(opts ...Option) error {
	cfg := config{
		level:  "info",
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	level, err := zapcore.ParseLevel(cfg.level)
	if err != nil {
		return err
	}

	initBaseLoggerOnce.Do(func() {
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(cfg.writer),
			level,
		)

		baseLogger = zap.New(core).Sugar()
	})

	return nil
}

// Sync flushes any buffered log entries. Call it on shutdown.
func Sync() error {
	if baseLogger == nil {
		return nil
	}

	return baseLogger.Sync()
}

// With returns a copy of ctx carrying extra key/value pairs that are added to
// every entry logged with it.
func With(ctx context.Context, keysAndValues ...any) context.Context {
	fields, _ := ctx.Value(fieldsKey{}).([]any)

	merged := make([]any, 0, len(fields)+len(keysAndValues))
	merged = append(merged, fields...)
	merged = append(merged, keysAndValues...)

	return context.WithValue(ctx, fieldsKey{}, merged)
}

// fromCtx derives the logger for ctx: the base logger plus context fields
// and trace identifiers.
func fromCtx(ctx context.Context) *zap.SugaredLogger {
	if baseLogger == nil {
		return nopLogger
	}

	l := baseLogger
	if fields, ok := ctx.Value(fieldsKey{}).([]any); ok && len(fields) > 0 {
		l = l.With(fields...)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With("trace.id", sc.TraceID().String(), "span.id", sc.SpanID().String())
	}

	return l
}

// Debug logs a debug-level message with optional key/value context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	fromCtx(ctx).Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key/value context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	fromCtx(ctx).Infow(msg, keysAndValues...)
}

// Warn logs a warn-level message with optional key/value context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	fromCtx(ctx).Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key/value context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	fromCtx(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message and then exits.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	fromCtx(ctx).Fatalw(msg, keysAndValues...)
}
