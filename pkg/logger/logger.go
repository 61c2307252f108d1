// Package logger provides structured logging with context support.
//
// Recompute paths attach their target to the context once (WithDocument,
// WithScope, WithMessage); every logger.Info(ctx, ...) below that point
// carries the fields without repeating them at each call site.
package logger

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "supplyledger/internal/core/context"
)

// Logger wraps zap.SugaredLogger with context-aware logging.
type Logger struct {
	*zap.SugaredLogger
}

// loggerKey is the context key for Logger.
type loggerKey struct{}

// Field names shared by the recompute paths.
const (
	FieldComponent    = "component"
	FieldDocumentType = "document_type"
	FieldDocumentID   = "document_id"
	FieldScope        = "scope"
	FieldMessageID    = "message_id"
	FieldEventType    = "event_type"
)

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder with colours
	OutputPaths []string
}

// New creates a new Logger from configuration.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var config zap.Config
	if cfg.Development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	config.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		config.OutputPaths = cfg.OutputPaths
	}

	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{zapLogger.Sugar()}, nil
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide fallback logger writing JSON to stdout.
func Default() *Logger {
	defaultOnce.Do(func() {
		config := zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		zapLogger, err := config.Build(zap.AddCallerSkip(1))
		if err != nil {
			zapLogger = zap.NewNop()
		}
		defaultLogger = &Logger{zapLogger.Sugar()}
	})
	return defaultLogger
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// WithContext adds trace, request and span ids from ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	tc := appctx.GetTrace(ctx)
	if tc == nil {
		return l
	}

	kv := []any{"trace_id", tc.TraceID, "request_id", tc.RequestID}
	if tc.SpanID != "" {
		kv = append(kv, "span_id", tc.SpanID)
	}
	return &Logger{l.SugaredLogger.With(kv...)}
}

// With adds key-value pairs to logger.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l.SugaredLogger.With(keysAndValues...)}
}

// WithComponent adds component name to logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With(FieldComponent, name)}
}

// --- Context-based logger access ---

// WithLogger adds Logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// base returns the logger stored in ctx without trace enrichment.
func base(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// FromContext returns the context logger enriched with trace ids.
func FromContext(ctx context.Context) *Logger {
	return base(ctx).WithContext(ctx)
}

// WithFields returns a context whose logger carries keysAndValues.
// Trace ids are still added at log time, so they never repeat.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	if len(keysAndValues) == 0 {
		return ctx
	}
	return WithLogger(ctx, base(ctx).With(keysAndValues...))
}

// WithDocument tags ctx with the document being recomputed.
func WithDocument(ctx context.Context, documentType string, documentID fmt.Stringer) context.Context {
	return WithFields(ctx, FieldDocumentType, documentType, FieldDocumentID, documentID.String())
}

// WithScope tags ctx with the stock scope key being replayed.
func WithScope(ctx context.Context, scopeKey string) context.Context {
	return WithFields(ctx, FieldScope, scopeKey)
}

// WithMessage tags ctx with the outbox message being handled.
func WithMessage(ctx context.Context, messageID fmt.Stringer, eventType string) context.Context {
	return WithFields(ctx, FieldMessageID, messageID.String(), FieldEventType, eventType)
}

// Debug logs at debug level from context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

// Info logs at info level from context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

// Warn logs at warn level from context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

// Error logs at error level from context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs at fatal level and exits.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Fatalw(msg, keysAndValues...)
	os.Exit(1)
}
