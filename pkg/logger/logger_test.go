package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "supplyledger/internal/core/context"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{zap.New(core).Sugar()}, logs
}

func fieldCount(entry observer.LoggedEntry, key string) int {
	n := 0
	for _, f := range entry.Context {
		if f.Key == key {
			n++
		}
	}
	return n
}

func TestWithDocument_FieldsFollowContext(t *testing.T) {
	log, logs := observed()
	docID := uuid.New()

	ctx := WithLogger(context.Background(), log)
	ctx = WithDocument(ctx, "requisition", docID)

	Info(ctx, "requisition status recomputed", "to", "finalized")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "requisition", fields[FieldDocumentType])
	assert.Equal(t, docID.String(), fields[FieldDocumentID])
	assert.Equal(t, "finalized", fields["to"])
}

func TestWithFields_TraceIDsAddedOnce(t *testing.T) {
	log, logs := observed()
	tc := appctx.NewTraceContext()
	tc.SpanID = "span-1"

	ctx := appctx.WithTrace(WithLogger(context.Background(), log), tc)
	ctx = WithScope(ctx, "w:p::")
	ctx = WithMessage(ctx, uuid.New(), "invoice.changed")

	Warn(ctx, "invoice line excluded from average cost")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, 1, fieldCount(entry, "trace_id"))
	assert.Equal(t, 1, fieldCount(entry, "span_id"))
	assert.Equal(t, "w:p::", entry.ContextMap()[FieldScope])
	assert.Equal(t, "invoice.changed", entry.ContextMap()[FieldEventType])
}

func TestWithFields_EmptyKeepsContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithFields(ctx))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)

	l, err := New(Config{Level: "warn", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}
