package log

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, lvl zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(lvl)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestOperationHook(t *testing.T) {
	hook := HookFunc(operationFields)

	t.Run("with operation id", func(t *testing.T) {
		ctx := WithOperation(context.Background(), "op-1")
		fields := hook.Apply(ctx, "msg")
		require.Len(t, fields, 1)
		assert.Equal(t, "operation_id", fields[0].Key)
		assert.Equal(t, "op-1", fields[0].String)
	})

	t.Run("with operation and actor", func(t *testing.T) {
		ctx := WithActor(WithOperation(context.Background(), "op-1"), "Admin")
		fields := hook.Apply(ctx, "msg")
		require.Len(t, fields, 2)
		assert.Equal(t, "actor", fields[1].Key)
	})

	t.Run("without values", func(t *testing.T) {
		assert.Empty(t, hook.Apply(context.Background(), "msg"))
	})

	t.Run("with nil context", func(t *testing.T) {
		//nolint:staticcheck
		assert.Empty(t, hook.Apply(nil, "msg"))
	})
}

func TestWrite_AppliesHooks(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	ctx := WithOperation(context.Background(), "op-42")
	Info(ctx, "bits persisted", String("id", "10"), Cause(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bits persisted", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "10", fields["id"])
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "op-42", fields["operation_id"])
}

func TestWrite_RespectsLevel(t *testing.T) {
	logs := observe(t, zapcore.WarnLevel)

	Debug(context.Background(), "hidden")
	Info(context.Background(), "hidden")
	Warn(context.Background(), "shown")
	Error(context.Background(), "shown")

	assert.Equal(t, 2, logs.Len())
}

func TestSetLevel_Invalid(t *testing.T) {
	assert.Error(t, SetLevel("loud"))
	require.NoError(t, SetLevel("info"))
}

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := New(Config{Encoding: "xml"})
	assert.Error(t, err)
}
