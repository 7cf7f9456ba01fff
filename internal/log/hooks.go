package log

import "context"

// Hook derives extra fields from the context of a log call.
type Hook interface {
	Apply(ctx context.Context, msg string) []Field
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, msg string) []Field

func (f HookFunc) Apply(ctx context.Context, msg string) []Field {
	return f(ctx, msg)
}

type operationKey struct{}

type actorKey struct{}

// WithOperation tags ctx with a redaction operation id.
func WithOperation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationKey{}, id)
}

// WithActor tags ctx with the acting user's name.
func WithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorKey{}, name)
}

// OperationID returns the id set by WithOperation, if any.
func OperationID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(operationKey{}).(string)
	return id, ok && id != ""
}

func operationFields(ctx context.Context, _ string) []Field {
	if ctx == nil {
		return nil
	}
	var fields []Field
	if id, ok := OperationID(ctx); ok {
		fields = append(fields, String("operation_id", id))
	}
	if name, ok := ctx.Value(actorKey{}).(string); ok && name != "" {
		fields = append(fields, String("actor", name))
	}
	return fields
}
