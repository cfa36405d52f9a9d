package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceOperation(t *testing.T) {
	attributes := map[string]interface{}{
		"string_attr":  "value",
		"int_attr":     42,
		"int64_attr":   int64(123),
		"bool_attr":    true,
		"float64_attr": 3.14,
		"unknown_attr": struct{}{},
	}

	spanCtx, span, cleanup := TraceOperation(context.Background(), "test_operation", attributes)

	assert.NotNil(t, spanCtx)
	assert.NotNil(t, span)
	assert.NotPanics(t, cleanup)
}

func TestTraceHelpers(t *testing.T) {
	ctx := context.Background()

	_, span, cleanup := TraceDatabaseOperation(ctx, "find", "registrations")
	RecordErrorInSpan(span, errors.New("boom"), map[string]interface{}{"db.collection": "registrations"})
	cleanup()

	_, _, cleanup = TraceCacheOperation(ctx, "get", "groups:active")
	cleanup()

	_, _, cleanup = TraceBusinessLogic(ctx, "commit_registration")
	cleanup()
}
