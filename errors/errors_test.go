package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestClassifiedError(t *testing.T) {
	base := New("handle construction rejected")
	ce := &ClassifiedError{
		Class:     ErrorInvalid,
		Err:       base,
		Message:   "module.New: construction failed",
		Component: "module",
		Operation: "New",
	}

	assert.Equal(t, "module.New: construction failed", ce.Error())
	assert.Equal(t, base, ce.Unwrap())

	// Without a message the underlying error's text is used
	ce.Message = ""
	assert.Equal(t, "handle construction rejected", ce.Error())
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "Engine", "AddModule", "factory dispatch"))
	})

	t.Run("wraps with standard format", func(t *testing.T) {
		err := Wrap(ErrUnknownCategory, "Engine", "AddModule", "factory dispatch")
		require.Error(t, err)
		assert.Equal(t, "Engine.AddModule: factory dispatch failed: unknown module category", err.Error())
		assert.True(t, Is(err, ErrUnknownCategory))
	})
}

func TestWrapClassified(t *testing.T) {
	base := New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.wrap(nil, "c", "m", "a"))

			err := tt.wrap(base, "Engine", "Start", "resume context")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Engine", ce.Component)
			assert.Equal(t, "Start", ce.Operation)
			assert.True(t, Is(err, base))
		})
	}
}

func TestWrapBackend(t *testing.T) {
	assert.NoError(t, WrapBackend(nil, "Module", "Update", "mirror frequency"))

	base := New("oscillator param rejected")
	err := WrapBackend(base, "Module", "Update", "mirror frequency")
	require.Error(t, err)
	assert.True(t, Is(err, ErrBackendFailure))
	assert.True(t, Is(err, base))

	// Already-tagged backend errors are not double tagged
	err2 := WrapBackend(fmt.Errorf("create: %w", ErrBackendFailure), "Module", "New", "create handle")
	assert.True(t, Is(err2, ErrBackendFailure))
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(nil))

	for _, err := range []error{
		ErrUnknownCategory,
		ErrNotFound,
		ErrCategoryMismatch,
		ErrInvalidPropsField,
		ErrSelfConnect,
	} {
		assert.True(t, IsInvalid(fmt.Errorf("op: %w", err)), err.Error())
	}

	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(ErrBackendSuspended))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(New("dial tcp: connection refused")))
	assert.False(t, IsTransient(New("props field rejected")))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrEngineClosed))
	assert.False(t, IsFatal(ErrNotFound))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrNotFound))
	assert.Equal(t, ErrorFatal, Classify(ErrEngineClosed))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionTimeout))
	// Classified wrapper wins over sentinel heuristics
	assert.Equal(t, ErrorTransient, Classify(WrapBackend(New("x"), "c", "m", "a")))
	// Unknown errors default to transient
	assert.Equal(t, ErrorTransient, Classify(New("mystery")))
}
