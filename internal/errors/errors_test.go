package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
	}{
		{"config code", ErrCodeConfigInvalid, CategoryConfig},
		{"store code", ErrCodeStoreUnavailable, CategoryStore},
		{"llm code", ErrCodeLLMTimeout, CategoryLLM},
		{"validation code", ErrCodeInvalidParams, CategoryValidation},
		{"internal code", ErrCodeInternal, CategoryInternal},
		{"short garbage", "ERR", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestError_FormatsCodeAndMessage(t *testing.T) {
	err := New(ErrCodeUnknownTemplate, "no such template", nil)
	assert.Equal(t, "[ERR_402_UNKNOWN_TEMPLATE] no such template", err.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeStoreUnavailable, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeStoreUnavailable, "down", nil)
	b := StoreUnavailable(nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, New(ErrCodeLLMTimeout, "slow", nil)))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeLLMTimeout, "slow", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidParams, "bad", nil)))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestStoreUnavailable_IsFatal(t *testing.T) {
	err := StoreUnavailable(nil)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.Equal(t, ErrCodeStoreUnavailable, GetCode(err))
	assert.Equal(t, CategoryStore, GetCategory(err))
}

func TestWithDetail_Chains(t *testing.T) {
	err := New(ErrCodeInvalidParams, "bad", nil).
		WithDetail("param", "topic").
		WithDetail("reason", "empty")

	assert.Equal(t, "topic", err.Details["param"])
	assert.Equal(t, "empty", err.Details["reason"])
}
