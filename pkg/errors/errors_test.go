package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeStorageWrite, "upload"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeQuery, "boom")
	outer := Wrap(inner, ErrorTypeStagingLoad, "load products")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, stderrors.Is(outer, inner))
	assert.Equal(t, "staging_load: load products: query: boom", outer.Error())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeConfig, TypeOf(New(ErrorTypeConfig, "x")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrorTypeSourceUnavailable, true},
		{ErrorTypeStorageWrite, true},
		{ErrorTypeConnection, true},
		{ErrorTypeConfig, false},
		{ErrorTypeStagingLoad, false},
		{ErrorTypeExportQuery, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(New(tt.errType, "x")))
		})
	}
	assert.False(t, IsRetryable(stderrors.New("plain")))
}
