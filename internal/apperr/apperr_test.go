package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedChain(t *testing.T) {
	base := NotFound("contest not found")
	wrapped := fmt.Errorf("failed to load contest: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, "contest not found", Message(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal server error", Message(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("bad verifier")
	err := Wrap(KindUnauthorized, "OAuth verification failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "OAuth verification failed: bad verifier", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindState:        http.StatusConflict,
		KindConfig:       http.StatusServiceUnavailable,
		KindInternal:     http.StatusInternalServerError,
	}

	for kind, want := range tests {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}
