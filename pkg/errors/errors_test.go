package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", Clone(ErrTimeout, "too slow"))
	got := FromError(wrapped)
	assert.Equal(t, ErrTimeout.Code, got.Code)
	assert.Equal(t, "too slow", got.Message)
	assert.Equal(t, http.StatusGatewayTimeout, got.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(stderrors.New("dial tcp"), ErrNetwork.Code, ErrNetwork.Status, "network down")
	assert.True(t, stderrors.Is(err, ErrNetwork))
	assert.False(t, stderrors.Is(err, ErrTimeout))
}
