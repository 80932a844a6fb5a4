package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", Clone(ErrNotFound, "announcement not found"))
	appErr := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "announcement not found", appErr.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, ErrFeedRefresh.Code, ErrFeedRefresh.Status, "refresh failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "refresh failed: db down", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	clone := Clone(ErrFeedUnavailable, "still loading")
	assert.ErrorIs(t, fmt.Errorf("ready: %w", clone), ErrFeedUnavailable)
	assert.False(t, errors.Is(clone, ErrFeedRefresh))
	assert.False(t, errors.Is(clone, errors.New("still loading")))
}
