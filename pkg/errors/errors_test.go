package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesKind(t *testing.T) {
	cause := errors.New("no documents")
	err := ErrNotFoundWithID("batch", "B-1").Wrap(cause)

	assert.ErrorIs(t, err, KindNotFound)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, KindStorage)
	assert.NotErrorIs(t, err, ErrNotFound("actor"), "populated errors are not kind markers")
	assert.Equal(t, "B-1", err.Details["id"])
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "VALIDATION_ERROR: bad input", ErrValidation("bad input").Error())
	assert.Equal(t, "STORAGE_ERROR: save failed: timeout", ErrStorage("save", errors.New("timeout")).Error())
}

func TestCodeOfAndFromError(t *testing.T) {
	assert.Equal(t, CodeInsufficientQuantity, CodeOf(ErrInsufficientQuantity("B-1", 11, 10)))
	assert.Equal(t, CodeInternalError, CodeOf(errors.New("plain")))

	assert.Nil(t, FromError(nil))
	internal := FromError(errors.New("plain"))
	assert.Equal(t, CodeInternalError, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)

	original := ErrExhaustedRetries("generate batch number", 100)
	assert.Same(t, original, FromError(original))
}
