package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/internal/gs1"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err  error
		kind *apperrors.AppError
	}{
		{fmt.Errorf("%w: bad digit", gs1.ErrFormat), apperrors.KindFormat},
		{domain.ErrBatchNotFound, apperrors.KindNotFound},
		{domain.ErrInsufficientQuantity, apperrors.KindInsufficientQuantity},
		{domain.ErrInvalidTransition, apperrors.KindInvalidTransition},
		{domain.ErrInvalidState, apperrors.KindInvalidState},
		{domain.ErrEmptyChildList, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			mapped := MapDomainError(tt.err)
			assert.ErrorIs(t, mapped, tt.kind)
			assert.ErrorIs(t, mapped, tt.err)
		})
	}

	assert.NoError(t, MapDomainError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, MapDomainError(plain))

	already := apperrors.ErrNotFound("batch")
	assert.Same(t, already, MapDomainError(already))
}

func TestValidateCommand(t *testing.T) {
	err := validateCommand(GenerateBatchNumberCommand{Prefix: "bad prefix!"})
	assert.ErrorIs(t, err, apperrors.KindValidation)

	appErr, ok := apperrors.AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "batch_prefix", appErr.Details["prefix"])
	assert.Equal(t, "required", appErr.Details["productId"])

	assert.NoError(t, validateCommand(GenerateBatchNumberCommand{Prefix: "LOT-A", ProductID: "P", UserID: "U"}))
}
