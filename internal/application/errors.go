package application

import (
	"errors"
	"net/http"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/internal/gs1"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
)

// MapDomainError converts domain and codec sentinels to AppErrors. The
// original error stays in the chain so errors.Is keeps matching it.
// Errors that already carry an AppError pass through unchanged.
func MapDomainError(err error) error {
	if err == nil || apperrors.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, gs1.ErrFormat):
		return apperrors.ErrFormat(err.Error()).Wrap(err)

	case errors.Is(err, domain.ErrBatchNotFound):
		return apperrors.ErrNotFound("batch").Wrap(err)
	case errors.Is(err, domain.ErrActorNotFound):
		return apperrors.ErrNotFound("actor").Wrap(err)
	case errors.Is(err, domain.ErrDestructionNotFound):
		return apperrors.ErrNotFound("destruction request").Wrap(err)
	case errors.Is(err, domain.ErrReturnNotFound):
		return apperrors.ErrNotFound("return record").Wrap(err)

	case errors.Is(err, domain.ErrInsufficientQuantity):
		return apperrors.NewAppError(apperrors.CodeInsufficientQuantity, err.Error(), http.StatusConflict).Wrap(err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperrors.NewAppError(apperrors.CodeInvalidTransition, err.Error(), http.StatusUnprocessableEntity).Wrap(err)
	case errors.Is(err, domain.ErrInvalidState):
		return apperrors.NewAppError(apperrors.CodeInvalidState, err.Error(), http.StatusConflict).Wrap(err)

	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidDestructionReason),
		errors.Is(err, domain.ErrInvalidDestructionMethod),
		errors.Is(err, domain.ErrInvalidReturnDecision),
		errors.Is(err, domain.ErrInvalidQualityCheck),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidBizStep),
		errors.Is(err, domain.ErrInvalidDisposition),
		errors.Is(err, domain.ErrMissingStatusKey),
		errors.Is(err, domain.ErrEmptyChildList),
		errors.Is(err, domain.ErrEmptyEPCList),
		errors.Is(err, domain.ErrMissingParent):
		return apperrors.ErrValidation(err.Error()).Wrap(err)
	}
	return err
}

// storageErr wraps a port failure, keeping already classified errors as they are
func storageErr(operation string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.ErrStorage(operation, err)
}
