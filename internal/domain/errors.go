package domain

import "errors"

// Lifecycle domain errors
var (
	ErrBatchNotFound        = errors.New("batch not found")
	ErrActorNotFound        = errors.New("actor not found")
	ErrDestructionNotFound  = errors.New("destruction request not found")
	ErrReturnNotFound       = errors.New("return record not found")
	ErrInsufficientQuantity = errors.New("insufficient batch quantity")
	ErrInvalidQuantity      = errors.New("quantity must be positive")

	// ErrInvalidTransition is returned when a product status change is forbidden
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned when a workflow operation is attempted from the wrong state
	ErrInvalidState = errors.New("invalid workflow state")

	ErrInvalidStatus            = errors.New("invalid product status")
	ErrInvalidDestructionReason = errors.New("invalid destruction reason")
	ErrInvalidDestructionMethod = errors.New("invalid destruction method")
	ErrInvalidReturnDecision    = errors.New("return decision must be PROCESSED or REJECTED")
	ErrInvalidQualityCheck      = errors.New("invalid quality check result")
	ErrInvalidAction            = errors.New("invalid event action")
	ErrInvalidBizStep           = errors.New("invalid business step")
	ErrInvalidDisposition       = errors.New("invalid disposition")
	ErrMissingStatusKey         = errors.New("one of productId, batchId or sgtin is required")

	// ErrEmptyChildList is returned when an aggregation event has no children
	ErrEmptyChildList = errors.New("child identifier list must not be empty")
	ErrEmptyEPCList   = errors.New("EPC list must not be empty")
	ErrMissingParent  = errors.New("parent identifier is required")
)
