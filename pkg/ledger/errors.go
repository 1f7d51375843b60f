package ledger

import "p9e.in/genfuel/pkg/apperr"

var (
	ErrContainerNotFound = apperr.New(apperr.NotFound, "main container not found")
	ErrContainerExists   = apperr.New(apperr.Conflict, "main container already exists")
	ErrGeneratorNotFound = apperr.New(apperr.NotFound, "generator not found")

	ErrContainerCapacityExceeded = apperr.New(apperr.Rule, "main container capacity exceeded")
	ErrCapacityBelowContents     = apperr.New(apperr.Rule, "new capacity cannot be less than current fuel level")
	ErrInsufficientMainFuel      = apperr.New(apperr.Rule, "insufficient fuel in main container")
	ErrGeneratorCapacityExceeded = apperr.New(apperr.Rule, "generator capacity exceeded")
	ErrInsufficientGeneratorFuel = apperr.New(apperr.Rule, "insufficient fuel in generator")

	ErrInvalidCapacity = apperr.New(apperr.Validation, "capacity must be greater than 0")
	ErrInvalidQuantity = apperr.New(apperr.Validation, "quantity must be greater than 0")
	ErrInvalidRate     = apperr.New(apperr.Validation, "rate must not be negative")
	ErrInvalidAmount   = apperr.New(apperr.Validation, "amount must be greater than 0")
	ErrInvalidRunTimes = apperr.New(apperr.Validation, "end time must be after start time")
)
