package medication

import "errors"

var (
	ErrMedicationNotFound = errors.New("medication not found")
	ErrInsufficientStock  = errors.New("insufficient stock: requested pills exceed pills remaining")
	ErrWriteConflict      = errors.New("write conflict: concurrent update on medication counter")
	ErrInvalidPillsCount  = errors.New("pills count must be positive")
)
