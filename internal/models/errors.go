package models

import "errors"

// Error taxonomy shared by every store and controller. Wrap one of these
// with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
)
