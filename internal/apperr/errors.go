// Package apperr holds the error kinds a batch run can fail with.
package apperr

import "errors"

var (
	ErrImport               = errors.New("import failed")
	ErrMissingReferenceClip = errors.New("missing reference clip")
	ErrMissingCurve         = errors.New("missing curve")
	ErrStructuralMismatch   = errors.New("structural mismatch")
	ErrCadenceMismatch      = errors.New("keyframe cadence mismatch")
	ErrInvalidState         = errors.New("invalid state")
	ErrAlreadyProcessed     = errors.New("already processed")
)
