package status

import "errors"

var (
	ErrValidation        = errors.New("participant: missing or malformed field")
	ErrConflict          = errors.New("participant: duplicate key")
	ErrNotFound          = errors.New("participant: not found")
	ErrAlreadyAccredited = errors.New("participant: already accredited")
	ErrParse             = errors.New("import: malformed upload")
)
