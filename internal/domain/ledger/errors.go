package ledger

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientXP    = errors.New("insufficient xp balance")
	ErrReferenceConflict = errors.New("reference conflicts with different amount")
)
