package services

import "errors"

var (
	// ErrSyncInProgress is returned when a processing pass is already
	// running for the same user on this or another instance.
	ErrSyncInProgress = errors.New("sync already in progress for this user")

	ErrConflictNotFound  = errors.New("conflict not found or access denied")
	ErrInvalidResolution = errors.New("invalid resolution type")
	ErrMergeDataRequired = errors.New("merged data required for MERGE resolution")
)

// ValidationError reports a malformed enqueue request. It is surfaced
// synchronously to the caller; nothing invalid ever reaches the queue.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
