package agent

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: network hiccups, rate
// limits, a collaborator that will recover on its own.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that retrying cannot fix: bad configuration,
// an invalid descriptor, a missing collaborator. The scheduler disables
// the descriptor until it is re-registered.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Fatal wraps err as non-retryable. Returns nil for a nil err.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsTransient reports whether err should be retried. Unclassified errors
// count as transient; only fatal errors do not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !IsFatal(err)
}
