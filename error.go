package obdcan

import (
	"errors"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable marks a driver error that retrying Open will not fix
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	var u unrecoverableError
	return !errors.As(err, &u)
}

var (
	ErrDroppedFrame  = errors.New("driver incoming channel full")
	ErrDriverClosed  = errors.New("driver closed")
	ErrNotConfigured = errors.New("driver not opened")
)
