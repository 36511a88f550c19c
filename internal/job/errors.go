package job

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTrigger means the triggering payload names no usable object. Drop, never retry.
	ErrMalformedTrigger = errors.New("malformed trigger")
	// ErrCapabilityIssuance means no upload capability could be granted.
	ErrCapabilityIssuance = errors.New("capability issuance failed")
	// ErrNotificationDispatch is non-fatal: logged, never blocks a stage result.
	ErrNotificationDispatch = errors.New("notification dispatch failed")
	ErrFetch                = errors.New("fetch failed")
	ErrRelocation           = errors.New("relocation failed")
	ErrRecognition          = errors.New("recognition failed")
	ErrForward              = errors.New("forwarding failed")
	// ErrMissingField is a delivery input contract violation. Terminal.
	ErrMissingField = errors.New("missing required field")
	ErrPersistence  = errors.New("persistence failed")
)

// StageError records which step of a stage failed.
type StageError struct {
	State string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retriable reports whether redelivering the trigger could succeed.
func Retriable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrMalformedTrigger), errors.Is(err, ErrMissingField):
		return false
	case errors.Is(err, ErrCapabilityIssuance):
		return false
	}
	return true
}

// StatusCode maps an error to the HTTP-style status reported in a stage Result.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrMalformedTrigger), errors.Is(err, ErrMissingField):
		return 400
	}
	return 500
}
