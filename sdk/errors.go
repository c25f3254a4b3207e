package sdk

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPostgresConfig is returned by AutoConnect when the user has no
	// database host configured.
	ErrNoPostgresConfig = errors.New("no PostgreSQL configuration found")
	// ErrIncompletePostgresConfig is returned when host, database or
	// username is missing.
	ErrIncompletePostgresConfig = errors.New("incomplete PostgreSQL configuration")
	// ErrRegistrationRejected is returned when the backend answers without
	// reporting success.
	ErrRegistrationRejected = errors.New("form registration rejected")
)

// PartialFailure reports that the survey table was created but the form
// could not be registered on the backend.
type PartialFailure struct {
	Table string
	Err   error
	// Compensated is true when the table was dropped again.
	Compensated bool
	// CompensationErr holds the failure of the drop, if it was attempted.
	CompensationErr error
}

func (e *PartialFailure) Error() string {
	switch {
	case e.Compensated:
		return fmt.Sprintf("form registration failed, table %s dropped: %v", e.Table, e.Err)
	case e.CompensationErr != nil:
		return fmt.Sprintf("form registration failed, table %s left in place (drop failed: %v): %v", e.Table, e.CompensationErr, e.Err)
	default:
		return fmt.Sprintf("form registration failed, table %s left in place: %v", e.Table, e.Err)
	}
}

func (e *PartialFailure) Unwrap() error { return e.Err }
