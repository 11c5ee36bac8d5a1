package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTenantRequired is returned when a tenant-scoped call carries no user
	// identity. Checked before any I/O so tenancy isolation cannot be bypassed.
	ErrTenantRequired = errors.New("tenant id required")
	// ErrJobTerminal is returned on an attempt to mutate a job that already
	// reached success, failed or cancelled.
	ErrJobTerminal = errors.New("job already terminal")
)
