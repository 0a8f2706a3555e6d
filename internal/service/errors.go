// errors.go: business-layer errors of the service package.
package service

import "errors"

var (
	// ErrNotFound: resource not found (or not owned by the caller).
	ErrNotFound = errors.New("resource not found")
	// ErrConflict: resource already exists.
	ErrConflict = errors.New("conflict: resource already exists")
	// ErrValidation: invalid input.
	ErrValidation = errors.New("validation error")
	// ErrInvalidCredentials: unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrStorageUnavailable: the pinning service failed or is unreachable.
	ErrStorageUnavailable = errors.New("content store unavailable")
)
