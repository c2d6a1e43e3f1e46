package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrDenied indicates the caller lacks the required permission.
	ErrDenied = errors.New("permission denied")
	// ErrInvalidCredentials indicates API token authentication failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput indicates a malformed or missing argument.
	ErrInvalidInput = errors.New("invalid input")
)
