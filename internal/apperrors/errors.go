// Package apperrors defines the sentinel errors shared across services.
// Callers classify failures with errors.Is and wrap context around them
// with fmt.Errorf("%w: ...").
package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates an attempt to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrUnauthorized indicates missing or failed authentication.
var ErrUnauthorized = errors.New("unauthorized")
