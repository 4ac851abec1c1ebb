// Package fault defines the error taxonomy shared by all domain packages.
// Domain code wraps these sentinels with context via fmt.Errorf("%w: ...")
// and the API layer maps them to HTTP status codes with errors.Is.
package fault

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrInternal        = errors.New("internal error")
)
