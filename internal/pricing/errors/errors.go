package errors

import "errors"

var (
	ErrNotFound  = errors.New("pricing rule not found")
	ErrInvalidID = errors.New("invalid pricing rule ID format")
)
