package errors

import "errors"

var (
	ErrNotFound      = errors.New("payment not found")
	ErrInvalidID     = errors.New("invalid payment ID format")
	ErrStatusChanged = errors.New("payment status changed concurrently")
)
