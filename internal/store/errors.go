package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrInvalidTransition is returned when a conditional status update matched no row.
	ErrInvalidTransition = errors.New("invalid status transition")
)
