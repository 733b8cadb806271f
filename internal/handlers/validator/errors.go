package validator

import (
	"fmt"
)

type ErrValidation struct {
	error
	Field string
}

func NewErrValidation(field, format string, args ...any) *ErrValidation {
	return &ErrValidation{error: fmt.Errorf(format, args...), Field: field}
}
