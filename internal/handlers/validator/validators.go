package validator

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator is a wrapper around the actual validator
// It sets up the validator and extract the rule error message from the underlying error
type Validator struct {
	validator *validator.Validate
	messages  map[string]string
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &Validator{validator: v, messages: make(map[string]string)}
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
}

// WithMessage overrides the error message for a failing field, keyed "Struct.Field".
func (v *Validator) WithMessage(field, message string) *Validator {
	v.messages[field] = message
	return v
}

func (v *Validator) Struct(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	first := verrs[0]
	if msg, ok := v.messages[first.StructNamespace()]; ok {
		return NewErrValidation(first.Field(), "%s", msg)
	}
	return NewErrValidation(first.Field(), "field %s failed on %q", first.Field(), first.Tag())
}
