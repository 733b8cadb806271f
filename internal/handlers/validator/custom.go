package validator

import (
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func uuidValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(val)
	return err == nil
}

func artifactURLValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	u, err := url.Parse(val)
	return err == nil && u.Scheme != "" && u.Path != ""
}

func chatRoleValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	switch val {
	case "user", "assistant":
		return true
	default:
		return false
	}
}

func reportFormatValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	switch val {
	case "csv", "json", "html":
		return true
	default:
		return false
	}
}
