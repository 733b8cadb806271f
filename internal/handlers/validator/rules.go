package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewRecordValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("record_id", uuidValidator),
		},
		{
			Rule: registerFn("artifact_url", artifactURLValidator),
		},
	}
}

func NewChatValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("chat_role", chatRoleValidator),
		},
	}
}

func NewReportValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("report_format", reportFormatValidator),
		},
	}
}
