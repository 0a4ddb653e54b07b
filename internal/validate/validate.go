package validate

import (
	"github.com/go-playground/validator/v10"

	"storefront/internal/api"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Struct validates v against its validation tags and returns an
// api.ValidationError listing the rejected fields, so callers surface
// the same error type for local and server-side rejections.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	return &api.ValidationError{Fields: formatValidationErrors(err)}
}

// formatValidationErrors converts validator errors to a readable format
func formatValidationErrors(err error) []api.FieldError {
	var errors []api.FieldError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, api.FieldError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return errors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	default:
		return "Invalid value"
	}
}
