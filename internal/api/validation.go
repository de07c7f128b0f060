package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// BindingError turns a gin binding failure into a 400 body. Struct tag
// failures are listed per field; anything else (malformed JSON, wrong
// types) is reported as a single message.
func BindingError(err error) ValidationErrorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrorResponse{
			Error:   "invalid request body",
			Details: []ValidationError{{Message: err.Error()}},
		}
	}

	details := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, ValidationError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return ValidationErrorResponse{Error: "validation failed", Details: details}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must match the format " + fe.Param()
	default:
		return "is invalid"
	}
}
