package service

import (
	"errors"
	"strings"

	"autoservice/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validationError turns the first validator failure into a domain.ValidationError.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return domain.NewValidationError(strings.ToLower(fe.Field()), reason)
	}
	return domain.NewValidationError("", err.Error())
}

func validateStruct(v interface{}) error {
	return validationError(validate.Struct(v))
}

// validateVar checks a single value against a validator tag.
func validateVar(field string, value interface{}, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.NewValidationError(field, verrs[0].Tag())
		}
		return domain.NewValidationError(field, err.Error())
	}
	return nil
}
