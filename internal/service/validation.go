package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rryowa/blogauth/internal/util"
)

const (
	passwordMinLen = 8
	passwordMaxLen = 25
)

type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// A fixed, well-formed registration cannot fail.
	_ = v.RegisterValidation("password", validatePassword)

	return &RequestValidator{validate: v}
}

// Validate returns a validation ResponseError listing every offending field.
func (rv *RequestValidator) Validate(req any) error {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return util.NewValidationError("invalid request")
	}

	fields := make([]util.FieldError, 0, len(vErrs))
	for _, fe := range vErrs {
		fields = append(fields, util.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}

	return util.NewValidationError(summarize(fields), fields...)
}

// validatePassword accepts 8-25 ASCII letters and digits with at least one
// lowercase letter, one uppercase letter and one digit.
func validatePassword(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if len(p) < passwordMinLen || len(p) > passwordMaxLen {
		return false
	}

	var lower, upper, digit bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			return false
		}
	}
	return lower && upper && digit
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters long"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters long"
	case "email":
		return fe.Field() + " must be a valid email"
	case "password":
		return fe.Field() + " must be 8-25 letters and digits with an uppercase letter, a lowercase letter and a digit"
	case "eqfield":
		return fe.Field() + " must match password"
	default:
		return fe.Field() + " is invalid"
	}
}

func summarize(fields []util.FieldError) string {
	if len(fields) == 1 {
		return fields[0].Message
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return "invalid fields: " + strings.Join(names, ", ")
}
