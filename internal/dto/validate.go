package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one invalid input field with a client-facing message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under their JSON names, not Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a request struct against its validate tags and returns the
// list of field errors, empty when the input is well formed.
func Validate(s any) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return []FieldError{{Field: "", Message: "invalid request"}}
	}

	out := make([]FieldError, 0, len(invalid))
	for _, fe := range invalid {
		out = append(out, FieldError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "datetime":
		return "Use the YYYY-MM-DD format."
	default:
		return "Invalid value."
	}
}
