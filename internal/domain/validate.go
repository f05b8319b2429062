package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct runs the struct's validate tags and converts failures into
// field messages keyed by json name.
func validateStruct(v any) *ValidationError {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return (*ValidationError)(nil).With("_", err.Error())
	}
	var verr *ValidationError
	for _, fe := range fieldErrs {
		verr = verr.With(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
