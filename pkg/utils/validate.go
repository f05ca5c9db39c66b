package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a struct against its validate tags and returns a readable
// error listing every failed field.
func Validate[T any](value T) error {
	if err := validate.Struct(value); err != nil {
		return validationErrorToString(value, err)
	}
	return nil
}

func validationErrorToString(input any, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msg := ""
		for _, fe := range verrs {
			msg += fmt.Sprintf("\n • Failed %T validation for field '%s': rule '%s' expected '%s', got '%v'.", input, fe.StructField(), fe.Tag(), fe.Param(), fe.Value())
		}
		return errors.New(msg)
	}
	return err
}
