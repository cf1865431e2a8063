package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// ValidateStruct returns nil or one error listing every failed field
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field())
		param := fieldErr.Param()

		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "min", "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, param))
		case "max", "lte":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, param))
		case "email":
			messages = append(messages, field+" must be a valid email")
		case "url":
			messages = append(messages, field+" must be a valid url")
		default:
			messages = append(messages, field+" is invalid")
		}
	}

	return errors.New(strings.Join(messages, ", "))
}
