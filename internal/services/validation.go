package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"teamtasks/backend/internal/models"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.IsKnownPriority(fl.Field().String())
	})
	v.RegisterValidation("activitytype", func(fl validator.FieldLevel) bool {
		return models.IsKnownActivityType(fl.Field().String())
	})
	return v
}

// validate runs struct validation and folds the field errors into a single
// ErrValidation.
func validate(v *validator.Validate, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "priority":
			msgs = append(msgs, fmt.Sprintf("%s must be one of high, medium, normal, low", fe.Field()))
		case "activitytype":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid activity type", fe.Field(), fe.Value()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
