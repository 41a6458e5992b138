package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"feeledger/internal/core"
)

// Messages shown for a failed rule on a field, keyed by json field name.
var fieldMessages = map[string]string{
	"student_id":     "student required",
	"student_fee_id": "fee record required",
	"payment_mode":   "invalid payment mode",
}

// NewValidator returns a validator that reports json field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct runs the struct rules and turns the first failure into a
// core.ValidationError.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}
	fe := verrs[0]
	if msg, ok := fieldMessages[fe.Field()]; ok {
		return core.NewValidationError(fe.Field(), "%s", msg)
	}
	switch fe.Tag() {
	case "required":
		return core.NewValidationError(fe.Field(), "%s required", fe.Field())
	case "max":
		return core.NewValidationError(fe.Field(), "%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return core.NewValidationError(fe.Field(), "%s is invalid", fe.Field())
}
