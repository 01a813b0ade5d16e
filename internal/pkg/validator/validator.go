// Package validator wraps go-playground/validator so the rest of the module
// validates structs and single values through one instance and gets
// uniformly formatted errors back.
//
// The instance is created on package load and is safe for concurrent use.
package validator

import (
	"errors"
	"fmt"

	gvalidator "github.com/go-playground/validator/v10"
)

// ErrValidationFailed is the first error in the chain returned when
// validation fails, so callers can match it with errors.Is.
var ErrValidationFailed = errors.New("validation failed")

// validator is the shared go-playground validator instance.
var validator *gvalidator.Validate

// errStringFormat describes a single failed rule.
//
// Example: "'WalletAddress': value '' does not meet the requirements for the 'required' validation"
const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

// varFieldName is reported as the field name for failures coming from Var.
const varFieldName = "value"

func init() {
	validator = gvalidator.New(gvalidator.WithRequiredStructEnabled())
}

// formatError turns validator errors into ErrValidationFailed joined with one
// message per failed field. Other errors are returned unchanged.
func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := []error{ErrValidationFailed}
	for _, validationErr := range validationErrors {
		field := validationErr.Field()
		if field == "" {
			field = varFieldName
		}

		errs = append(errs, fmt.Errorf(errStringFormat, field, validationErr.Value(), validationErr.Tag()))
	}

	return errors.Join(errs...)
}

// Validate checks v against its `validate` struct tags.
//
// Parameters:
//   - v: a struct, or a pointer to one.
//
// Returns:
//   - nil when every rule passes.
//   - ErrValidationFailed joined with one error per failed field otherwise.
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}

// Var checks a single value against a tag expression, e.g. Var(addr, "required").
func Var(value any, tag string) error {
	if err := validator.Var(value, tag); err != nil {
		return formatError(err)
	}

	return nil
}
