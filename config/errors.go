package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is matched by every *ConfigError.
var ErrInvalid = errors.New("invalid configuration")

// ConfigError reports one invalid configuration key.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Field   string // config key path (e.g., "transport.maxattempts")
	Message string // lowercase message
	Value   string
}

func (e *ConfigError) Error() string {
	parts := []string{"config_invalid:", e.Field, e.Message}
	if e.Value != "" {
		parts = append(parts, fmt.Sprintf("(got %q)", e.Value))
	}
	return strings.Join(parts, " ")
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalid
}

// ValidationError collects every invalid key found in one pass.
type ValidationError struct {
	Errors []*ConfigError
}

func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 1 {
		return ve.Errors[0].Error()
	}
	msgs := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%d invalid keys: %s", len(ve.Errors), strings.Join(msgs, "; "))
}

func (ve *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		errs = append(errs, e)
	}
	return errs
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	ve := &ValidationError{Errors: make([]*ConfigError, 0, len(errs))}
	for _, fe := range errs {
		ve.Errors = append(ve.Errors, &ConfigError{
			Field:   fieldPath(fe),
			Message: errorMessage(fe),
			Value:   fmt.Sprintf("%v", fe.Value()),
		})
	}
	return ve
}

// fieldPath turns "Config.transport.maxattempts" into "transport.maxattempts".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return "must not be negative"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return "must be a valid URL"
	case "required":
		return "must not be empty"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
