package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("invalid configuration")
)

// ValidationError reports malformed input (bad date-key, HH:MM, target...).
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	msg := "invalid value"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", msg)
	}
	if e.Value == "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, msg)
	}
	return fmt.Sprintf("validation: %s %q: %s", e.Field, e.Value, msg)
}

func (e *ValidationError) Unwrap() error        { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing entity that the caller required.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConfigurationError reports unusable settings such as an unknown time zone.
type ConfigurationError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("configuration: %s: unsupported value %q", e.Key, e.Value)
	}
	return fmt.Sprintf("configuration: %s: unsupported value %q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error        { return e.Err }
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func Invalid(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}
