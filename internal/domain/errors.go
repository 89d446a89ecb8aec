package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflicting record exists")
	ErrNotFound           = errors.New("record not found")
	ErrPastAppointment    = errors.New("appointment time has already passed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNoAvailableWorker  = errors.New("no free workers at this time")
	ErrUnknownService     = errors.New("unknown service")
	ErrUnknownEntity      = errors.New("unknown entity")
)

// ValidationError describes malformed input. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// EntityError names the entity that could not be resolved.
type EntityError struct {
	Kind string
	Name string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func UnknownEntity(kind, name string) error {
	return &EntityError{Kind: kind, Name: name, Err: ErrUnknownEntity}
}

func UnknownService(name string) error {
	return &EntityError{Kind: "service", Name: name, Err: ErrUnknownService}
}
