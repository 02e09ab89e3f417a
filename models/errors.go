package models

import "fmt"

// ValidationError reports invalid input rejected before any state change
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a lookup for an unknown resource ID
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a not-found error for a resource
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// QuotaExceededError reports that the upstream provider quota is exhausted
type QuotaExceededError struct {
	Status QuotaStatus
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quote provider quota exceeded (%d/%d), resets at %s",
		e.Status.Used, e.Status.Limit, e.Status.ResetTime.Format("15:04:05"))
}
