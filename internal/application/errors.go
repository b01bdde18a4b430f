package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/capacity"
	"github.com/example/backlog-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute such as an email is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when a write raced another write for the same user.
	ErrConflict = errors.New("application: conflict")
	// ErrIntegrity is returned when stored data breaks a backlog invariant.
	ErrIntegrity = errors.New("application: data integrity violation")
	// ErrInvalidCredentials is returned when a login or token cannot be verified.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned for tokens past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for tokens that were logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// engineError translates scheduler, projection and capacity faults into
// application errors.
func engineError(err error) error {
	if err == nil {
		return nil
	}

	var cfgErr *capacity.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return fieldError("preferences", fmt.Sprintf("%s %s", cfgErr.Field, cfgErr.Reason))
	case errors.Is(err, capacity.ErrInvalidConfiguration):
		return fieldError("preferences", err.Error())
	case errors.Is(err, scheduler.ErrInvalidHorizon):
		return fieldError("weeks", "must be at least 1")
	case errors.Is(err, backlog.ErrDuplicatePriority),
		errors.Is(err, backlog.ErrInvalidItem),
		errors.Is(err, scheduler.ErrInvalidSession):
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return err
}
