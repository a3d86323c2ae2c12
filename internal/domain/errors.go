package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located
	// inside the caller's ownership scope. An out-of-scope id is
	// indistinguishable from a missing one.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrSessionTokenRequired is returned when a claim is attempted
	// without supplying the session token to transfer from.
	ErrSessionTokenRequired = errors.New("session token required")
	// ErrOwnerRequired is returned when a write carries neither an
	// authenticated user nor a session token.
	ErrOwnerRequired = errors.New("activity owner required")
)

// ValidationError reports malformed caller input with per-field messages.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds an empty ValidationError for callers that
// accumulate field messages.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// Messages returns the field messages in a stable order.
func (e *ValidationError) Messages() []string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s %s", field, e.Fields[field]))
	}
	return messages
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), ", ")
}
