package store

import (
	"errors"
	"fmt"
)

// Typed errors so callers branch on kind instead of parsing messages. The
// repository layer raises these itself; driver constraint errors are never
// string-matched upstream.

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Kind string // "datacenter", "room", "rack", "host", "service", "user"
	Ref  string // id or name used in the lookup
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

// ConflictError reports a uniqueness violation on a single field.
type ConflictError struct {
	Kind  string
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

// HasDependentsError reports a delete rejected because direct children exist.
type HasDependentsError struct {
	Kind      string
	Ref       string
	ChildKind string
	Children  int
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("cannot delete %s %q: it contains %d %s(s)",
		e.Kind, e.Ref, e.Children, e.ChildKind)
}

// ValidationError reports a missing or malformed field on a request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsHasDependents(err error) bool {
	var e *HasDependentsError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
