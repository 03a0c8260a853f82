// Package apperr defines the error taxonomy shared by the checkout core, the
// service layer and the HTTP transport. Typed errors carry their details and
// match their sentinel through errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("you must be logged in to perform this action")
	ErrForbidden         = errors.New("you do not have permission to perform this action")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPersistence       = errors.New("persistence failure")
	ErrConflict          = errors.New("concurrent modification")
)

type UnauthenticatedError struct {
	Reason string
}

func Unauthenticated(reason string) *UnauthenticatedError {
	return &UnauthenticatedError{Reason: reason}
}

func (e *UnauthenticatedError) Error() string { return e.Reason }

func (e *UnauthenticatedError) Is(target error) bool { return target == ErrUnauthenticated }

type NotFoundError struct {
	Entity string
	ID     string
}

func NotFound(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ValidationError struct {
	Field  string
	Reason string
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type InsufficientStockError struct {
	BookID    int64
	Requested int
	Available int
}

func InsufficientStock(bookID int64, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{BookID: bookID, Requested: requested, Available: available}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %d: requested %d, available %d",
		e.BookID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ConflictError reports that an entity changed between read and write.
type ConflictError struct {
	Entity string
	ID     string
}

func Conflict(entity string, id any) *ConflictError {
	return &ConflictError{Entity: entity, ID: fmt.Sprint(id)}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently; reload and retry", e.Entity, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PersistenceError marks a storage failure. Callers may retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func Persistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// IsDomain reports whether err already belongs to the taxonomy and should
// reach the caller unchanged.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrValidation,
		ErrInsufficientStock, ErrPersistence, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
