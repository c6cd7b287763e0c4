package storage

import (
	"errors"
	"fmt"
)

// Infrastructure error kinds. Backends wrap driver errors in *Error so callers
// can test with errors.Is against these sentinels.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForeignKey = errors.New("foreign key violation")
	ErrStorage    = errors.New("storage failure")
)

type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindForeignKey ErrorKind = "foreign_key"
	KindStorage    ErrorKind = "storage"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindForeignKey:
		return ErrForeignKey
	default:
		return ErrStorage
	}
}

// Error — ошибка слоя хранения с классификацией по причине
type Error struct {
	Kind   ErrorKind
	Op     string // e.g. "create meal entry"
	Entity string // e.g. "meal_option"
	ID     int64
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.ID != 0 {
			return fmt.Sprintf("Not found: %s %d", e.Entity, e.ID)
		}
		return fmt.Sprintf("Not found: %s", e.Entity)
	case KindConflict:
		return fmt.Sprintf("Conflict: %s already exists: %v", e.Entity, e.Err)
	case KindForeignKey:
		return fmt.Sprintf("Foreign key violation: failed to %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("Database error: failed to %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// NotFound builds a not-found error for an entity id.
func NotFound(entity string, id int64) error {
	return &Error{Kind: KindNotFound, Op: "get " + entity, Entity: entity, ID: id}
}

// NotFoundName is NotFound for lookups by a natural key.
func NotFoundName(entity, name string) error {
	return &Error{Kind: KindNotFound, Op: "get " + entity, Entity: fmt.Sprintf("%s %q", entity, name)}
}

func Conflict(entity string, err error) error {
	return &Error{Kind: KindConflict, Op: "write " + entity, Entity: entity, Err: err}
}

func ForeignKey(op string, err error) error {
	return &Error{Kind: KindForeignKey, Op: op, Err: err}
}

// KindOf returns the infrastructure kind of err, or "" when err is not a storage error.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForeignKey):
		return KindForeignKey
	case errors.Is(err, ErrStorage):
		return KindStorage
	}
	return ""
}

// ValidationError reports malformed input rejected before it reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "Validation error: " + e.Message
	}
	return fmt.Sprintf("Validation error: %s: %s", e.Field, e.Message)
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func AsValidationError(err error) (*ValidationError, bool) {
	var typed *ValidationError
	ok := errors.As(err, &typed)
	return typed, ok
}
