package store

import "fmt"

type kindError struct {
	msg  string
	kind string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) ErrorKind() string { return e.kind }

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound error = &kindError{"not found", "not_found"}
	// ErrConflict matches every ConflictError.
	ErrConflict error = &kindError{"conflict", "conflict"}
)

// NotFoundError reports a missing row.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) ErrorKind() string    { return "not_found" }

// ConflictError reports a uniqueness violation or a lost update race.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string        { return e.Msg }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
func (e *ConflictError) ErrorKind() string    { return "conflict" }
