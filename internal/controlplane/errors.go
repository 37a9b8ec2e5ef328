package controlplane

import (
	"errors"
	"fmt"
	"net/http"
)

type kindError struct {
	msg  string
	kind string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) ErrorKind() string { return e.kind }

// Sentinel errors for control plane operations.
var (
	ErrInvalidInput  error = &kindError{"invalid input", "validation"}
	ErrInvalidParent error = &kindError{"invalid parent", "validation"}
	ErrNoTaskForPath error = &kindError{"no task matches path", "not_found"}
)

// InputError reports a rejected request field.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string        { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }
func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }
func (e *InputError) ErrorKind() string    { return "validation" }

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ParentError reports an entity hierarchy violation.
type ParentError struct {
	Kind string
	Msg  string
}

func (e *ParentError) Error() string        { return fmt.Sprintf("invalid %s parent: %s", e.Kind, e.Msg) }
func (e *ParentError) Is(target error) bool { return target == ErrInvalidParent }
func (e *ParentError) ErrorKind() string    { return "validation" }

// ErrorKind classifies err by the first ErrorKind in its chain. Unknown
// errors are "internal".
func ErrorKind(err error) string {
	var classified interface{ ErrorKind() string }
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}
	return "internal"
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch ErrorKind(err) {
	case "not_found":
		return http.StatusNotFound
	case "validation":
		return http.StatusBadRequest
	case "unresolvable":
		return http.StatusUnprocessableEntity
	case "conflict":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
