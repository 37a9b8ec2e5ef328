package workflow

import (
	"fmt"
	"strings"

	"github.com/fentz26/prodtrack/internal/models"
)

type kindError struct {
	msg  string
	kind string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) ErrorKind() string { return e.kind }

var (
	ErrInvalidTransition error = &kindError{"invalid transition", "conflict"}
	ErrUnknownPerson     error = &kindError{"unknown person", "validation"}
	ErrUnknownOperation  error = &kindError{"unknown operation", "validation"}
	ErrUnknownStatus     error = &kindError{"unknown status", "validation"}
)

// InvalidTransitionError reports an operation not allowed from the current
// status. To is the status the operation would have reached.
type InvalidTransitionError struct {
	Operation Operation
	From      models.TaskStatus
	To        models.TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a task in status %s (to %s)", e.Operation, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
func (e *InvalidTransitionError) ErrorKind() string    { return "conflict" }

// UnknownPersonError lists assignees that do not exist.
type UnknownPersonError struct {
	IDs []string
}

func (e *UnknownPersonError) Error() string {
	return fmt.Sprintf("unknown person(s): %s", strings.Join(e.IDs, ", "))
}

func (e *UnknownPersonError) Is(target error) bool { return target == ErrUnknownPerson }
func (e *UnknownPersonError) ErrorKind() string    { return "validation" }

// UnknownStatusError reports a label key outside the canonical status set.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q", e.Status)
}

func (e *UnknownStatusError) Is(target error) bool { return target == ErrUnknownStatus }
func (e *UnknownStatusError) ErrorKind() string    { return "validation" }
