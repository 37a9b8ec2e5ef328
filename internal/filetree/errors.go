package filetree

import (
	"fmt"
	"strings"
)

// kindError is a sentinel carrying its client-facing classification.
type kindError struct {
	msg  string
	kind string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) ErrorKind() string { return e.kind }

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrMissingReference    error = &kindError{"missing reference", "not_found"}
	ErrUnknownContext      error = &kindError{"unknown context", "validation"}
	ErrUnsupportedCategory error = &kindError{"unsupported entity category", "unresolvable"}
	ErrUnresolvedTag       error = &kindError{"unresolved tag", "unresolvable"}
	ErrMalformedTree       error = &kindError{"malformed file tree", "configuration"}
	ErrUnknownTemplateSet  error = &kindError{"unknown file tree", "not_found"}
	ErrInvalidSeparator    error = &kindError{`separator must be "/" or "\"`, "validation"}
	ErrInvalidVersion      error = &kindError{"version must not be negative", "validation"}
	ErrPathMismatch        error = &kindError{"path does not match template", "validation"}
)

// MissingReferenceError reports a task relation that could not be loaded.
type MissingReferenceError struct {
	Kind string
	ID   string
}

func (e *MissingReferenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("missing reference: %s not set", e.Kind)
	}
	return fmt.Sprintf("missing reference: %s %q not found", e.Kind, e.ID)
}

func (e *MissingReferenceError) Is(target error) bool { return target == ErrMissingReference }
func (e *MissingReferenceError) ErrorKind() string    { return "not_found" }

// UnknownContextError reports a context absent from the template set.
type UnknownContextError struct {
	Context string
	Set     string
}

func (e *UnknownContextError) Error() string {
	return fmt.Sprintf("unknown context %q in file tree %q", e.Context, e.Set)
}

func (e *UnknownContextError) Is(target error) bool { return target == ErrUnknownContext }
func (e *UnknownContextError) ErrorKind() string    { return "validation" }

// UnsupportedCategoryError reports an entity category without templates in a context.
type UnsupportedCategoryError struct {
	Category string
	Context  string
}

func (e *UnsupportedCategoryError) Error() string {
	return fmt.Sprintf("no %s template for category %q", e.Context, e.Category)
}

func (e *UnsupportedCategoryError) Is(target error) bool { return target == ErrUnsupportedCategory }
func (e *UnsupportedCategoryError) ErrorKind() string    { return "unresolvable" }

// UnresolvedTagError names a template tag with no value for the task.
type UnresolvedTagError struct {
	Tag string
}

func (e *UnresolvedTagError) Error() string {
	return fmt.Sprintf("unresolved tag %q", e.Tag)
}

func (e *UnresolvedTagError) Is(target error) bool { return target == ErrUnresolvedTag }
func (e *UnresolvedTagError) ErrorKind() string    { return "unresolvable" }

// MalformedTreeError lists every problem found while validating a template set.
type MalformedTreeError struct {
	Set      string
	Problems []string
}

func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("malformed file tree %q: %s", e.Set, strings.Join(e.Problems, "; "))
}

func (e *MalformedTreeError) Is(target error) bool { return target == ErrMalformedTree }
func (e *MalformedTreeError) ErrorKind() string    { return "configuration" }

// UnknownTemplateSetError reports a project pointing at a set that is not loaded.
type UnknownTemplateSetError struct {
	Name string
}

func (e *UnknownTemplateSetError) Error() string {
	return fmt.Sprintf("unknown file tree %q", e.Name)
}

func (e *UnknownTemplateSetError) Is(target error) bool { return target == ErrUnknownTemplateSet }
func (e *UnknownTemplateSetError) ErrorKind() string    { return "not_found" }
