package masterdata

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates an identifier that resolves to nothing.
	ErrNotFound = errors.New("masterdata: not found")
	// ErrUniqueViolation is returned by stores when a unique constraint rejects a write.
	ErrUniqueViolation = errors.New("masterdata: unique constraint violation")
	// ErrInvalidParent indicates a create request whose parent reference is missing.
	ErrInvalidParent = errors.New("masterdata: invalid parent reference")
)

// ValidationError carries every failed field rule of one request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// ConflictError reports colliding unique fields and suggested replacements.
type ConflictError struct {
	Kind        ResourceKind
	Conflicts   []Conflict
	Suggestions map[string]string
}

func (e *ConflictError) Error() string {
	fields := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		fields = append(fields, c.Field+"="+c.Value)
	}
	return "conflict on " + string(e.Kind) + ": " + strings.Join(fields, ", ")
}

// DependencyError blocks a delete that would cascade without confirmation.
type DependencyError struct {
	Kind   ResourceKind
	ID     int64
	Report DependencyReport
}

func (e *DependencyError) Error() string {
	return "delete of " + string(e.Kind) + " blocked by dependencies: " + strings.Join(e.Report.CascadePreview, ", ")
}
