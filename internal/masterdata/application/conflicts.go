package application

import (
	"context"
	"errors"
	"strings"

	masterdata "sites-spectral/internal/masterdata/domain"
	"sites-spectral/internal/observability/metrics"
)

// ConflictDetector checks candidate values against the unique fields of a
// kind. The check is advisory; the storage constraints remain authoritative.
type ConflictDetector struct {
	values masterdata.UniquenessReader
}

// NewConflictDetector constructs a detector.
func NewConflictDetector(values masterdata.UniquenessReader) (*ConflictDetector, error) {
	if values == nil {
		return nil, errors.New("conflict detector: nil reader")
	}
	return &ConflictDetector{values: values}, nil
}

// Check reports every unique field of kind whose candidate value is already
// taken within scopeID, ignoring the record excludeID. Empty candidates are
// skipped.
func (d *ConflictDetector) Check(ctx context.Context, kind masterdata.ResourceKind, candidate map[string]string, scopeID, excludeID int64) ([]masterdata.Conflict, error) {
	conflicts, _, err := d.check(ctx, kind, candidate, scopeID, excludeID)
	return conflicts, err
}

// Guard returns a ConflictError with suggestions when Check finds conflicts.
func (d *ConflictDetector) Guard(ctx context.Context, kind masterdata.ResourceKind, candidate map[string]string, scopeID, excludeID int64) error {
	conflicts, existing, err := d.check(ctx, kind, candidate, scopeID, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	metrics.IncConflict(string(kind), "check")
	return newConflictError(kind, conflicts, existing)
}

// FromViolation turns a write rejected by a unique constraint into a
// ConflictError. When the re-check cannot see the colliding row every
// candidate field is reported.
func (d *ConflictDetector) FromViolation(ctx context.Context, kind masterdata.ResourceKind, candidate map[string]string, scopeID, excludeID int64) error {
	metrics.IncConflict(string(kind), "constraint")
	conflicts, existing, err := d.check(ctx, kind, candidate, scopeID, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		for _, field := range masterdata.UniqueSpecFor(kind).Fields {
			if v := candidate[field]; v != "" {
				conflicts = append(conflicts, masterdata.Conflict{Field: field, Value: v})
				existing[field] = append(existing[field], v)
			}
		}
	}
	return newConflictError(kind, conflicts, existing)
}

func (d *ConflictDetector) check(ctx context.Context, kind masterdata.ResourceKind, candidate map[string]string, scopeID, excludeID int64) ([]masterdata.Conflict, map[string][]string, error) {
	spec := masterdata.UniqueSpecFor(kind)
	if spec.Scope == "" {
		scopeID = 0
	}
	var conflicts []masterdata.Conflict
	existing := make(map[string][]string, len(spec.Fields))
	for _, field := range spec.Fields {
		value := candidate[field]
		if value == "" {
			continue
		}
		values, err := d.values.ExistingValues(ctx, kind, field, scopeID, excludeID)
		if err != nil {
			return nil, nil, err
		}
		existing[field] = values
		for _, v := range values {
			if strings.EqualFold(v, value) {
				conflicts = append(conflicts, masterdata.Conflict{Field: field, Value: value})
				break
			}
		}
	}
	return conflicts, existing, nil
}

func newConflictError(kind masterdata.ResourceKind, conflicts []masterdata.Conflict, existing map[string][]string) *masterdata.ConflictError {
	suggestions := make(map[string]string, len(conflicts))
	for _, c := range conflicts {
		suggestions[c.Field] = masterdata.SuggestAlternative(c.Field, c.Value, existing[c.Field])
	}
	return &masterdata.ConflictError{Kind: kind, Conflicts: conflicts, Suggestions: suggestions}
}
