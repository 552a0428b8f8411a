package application

import (
	"context"
	"errors"
	"strconv"
	"strings"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// Resolver maps route identifiers onto entities. Numeric identifiers are
// tried as surrogate keys first; everything else, and numeric misses, fall
// back to the natural keys of the kind. Lookups that match nothing return
// nil, nil.
type Resolver struct {
	store masterdata.Store
}

// NewResolver constructs a resolver.
func NewResolver(store masterdata.Store) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("resolver: nil store")
	}
	return &Resolver{store: store}, nil
}

func numericID(identifier string) (int64, bool) {
	if !masterdata.IsNumericIdentifier(identifier) {
		return 0, false
	}
	id, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ResolveStation matches id, normalized_name or acronym.
func (r *Resolver) ResolveStation(ctx context.Context, identifier string) (*masterdata.Station, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	if id, ok := numericID(identifier); ok {
		station, err := r.store.GetStation(ctx, id)
		if err != nil || station != nil {
			return station, err
		}
	}
	return r.store.FindStation(ctx, identifier)
}

// ResolvePlatform matches id or normalized_name and carries the owning station.
func (r *Resolver) ResolvePlatform(ctx context.Context, identifier string) (*masterdata.Platform, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	if id, ok := numericID(identifier); ok {
		platform, err := r.store.GetPlatform(ctx, id)
		if err != nil || platform != nil {
			return platform, err
		}
	}
	return r.store.FindPlatform(ctx, identifier)
}

// ResolveInstrument matches id, normalized_name or legacy_acronym.
func (r *Resolver) ResolveInstrument(ctx context.Context, identifier string) (*masterdata.Instrument, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	if id, ok := numericID(identifier); ok {
		instrument, err := r.store.GetInstrument(ctx, id)
		if err != nil || instrument != nil {
			return instrument, err
		}
	}
	return r.store.FindInstrument(ctx, identifier)
}

// ResolveROI matches id only; ROI names are unique per instrument, not globally.
func (r *Resolver) ResolveROI(ctx context.Context, identifier string) (*masterdata.ROI, error) {
	id, ok := numericID(strings.TrimSpace(identifier))
	if !ok {
		return nil, nil
	}
	return r.store.GetROI(ctx, id)
}

// Resolve dispatches on kind and returns the entity as a Resource.
func (r *Resolver) Resolve(ctx context.Context, kind masterdata.ResourceKind, identifier string) (masterdata.Resource, error) {
	switch kind {
	case masterdata.KindStation:
		v, err := r.ResolveStation(ctx, identifier)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case masterdata.KindPlatform:
		v, err := r.ResolvePlatform(ctx, identifier)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case masterdata.KindInstrument:
		v, err := r.ResolveInstrument(ctx, identifier)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case masterdata.KindROI:
		v, err := r.ResolveROI(ctx, identifier)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	default:
		return nil, errors.New("resolver: unknown kind " + string(kind))
	}
}
