package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"sites-spectral/internal/auth"
	masterdata "sites-spectral/internal/masterdata/domain"
	"sites-spectral/internal/observability/metrics"
)

// Catalog orchestrates reads and writes of the station tree. Writes run in a
// fixed order: resolve (404), authorize (403), validate (400), conflict
// check (409), mutate. The caller's claims are read from the context.
type Catalog struct {
	store     masterdata.Store
	resolver  *Resolver
	conflicts *ConflictDetector
	deps      *DependencyAnalyzer
	now       func() time.Time
}

// NewCatalog constructs a catalog over a store.
func NewCatalog(store masterdata.Store) (*Catalog, error) {
	if store == nil {
		return nil, errors.New("catalog: nil store")
	}
	resolver, err := NewResolver(store)
	if err != nil {
		return nil, err
	}
	conflicts, err := NewConflictDetector(store)
	if err != nil {
		return nil, err
	}
	deps, err := NewDependencyAnalyzer(store)
	if err != nil {
		return nil, err
	}
	return &Catalog{store: store, resolver: resolver, conflicts: conflicts, deps: deps, now: time.Now}, nil
}

// WithClock overrides the timestamp source used for updated_at and backups.
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	if now != nil {
		c.now = now
		c.deps.now = now
	}
	return c
}

// Resolver exposes the identifier resolver.
func (c *Catalog) Resolver() *Resolver {
	return c.resolver
}

// DeleteOptions carries the delete query flags.
type DeleteOptions struct {
	ForceCascade bool
	Backup       bool
}

// DeleteResult describes a completed delete.
type DeleteResult struct {
	Deleted             masterdata.Ref               `json:"deleted"`
	DependenciesDeleted masterdata.DependencySummary `json:"dependencies_deleted"`
	Backup              *Backup                      `json:"backup,omitempty"`
}

// ListQuery narrows list operations by parent identifiers. Type, Status,
// Search and UpdatedSince apply to instrument listings only.
type ListQuery struct {
	Station    string
	Platform   string
	Instrument string
	Summary    bool

	Type         string
	Status       string
	Search       string
	UpdatedSince time.Time
}

func (q ListQuery) instrumentFilter() (masterdata.InstrumentFilter, error) {
	filter := masterdata.InstrumentFilter{
		Status:       strings.TrimSpace(q.Status),
		Search:       strings.TrimSpace(q.Search),
		UpdatedSince: q.UpdatedSince,
	}
	var problems []string
	if q.Type != "" {
		kind, ok := masterdata.ParseInstrumentType(q.Type)
		if !ok {
			problems = append(problems, fmt.Sprintf("type: unknown instrument type %q", q.Type))
		}
		filter.Type = kind
	}
	if filter.Status != "" && !slices.ContainsFunc(masterdata.Statuses, func(s string) bool { return strings.EqualFold(s, filter.Status) }) {
		problems = append(problems, fmt.Sprintf("status: must be one of %s", strings.Join(masterdata.Statuses, ", ")))
	}
	if len(problems) > 0 {
		return filter, &masterdata.ValidationError{Details: problems}
	}
	return filter, nil
}

// Get resolves one resource the caller may read.
func (c *Catalog) Get(ctx context.Context, kind masterdata.ResourceKind, identifier string) (masterdata.Resource, error) {
	if _, err := authorize(ctx, auth.OpRead, kind, ""); err != nil {
		return nil, err
	}
	resource, err := c.resolver.Resolve(ctx, kind, identifier)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, notFound(kind, identifier)
	}
	return resource, nil
}

// Analyze reports the cascade a delete of the resource would trigger.
func (c *Catalog) Analyze(ctx context.Context, kind masterdata.ResourceKind, identifier string) (masterdata.DependencyReport, error) {
	resource, err := c.Get(ctx, kind, identifier)
	if err != nil {
		return masterdata.DependencyReport{}, err
	}
	return c.deps.Analyze(ctx, kind, resource.Ref().ID)
}

// List returns the resources of a kind under the optional parents in q.
func (c *Catalog) List(ctx context.Context, kind masterdata.ResourceKind, q ListQuery) (any, error) {
	if _, err := authorize(ctx, auth.OpRead, kind, ""); err != nil {
		return nil, err
	}
	switch kind {
	case masterdata.KindStation:
		if q.Summary {
			return c.store.StationSummaries(ctx)
		}
		return c.store.ListStations(ctx)
	case masterdata.KindPlatform:
		filter := masterdata.PlatformFilter{}
		if q.Station != "" {
			station, err := c.mustStation(ctx, q.Station)
			if err != nil {
				return nil, err
			}
			filter.StationID = station.ID
		}
		return c.store.ListPlatforms(ctx, filter)
	case masterdata.KindInstrument:
		var stationID, platformID int64
		if q.Station != "" {
			station, err := c.mustStation(ctx, q.Station)
			if err != nil {
				return nil, err
			}
			stationID = station.ID
		}
		if q.Platform != "" {
			platform, err := c.mustPlatform(ctx, q.Platform)
			if err != nil {
				return nil, err
			}
			platformID = platform.ID
		}
		filter, err := q.instrumentFilter()
		if err != nil {
			return nil, err
		}
		filter.StationID, filter.PlatformID = stationID, platformID
		return c.store.ListInstruments(ctx, filter)
	case masterdata.KindROI:
		filter := masterdata.ROIFilter{}
		if q.Station != "" {
			station, err := c.mustStation(ctx, q.Station)
			if err != nil {
				return nil, err
			}
			filter.StationID = station.ID
		}
		if q.Platform != "" {
			platform, err := c.mustPlatform(ctx, q.Platform)
			if err != nil {
				return nil, err
			}
			filter.PlatformID = platform.ID
		}
		if q.Instrument != "" {
			instrument, err := c.mustInstrument(ctx, q.Instrument)
			if err != nil {
				return nil, err
			}
			filter.InstrumentID = instrument.ID
		}
		return c.store.ListROIs(ctx, filter)
	default:
		return nil, fmt.Errorf("catalog: unknown kind %q", kind)
	}
}

// Create dispatches a create on kind.
func (c *Catalog) Create(ctx context.Context, kind masterdata.ResourceKind, input map[string]any) (masterdata.Resource, error) {
	switch kind {
	case masterdata.KindStation:
		v, err := c.CreateStation(ctx, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	case masterdata.KindPlatform:
		v, err := c.CreatePlatform(ctx, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	case masterdata.KindInstrument:
		v, err := c.CreateInstrument(ctx, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	case masterdata.KindROI:
		v, err := c.CreateROI(ctx, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("catalog: unknown kind %q", kind)
	}
}

// Update dispatches an update on kind.
func (c *Catalog) Update(ctx context.Context, kind masterdata.ResourceKind, identifier string, input map[string]any) (masterdata.Resource, error) {
	switch kind {
	case masterdata.KindStation:
		v, err := c.UpdateStation(ctx, identifier, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	case masterdata.KindPlatform:
		v, err := c.UpdatePlatform(ctx, identifier, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	case masterdata.KindInstrument:
		v, err := c.UpdateInstrument(ctx, identifier, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	case masterdata.KindROI:
		v, err := c.UpdateROI(ctx, identifier, input)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("catalog: unknown kind %q", kind)
	}
}

// Delete removes a resource. A resource with descendants is only removed
// when opts.ForceCascade is set; the descendants go with it through the
// store's cascading constraints.
func (c *Catalog) Delete(ctx context.Context, kind masterdata.ResourceKind, identifier string, opts DeleteOptions) (result *DeleteResult, err error) {
	defer observe(kind, auth.OpDelete, time.Now(), &err)

	resource, err := c.resolver.Resolve(ctx, kind, identifier)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, notFound(kind, identifier)
	}
	ref := resource.Ref()
	claims, err := authorize(ctx, auth.OpDelete, kind, ref.StationNormalizedName)
	if err != nil {
		return nil, err
	}

	report, err := c.deps.Analyze(ctx, kind, ref.ID)
	if err != nil {
		return nil, err
	}
	if report.HasDependencies && !opts.ForceCascade {
		metrics.IncCascadeBlocked(string(kind))
		return nil, &masterdata.DependencyError{Kind: kind, ID: ref.ID, Report: report}
	}

	result = &DeleteResult{Deleted: ref, DependenciesDeleted: report.Summary}
	if opts.Backup {
		if result.Backup, err = c.deps.Backup(ctx, resource, claims.Username); err != nil {
			return nil, err
		}
	}

	switch kind {
	case masterdata.KindStation:
		err = c.store.DeleteStation(ctx, ref.ID)
	case masterdata.KindPlatform:
		err = c.store.DeletePlatform(ctx, ref.ID)
	case masterdata.KindInstrument:
		err = c.store.DeleteInstrument(ctx, ref.ID)
	case masterdata.KindROI:
		err = c.store.DeleteROI(ctx, ref.ID)
	}
	if errors.Is(err, masterdata.ErrNotFound) {
		return nil, notFound(kind, identifier)
	}
	if err != nil {
		return nil, err
	}
	metrics.AddCascadeDeleted(report.Summary)
	return result, nil
}

func (c *Catalog) mustStation(ctx context.Context, identifier string) (*masterdata.Station, error) {
	station, err := c.resolver.ResolveStation(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if station == nil {
		return nil, notFound(masterdata.KindStation, identifier)
	}
	return station, nil
}

func (c *Catalog) mustPlatform(ctx context.Context, identifier string) (*masterdata.Platform, error) {
	platform, err := c.resolver.ResolvePlatform(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if platform == nil {
		return nil, notFound(masterdata.KindPlatform, identifier)
	}
	return platform, nil
}

func (c *Catalog) mustInstrument(ctx context.Context, identifier string) (*masterdata.Instrument, error) {
	instrument, err := c.resolver.ResolveInstrument(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if instrument == nil {
		return nil, notFound(masterdata.KindInstrument, identifier)
	}
	return instrument, nil
}

func (c *Catalog) mustROI(ctx context.Context, identifier string) (*masterdata.ROI, error) {
	roi, err := c.resolver.ResolveROI(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if roi == nil {
		return nil, notFound(masterdata.KindROI, identifier)
	}
	return roi, nil
}

func authorize(ctx context.Context, op auth.Operation, kind masterdata.ResourceKind, scope string) (*auth.Claims, error) {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return nil, auth.ErrUnauthorized
	}
	if !auth.Authorize(claims, op, kind, scope) {
		return nil, fmt.Errorf("%w: %s may not %s %s", auth.ErrForbidden, claims.Username, op, kind)
	}
	return claims, nil
}

func notFound(kind masterdata.ResourceKind, identifier string) error {
	return fmt.Errorf("%w: %s %q", masterdata.ErrNotFound, kind, identifier)
}

func invalid(err error) error {
	var verr *masterdata.ValidationError
	if errors.As(err, &verr) {
		return err
	}
	return &masterdata.ValidationError{Details: []string{err.Error()}}
}

func observe(kind masterdata.ResourceKind, op auth.Operation, start time.Time, err *error) {
	result := metrics.ResultSuccess
	if err != nil && *err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveOperation(string(kind), string(op), result, time.Since(start))
}

// parentIdentifier reads a parent reference from the first present key.
func parentIdentifier(input map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := input[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v > 0 && v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10)
			}
		case int64:
			return strconv.FormatInt(v, 10)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// uniqueCandidate collects the changed values of the unique fields of kind.
func uniqueCandidate(kind masterdata.ResourceKind, changes masterdata.Changes) map[string]string {
	candidate := map[string]string{}
	for _, field := range masterdata.UniqueSpecFor(kind).Fields {
		if v, ok := changes.String(field); ok {
			candidate[field] = v
		}
	}
	return candidate
}

func schemaFor(kind masterdata.ResourceKind) masterdata.Schema {
	schema, _ := masterdata.SchemaFor(kind)
	return schema
}

func identifierOf(id int64) string {
	return strconv.FormatInt(id, 10)
}
