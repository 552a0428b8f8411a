// Package memory is an in-process Store that enforces the same unique
// constraints and cascades as the Postgres schema.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// Store keeps the station tree in maps guarded by one lock.
type Store struct {
	mu     sync.RWMutex
	now    func() time.Time
	nextID int64

	stations    map[int64]masterdata.Station
	platforms   map[int64]masterdata.Platform
	instruments map[int64]masterdata.Instrument
	rois        map[int64]masterdata.ROI
}

// Option configures the store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		stations:    make(map[int64]masterdata.Station),
		platforms:   make(map[int64]masterdata.Platform),
		instruments: make(map[int64]masterdata.Instrument),
		rois:        make(map[int64]masterdata.ROI),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ masterdata.Store = (*Store)(nil)

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// GetStation loads a station by id.
func (s *Store) GetStation(_ context.Context, id int64) (*masterdata.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	station, ok := s.stations[id]
	if !ok {
		return nil, nil
	}
	return &station, nil
}

// FindStation matches normalized_name first, then acronym.
func (s *Store) FindStation(_ context.Context, key string) (*masterdata.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var byAcronym *masterdata.Station
	for _, id := range sortedIDs(s.stations) {
		station := s.stations[id]
		if station.NormalizedName == key {
			return &station, nil
		}
		if byAcronym == nil && strings.EqualFold(station.Acronym, key) {
			byAcronym = &station
		}
	}
	return byAcronym, nil
}

// ListStations returns stations ordered by normalized name.
func (s *Store) ListStations(_ context.Context) ([]masterdata.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]masterdata.Station, 0, len(s.stations))
	for _, station := range s.stations {
		out = append(out, station)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedName < out[j].NormalizedName })
	return out, nil
}

// StationSummaries returns stations with descendant counts.
func (s *Store) StationSummaries(ctx context.Context) ([]masterdata.StationSummary, error) {
	stations, err := s.ListStations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]masterdata.StationSummary, 0, len(stations))
	for _, station := range stations {
		counts, err := s.CountDependencies(ctx, masterdata.KindStation, station.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, masterdata.StationSummary{
			Station:         station,
			PlatformCount:   counts[masterdata.KindPlatform],
			InstrumentCount: counts[masterdata.KindInstrument],
			ROICount:        counts[masterdata.KindROI],
		})
	}
	return out, nil
}

// CreateStation inserts a station and assigns its id.
func (s *Store) CreateStation(_ context.Context, station *masterdata.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stationTaken(*station, 0) {
		return masterdata.ErrUniqueViolation
	}
	now := s.now().UTC()
	station.ID = s.id()
	station.CreatedAt, station.UpdatedAt = now, now
	s.stations[station.ID] = *station
	return nil
}

// UpdateStation applies validated changes.
func (s *Store) UpdateStation(_ context.Context, id int64, changes masterdata.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	station, ok := s.stations[id]
	if !ok {
		return masterdata.ErrNotFound
	}
	if err := changes.Into(&station); err != nil {
		return err
	}
	if s.stationTaken(station, id) {
		return masterdata.ErrUniqueViolation
	}
	s.stations[id] = station
	return nil
}

// DeleteStation removes a station and everything below it.
func (s *Store) DeleteStation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stations[id]; !ok {
		return masterdata.ErrNotFound
	}
	delete(s.stations, id)
	for pid, p := range s.platforms {
		if p.StationID == id {
			s.deletePlatform(pid)
		}
	}
	return nil
}

func (s *Store) stationTaken(station masterdata.Station, exclude int64) bool {
	for id, other := range s.stations {
		if id == exclude {
			continue
		}
		if other.NormalizedName == station.NormalizedName || other.Acronym == station.Acronym {
			return true
		}
	}
	return false
}

// GetPlatform loads a platform by id.
func (s *Store) GetPlatform(_ context.Context, id int64) (*masterdata.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.platforms[id]
	if !ok {
		return nil, nil
	}
	p = s.withStation(p)
	return &p, nil
}

// FindPlatform matches normalized_name, lowest id first.
func (s *Store) FindPlatform(_ context.Context, name string) (*masterdata.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range sortedIDs(s.platforms) {
		p := s.platforms[id]
		if p.NormalizedName == name {
			p = s.withStation(p)
			return &p, nil
		}
	}
	return nil, nil
}

// ListPlatforms returns platforms ordered by normalized name.
func (s *Store) ListPlatforms(_ context.Context, filter masterdata.PlatformFilter) ([]masterdata.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []masterdata.Platform{}
	for _, p := range s.platforms {
		if filter.StationID != 0 && p.StationID != filter.StationID {
			continue
		}
		out = append(out, s.withStation(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedName < out[j].NormalizedName })
	return out, nil
}

// CreatePlatform inserts a platform under an existing station.
func (s *Store) CreatePlatform(_ context.Context, p *masterdata.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stations[p.StationID]; !ok {
		return masterdata.ErrInvalidParent
	}
	if s.platformTaken(*p, 0) {
		return masterdata.ErrUniqueViolation
	}
	now := s.now().UTC()
	p.ID = s.id()
	p.CreatedAt, p.UpdatedAt = now, now
	s.platforms[p.ID] = *p
	*p = s.withStation(*p)
	return nil
}

// UpdatePlatform applies validated changes.
func (s *Store) UpdatePlatform(_ context.Context, id int64, changes masterdata.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.platforms[id]
	if !ok {
		return masterdata.ErrNotFound
	}
	if err := changes.Into(&p); err != nil {
		return err
	}
	if s.platformTaken(p, id) {
		return masterdata.ErrUniqueViolation
	}
	s.platforms[id] = p
	return nil
}

// DeletePlatform removes a platform and everything below it.
func (s *Store) DeletePlatform(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.platforms[id]; !ok {
		return masterdata.ErrNotFound
	}
	s.deletePlatform(id)
	return nil
}

func (s *Store) deletePlatform(id int64) {
	delete(s.platforms, id)
	for iid, i := range s.instruments {
		if i.PlatformID == id {
			s.deleteInstrument(iid)
		}
	}
}

func (s *Store) platformTaken(p masterdata.Platform, exclude int64) bool {
	for id, other := range s.platforms {
		if id == exclude || other.StationID != p.StationID {
			continue
		}
		if other.NormalizedName == p.NormalizedName || other.LocationCode == p.LocationCode {
			return true
		}
	}
	return false
}

func (s *Store) withStation(p masterdata.Platform) masterdata.Platform {
	if station, ok := s.stations[p.StationID]; ok {
		p.StationNormalizedName = station.NormalizedName
		p.StationAcronym = station.Acronym
	}
	return p
}

// GetInstrument loads an instrument by id.
func (s *Store) GetInstrument(_ context.Context, id int64) (*masterdata.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.instruments[id]
	if !ok {
		return nil, nil
	}
	i = s.withPlatform(i)
	return &i, nil
}

// FindInstrument matches normalized_name or legacy_acronym.
func (s *Store) FindInstrument(_ context.Context, key string) (*masterdata.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var byLegacy *masterdata.Instrument
	for _, id := range sortedIDs(s.instruments) {
		i := s.instruments[id]
		if i.NormalizedName == key {
			i = s.withPlatform(i)
			return &i, nil
		}
		if byLegacy == nil && i.LegacyAcronym != "" && i.LegacyAcronym == key {
			i = s.withPlatform(i)
			byLegacy = &i
		}
	}
	return byLegacy, nil
}

// ListInstruments returns instruments ordered by normalized name.
func (s *Store) ListInstruments(_ context.Context, filter masterdata.InstrumentFilter) ([]masterdata.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []masterdata.Instrument{}
	for _, i := range s.instruments {
		i = s.withPlatform(i)
		if filter.PlatformID != 0 && i.PlatformID != filter.PlatformID {
			continue
		}
		if filter.StationID != 0 && i.StationID != filter.StationID {
			continue
		}
		if !filter.Matches(i) {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].NormalizedName < out[b].NormalizedName })
	return out, nil
}

// CreateInstrument inserts an instrument under an existing platform.
func (s *Store) CreateInstrument(_ context.Context, i *masterdata.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.platforms[i.PlatformID]; !ok {
		return masterdata.ErrInvalidParent
	}
	if s.instrumentTaken(*i, 0) {
		return masterdata.ErrUniqueViolation
	}
	now := s.now().UTC()
	i.ID = s.id()
	i.CreatedAt, i.UpdatedAt = now, now
	s.instruments[i.ID] = *i
	*i = s.withPlatform(*i)
	return nil
}

// UpdateInstrument applies validated changes.
func (s *Store) UpdateInstrument(_ context.Context, id int64, changes masterdata.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.instruments[id]
	if !ok {
		return masterdata.ErrNotFound
	}
	if err := changes.Into(&i); err != nil {
		return err
	}
	if s.instrumentTaken(i, id) {
		return masterdata.ErrUniqueViolation
	}
	s.instruments[id] = i
	return nil
}

// DeleteInstrument removes an instrument and its ROIs.
func (s *Store) DeleteInstrument(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instruments[id]; !ok {
		return masterdata.ErrNotFound
	}
	s.deleteInstrument(id)
	return nil
}

func (s *Store) deleteInstrument(id int64) {
	delete(s.instruments, id)
	for rid, r := range s.rois {
		if r.InstrumentID == id {
			delete(s.rois, rid)
		}
	}
}

func (s *Store) instrumentTaken(i masterdata.Instrument, exclude int64) bool {
	for id, other := range s.instruments {
		if id != exclude && other.NormalizedName == i.NormalizedName {
			return true
		}
	}
	return false
}

func (s *Store) withPlatform(i masterdata.Instrument) masterdata.Instrument {
	p, ok := s.platforms[i.PlatformID]
	if !ok {
		return i
	}
	p = s.withStation(p)
	i.PlatformNormalizedName = p.NormalizedName
	i.StationID = p.StationID
	i.StationNormalizedName = p.StationNormalizedName
	i.StationAcronym = p.StationAcronym
	return i
}

// GetROI loads an ROI by id.
func (s *Store) GetROI(_ context.Context, id int64) (*masterdata.ROI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rois[id]
	if !ok {
		return nil, nil
	}
	r = s.withInstrument(r)
	return &r, nil
}

// ListROIs returns ROIs ordered by instrument and name.
func (s *Store) ListROIs(_ context.Context, filter masterdata.ROIFilter) ([]masterdata.ROI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []masterdata.ROI{}
	for _, r := range s.rois {
		if filter.InstrumentID != 0 && r.InstrumentID != filter.InstrumentID {
			continue
		}
		if filter.PlatformID != 0 && s.instruments[r.InstrumentID].PlatformID != filter.PlatformID {
			continue
		}
		r = s.withInstrument(r)
		if filter.StationID != 0 && r.StationID != filter.StationID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].InstrumentID != out[b].InstrumentID {
			return out[a].InstrumentID < out[b].InstrumentID
		}
		return out[a].ROIName < out[b].ROIName
	})
	return out, nil
}

// CreateROI inserts an ROI under an existing instrument.
func (s *Store) CreateROI(_ context.Context, r *masterdata.ROI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instruments[r.InstrumentID]; !ok {
		return masterdata.ErrInvalidParent
	}
	if s.roiTaken(*r, 0) {
		return masterdata.ErrUniqueViolation
	}
	now := s.now().UTC()
	r.ID = s.id()
	r.CreatedAt, r.UpdatedAt = now, now
	s.rois[r.ID] = *r
	*r = s.withInstrument(*r)
	return nil
}

// UpdateROI applies validated changes.
func (s *Store) UpdateROI(_ context.Context, id int64, changes masterdata.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rois[id]
	if !ok {
		return masterdata.ErrNotFound
	}
	if err := changes.Into(&r); err != nil {
		return err
	}
	if s.roiTaken(r, id) {
		return masterdata.ErrUniqueViolation
	}
	s.rois[id] = r
	return nil
}

// DeleteROI removes an ROI.
func (s *Store) DeleteROI(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rois[id]; !ok {
		return masterdata.ErrNotFound
	}
	delete(s.rois, id)
	return nil
}

func (s *Store) roiTaken(r masterdata.ROI, exclude int64) bool {
	for id, other := range s.rois {
		if id != exclude && other.InstrumentID == r.InstrumentID && other.ROIName == r.ROIName {
			return true
		}
	}
	return false
}

func (s *Store) withInstrument(r masterdata.ROI) masterdata.ROI {
	i, ok := s.instruments[r.InstrumentID]
	if !ok {
		return r
	}
	i = s.withPlatform(i)
	r.InstrumentNormalizedName = i.NormalizedName
	r.StationID = i.StationID
	r.StationNormalizedName = i.StationNormalizedName
	r.StationAcronym = i.StationAcronym
	return r
}

// ExistingValues lists the values of a unique field already in use.
func (s *Store) ExistingValues(_ context.Context, kind masterdata.ResourceKind, field string, scopeID, excludeID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var values []string
	switch kind {
	case masterdata.KindStation:
		for id, st := range s.stations {
			if id == excludeID {
				continue
			}
			switch field {
			case "normalized_name":
				values = append(values, st.NormalizedName)
			case "acronym":
				values = append(values, st.Acronym)
			}
		}
	case masterdata.KindPlatform:
		for id, p := range s.platforms {
			if id == excludeID || (scopeID != 0 && p.StationID != scopeID) {
				continue
			}
			switch field {
			case "normalized_name":
				values = append(values, p.NormalizedName)
			case "location_code":
				values = append(values, p.LocationCode)
			}
		}
	case masterdata.KindInstrument:
		for id, i := range s.instruments {
			if id == excludeID || (scopeID != 0 && i.PlatformID != scopeID) {
				continue
			}
			if field == "normalized_name" {
				values = append(values, i.NormalizedName)
			}
		}
	case masterdata.KindROI:
		for id, r := range s.rois {
			if id == excludeID || (scopeID != 0 && r.InstrumentID != scopeID) {
				continue
			}
			if field == "roi_name" {
				values = append(values, r.ROIName)
			}
		}
	}
	sort.Strings(values)
	return values, nil
}

// CountDependencies counts every descendant of one resource.
func (s *Store) CountDependencies(_ context.Context, kind masterdata.ResourceKind, id int64) (map[masterdata.ResourceKind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	platforms := map[int64]bool{}
	instruments := map[int64]bool{}
	switch kind {
	case masterdata.KindStation:
		for pid, p := range s.platforms {
			if p.StationID == id {
				platforms[pid] = true
			}
		}
	case masterdata.KindPlatform:
		platforms[id] = true
	case masterdata.KindInstrument:
		instruments[id] = true
	}
	for iid, i := range s.instruments {
		if platforms[i.PlatformID] {
			instruments[iid] = true
		}
	}
	rois := 0
	for _, r := range s.rois {
		if instruments[r.InstrumentID] {
			rois++
		}
	}
	counts := map[masterdata.ResourceKind]int{masterdata.KindROI: rois}
	switch kind {
	case masterdata.KindStation:
		counts[masterdata.KindPlatform] = len(platforms)
		counts[masterdata.KindInstrument] = len(instruments)
	case masterdata.KindPlatform:
		counts[masterdata.KindInstrument] = len(instruments)
	}
	return counts, nil
}

// sortedIDs returns the keys of m in ascending order so name lookups that
// match several rows always pick the lowest id.
func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
