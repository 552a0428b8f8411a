package masterdata

import (
	"errors"
	"time"
)

// Station represents a measurement site.
type Station struct {
	ID             int64     `json:"id"`
	NormalizedName string    `json:"normalized_name"`
	DisplayName    string    `json:"display_name"`
	Acronym        string    `json:"acronym"`
	Status         string    `json:"status"`
	Country        string    `json:"country"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	ElevationM     *float64  `json:"elevation_m"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.NormalizedName == "" {
		return errors.New("station: empty normalized name")
	}
	if s.DisplayName == "" {
		return errors.New("station: empty display name")
	}
	if !acronymPattern.MatchString(s.Acronym) {
		return errors.New("station: invalid acronym")
	}
	return nil
}

// Ref implements Resource.
func (s Station) Ref() Ref {
	return Ref{
		Kind:                  KindStation,
		ID:                    s.ID,
		Name:                  s.NormalizedName,
		StationID:             s.ID,
		StationNormalizedName: s.NormalizedName,
		StationAcronym:        s.Acronym,
	}
}

// StationSummary is a station with descendant counts.
type StationSummary struct {
	Station
	PlatformCount   int `json:"platform_count"`
	InstrumentCount int `json:"instrument_count"`
	ROICount        int `json:"roi_count"`
}
