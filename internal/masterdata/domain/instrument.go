package masterdata

import (
	"errors"
	"strings"
	"time"
)

// Instrument is a sensor mounted on a platform.
type Instrument struct {
	ID                 int64     `json:"id"`
	PlatformID         int64     `json:"platform_id"`
	NormalizedName     string    `json:"normalized_name"`
	DisplayName        string    `json:"display_name"`
	LegacyAcronym      string    `json:"legacy_acronym"`
	InstrumentType     string    `json:"instrument_type"`
	InstrumentNumber   string    `json:"instrument_number"`
	Status             string    `json:"status"`
	EcosystemCode      string    `json:"ecosystem_code"`
	DeploymentDate     string    `json:"deployment_date"`
	InstrumentHeightM  *float64  `json:"instrument_height_m"`
	ViewingDirection   string    `json:"viewing_direction"`
	AzimuthDegrees     *float64  `json:"azimuth_degrees"`
	DegreesFromNadir   *float64  `json:"degrees_from_nadir"`
	CameraBrand        string    `json:"camera_brand"`
	CameraModel        string    `json:"camera_model"`
	CameraSerialNumber string    `json:"camera_serial_number"`
	Latitude           *float64  `json:"latitude"`
	Longitude          *float64  `json:"longitude"`
	Description        string    `json:"description"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	PlatformNormalizedName string `json:"platform_normalized_name,omitempty"`
	StationID              int64  `json:"station_id,omitempty"`
	StationNormalizedName  string `json:"station_normalized_name,omitempty"`
	StationAcronym         string `json:"station_acronym,omitempty"`
}

// Validate checks instrument invariants, including the type-specific rules.
func (i Instrument) Validate() error {
	if i.PlatformID <= 0 {
		return errors.New("instrument: empty platform id")
	}
	if i.NormalizedName == "" {
		return errors.New("instrument: empty normalized name")
	}
	kind, ok := ParseInstrumentType(i.InstrumentType)
	if !ok {
		return errors.New("instrument: unknown instrument type")
	}
	if problems := kind.Validate(i); len(problems) > 0 {
		return &ValidationError{Details: problems}
	}
	return nil
}

// Ref implements Resource.
func (i Instrument) Ref() Ref {
	return Ref{
		Kind:                  KindInstrument,
		ID:                    i.ID,
		Name:                  i.NormalizedName,
		StationID:             i.StationID,
		StationNormalizedName: i.StationNormalizedName,
		StationAcronym:        i.StationAcronym,
	}
}

// InstrumentFilter narrows instrument listings. Zero values match everything.
type InstrumentFilter struct {
	PlatformID int64
	StationID  int64
	Type       InstrumentType
	Status     string
	// Search is a case-insensitive substring of normalized_name,
	// display_name or description.
	Search       string
	UpdatedSince time.Time
}

// Matches applies the attribute filters; parent ids are left to the store.
func (f InstrumentFilter) Matches(i Instrument) bool {
	if f.Type != "" {
		if kind, _ := ParseInstrumentType(i.InstrumentType); kind != f.Type {
			return false
		}
	}
	if f.Status != "" && !strings.EqualFold(i.Status, f.Status) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(i.NormalizedName), needle) &&
			!strings.Contains(strings.ToLower(i.DisplayName), needle) &&
			!strings.Contains(strings.ToLower(i.Description), needle) {
			return false
		}
	}
	if !f.UpdatedSince.IsZero() && i.UpdatedAt.Before(f.UpdatedSince) {
		return false
	}
	return true
}
