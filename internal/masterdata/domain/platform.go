package masterdata

import (
	"errors"
	"time"
)

// Platform is a fixed mounting location owned by a station.
type Platform struct {
	ID                int64     `json:"id"`
	StationID         int64     `json:"station_id"`
	NormalizedName    string    `json:"normalized_name"`
	DisplayName       string    `json:"display_name"`
	LocationCode      string    `json:"location_code"`
	EcosystemCode     string    `json:"ecosystem_code"`
	MountingStructure string    `json:"mounting_structure"`
	PlatformHeightM   *float64  `json:"platform_height_m"`
	Latitude          *float64  `json:"latitude"`
	Longitude         *float64  `json:"longitude"`
	Status            string    `json:"status"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	StationNormalizedName string `json:"station_normalized_name,omitempty"`
	StationAcronym        string `json:"station_acronym,omitempty"`
}

// Validate checks platform invariants.
func (p Platform) Validate() error {
	if p.StationID <= 0 {
		return errors.New("platform: empty station id")
	}
	if p.NormalizedName == "" {
		return errors.New("platform: empty normalized name")
	}
	if !locationCodePattern.MatchString(p.LocationCode) {
		return errors.New("platform: invalid location code")
	}
	if !IsEcosystemCode(p.EcosystemCode) {
		return errors.New("platform: invalid ecosystem code")
	}
	return nil
}

// Ref implements Resource.
func (p Platform) Ref() Ref {
	return Ref{
		Kind:                  KindPlatform,
		ID:                    p.ID,
		Name:                  p.NormalizedName,
		StationID:             p.StationID,
		StationNormalizedName: p.StationNormalizedName,
		StationAcronym:        p.StationAcronym,
	}
}

// PlatformName builds {station_acronym}_{ecosystem_code}_{location_code}.
func PlatformName(stationAcronym, ecosystemCode, locationCode string) string {
	return stationAcronym + "_" + ecosystemCode + "_" + locationCode
}

// PlatformFilter narrows platform listings. Zero values match everything.
type PlatformFilter struct {
	StationID int64
}
