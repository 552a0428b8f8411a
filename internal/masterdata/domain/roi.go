package masterdata

import (
	"encoding/json"
	"errors"
	"time"
)

// ROI is a region of interest drawn on an instrument's image frame.
type ROI struct {
	ID            int64           `json:"id"`
	InstrumentID  int64           `json:"instrument_id"`
	ROIName       string          `json:"roi_name"`
	Description   string          `json:"description"`
	Alpha         float64         `json:"alpha"`
	AutoGenerated bool            `json:"auto_generated"`
	ColorR        int             `json:"color_r"`
	ColorG        int             `json:"color_g"`
	ColorB        int             `json:"color_b"`
	Thickness     int             `json:"thickness"`
	Points        json.RawMessage `json:"points_json"`
	SourceImage   string          `json:"source_image"`
	Comment       string          `json:"comment"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	InstrumentNormalizedName string `json:"instrument_normalized_name,omitempty"`
	StationID                int64  `json:"station_id,omitempty"`
	StationNormalizedName    string `json:"station_normalized_name,omitempty"`
	StationAcronym           string `json:"station_acronym,omitempty"`
}

// Validate checks ROI invariants.
func (r ROI) Validate() error {
	if r.InstrumentID <= 0 {
		return errors.New("roi: empty instrument id")
	}
	if !roiNamePattern.MatchString(r.ROIName) {
		return errors.New("roi: invalid roi name")
	}
	if len(r.Points) == 0 {
		return errors.New("roi: empty points")
	}
	return nil
}

// Ref implements Resource.
func (r ROI) Ref() Ref {
	return Ref{
		Kind:                  KindROI,
		ID:                    r.ID,
		Name:                  r.ROIName,
		StationID:             r.StationID,
		StationNormalizedName: r.StationNormalizedName,
		StationAcronym:        r.StationAcronym,
	}
}

// ROIFilter narrows ROI listings. Zero values match everything.
type ROIFilter struct {
	InstrumentID int64
	PlatformID   int64
	StationID    int64
}
