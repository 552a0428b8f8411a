package masterdata

import "fmt"

// ResourceKind identifies one level of the station tree.
type ResourceKind string

const (
	KindStation    ResourceKind = "station"
	KindPlatform   ResourceKind = "platform"
	KindInstrument ResourceKind = "instrument"
	KindROI        ResourceKind = "roi"
)

// ParseResourceKind accepts singular or plural kind names.
func ParseResourceKind(value string) (ResourceKind, bool) {
	switch value {
	case "station", "stations":
		return KindStation, true
	case "platform", "platforms":
		return KindPlatform, true
	case "instrument", "instruments":
		return KindInstrument, true
	case "roi", "rois":
		return KindROI, true
	default:
		return "", false
	}
}

// Plural returns the collection name used in routes and summaries.
func (k ResourceKind) Plural() string {
	return string(k) + "s"
}

// Table returns the backing table name.
func (k ResourceKind) Table() string {
	switch k {
	case KindStation:
		return "stations"
	case KindPlatform:
		return "platforms"
	case KindInstrument:
		return "instruments"
	case KindROI:
		return "instrument_rois"
	default:
		return ""
	}
}

// Descendants lists every kind below k, top-down.
func (k ResourceKind) Descendants() []ResourceKind {
	switch k {
	case KindStation:
		return []ResourceKind{KindPlatform, KindInstrument, KindROI}
	case KindPlatform:
		return []ResourceKind{KindInstrument, KindROI}
	case KindInstrument:
		return []ResourceKind{KindROI}
	default:
		return nil
	}
}

// Noun renders a count with the human-readable noun for the kind.
func (k ResourceKind) Noun(count int) string {
	name := string(k)
	if k == KindROI {
		name = "ROI"
	}
	if count == 1 {
		return fmt.Sprintf("1 %s", name)
	}
	return fmt.Sprintf("%d %ss", count, name)
}

// Ref is a denormalized pointer to one resource and its owning station.
type Ref struct {
	Kind                  ResourceKind `json:"type"`
	ID                    int64        `json:"id"`
	Name                  string       `json:"name"`
	StationID             int64        `json:"station_id,omitempty"`
	StationNormalizedName string       `json:"station_normalized_name,omitempty"`
	StationAcronym        string       `json:"station_acronym,omitempty"`
}

// Resource is implemented by every entity in the station tree.
type Resource interface {
	Ref() Ref
}
