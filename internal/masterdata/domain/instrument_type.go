package masterdata

import (
	"sort"
	"strings"
)

// InstrumentType is the closed set of supported instrument kinds.
type InstrumentType string

const (
	InstrumentPhenocam      InstrumentType = "phenocam"
	InstrumentMultispectral InstrumentType = "multispectral"
	InstrumentNDVI          InstrumentType = "ndvi"
	InstrumentPRI           InstrumentType = "pri"
	InstrumentHyperspectral InstrumentType = "hyperspectral"
)

// InstrumentTypes lists every kind in display order.
var InstrumentTypes = []InstrumentType{
	InstrumentPhenocam,
	InstrumentMultispectral,
	InstrumentNDVI,
	InstrumentPRI,
	InstrumentHyperspectral,
}

// ParseInstrumentType accepts the canonical names plus the labels and codes
// found in legacy records ("Phenocam", "MS", "Multispectral Sensor", ...).
func ParseInstrumentType(value string) (InstrumentType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "phenocam", "phe", "camera":
		return InstrumentPhenocam, true
	case "multispectral", "ms", "multispectral sensor", "multispectral_sensor":
		return InstrumentMultispectral, true
	case "ndvi", "ndvi sensor", "ndvi_sensor":
		return InstrumentNDVI, true
	case "pri", "pri sensor", "pri_sensor":
		return InstrumentPRI, true
	case "hyperspectral", "hyp", "hyperspectral sensor", "hyperspectral_sensor":
		return InstrumentHyperspectral, true
	default:
		return "", false
	}
}

// Code is the short type code used in generated instrument names.
func (t InstrumentType) Code() string {
	switch t {
	case InstrumentPhenocam:
		return "PHE"
	case InstrumentMultispectral:
		return "MS"
	case InstrumentNDVI:
		return "NDVI"
	case InstrumentPRI:
		return "PRI"
	case InstrumentHyperspectral:
		return "HYP"
	default:
		return ""
	}
}

// UsesCamera reports whether camera specification fields apply to the kind.
func (t InstrumentType) UsesCamera() bool {
	return t == InstrumentPhenocam
}

// Validate applies the type-specific field rules to an instrument.
func (t InstrumentType) Validate(i Instrument) []string {
	var problems []string
	if !t.UsesCamera() {
		for name, value := range map[string]string{
			"camera_brand":         i.CameraBrand,
			"camera_model":         i.CameraModel,
			"camera_serial_number": i.CameraSerialNumber,
		} {
			if value != "" {
				problems = append(problems, name+": only valid for phenocam instruments")
			}
		}
	}
	switch t {
	case InstrumentPhenocam:
		if i.DegreesFromNadir != nil && *i.DegreesFromNadir > 90 {
			problems = append(problems, "degrees_from_nadir: phenocams must look at or below the horizon (<= 90)")
		}
	case InstrumentNDVI, InstrumentPRI:
		if i.ViewingDirection == "Zenith" && i.DegreesFromNadir != nil && *i.DegreesFromNadir != 180 {
			problems = append(problems, "degrees_from_nadir: zenith-facing sensors must be 180")
		}
	}
	sort.Strings(problems)
	return problems
}
