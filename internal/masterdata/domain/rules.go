package masterdata

import "regexp"

var (
	acronymPattern            = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)
	locationCodePattern       = regexp.MustCompile(`^[A-Z]{1,6}[0-9]{1,4}$`)
	stationNamePattern        = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
	identifierNamePattern     = regexp.MustCompile(`^[A-Za-z0-9]+(_[A-Za-z0-9]+)*$`)
	roiNamePattern            = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)
	datePattern               = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	numericIdentifierPattern  = regexp.MustCompile(`^\d+$`)
	trailingNumberPattern     = regexp.MustCompile(`^([A-Z]+)(\d+)$`)
	legacyAcronymPattern      = regexp.MustCompile(`^[A-Z0-9-]{2,20}$`)
	viewingDirectionPattern   = regexp.MustCompile(`^(N|NE|E|SE|S|SW|W|NW|NNE|ENE|ESE|SSE|SSW|WSW|WNW|NNW|Nadir|Zenith)$`)
	sequenceSuffixPatternTmpl = `^%s(\d+)$`
)

// EcosystemCodes is the closed set of platform ecosystem codes.
var EcosystemCodes = []string{
	"FOR", "AGR", "MIR", "LAK", "WET", "GRA", "HEA", "ALP", "CON", "DEC", "MAR", "PEA", "GEN",
}

// Statuses is the closed set of lifecycle states shared by every entity.
var Statuses = []string{"Active", "Inactive", "Maintenance", "Decommissioned", "Planned", "Testing"}

// IsEcosystemCode reports whether code is a known ecosystem code.
func IsEcosystemCode(code string) bool {
	return contains(EcosystemCodes, code)
}

// IsNumericIdentifier reports whether identifier is a surrogate key.
func IsNumericIdentifier(identifier string) bool {
	return numericIdentifierPattern.MatchString(identifier)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
