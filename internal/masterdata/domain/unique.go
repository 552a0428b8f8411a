package masterdata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Conflict is one unique field whose requested value is already taken.
type Conflict struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// UniqueSpec names the unique columns of a kind and the parent column that
// scopes them. An empty Scope means the values are unique table-wide.
type UniqueSpec struct {
	Kind   ResourceKind
	Fields []string
	Scope  string
}

// UniqueSpecFor returns the uniqueness rules of a kind.
func UniqueSpecFor(kind ResourceKind) UniqueSpec {
	switch kind {
	case KindStation:
		return UniqueSpec{Kind: kind, Fields: []string{"normalized_name", "acronym"}}
	case KindPlatform:
		return UniqueSpec{Kind: kind, Fields: []string{"normalized_name", "location_code"}, Scope: "station_id"}
	case KindInstrument:
		return UniqueSpec{Kind: kind, Fields: []string{"normalized_name"}}
	case KindROI:
		return UniqueSpec{Kind: kind, Fields: []string{"roi_name"}, Scope: "instrument_id"}
	default:
		return UniqueSpec{Kind: kind}
	}
}

// SuggestAlternative proposes a value for field that is not in existing.
// Location codes keep their letter prefix and advance the number, acronyms
// grow a digit suffix, and every other field gets an _N suffix.
func SuggestAlternative(field, base string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		taken[strings.ToLower(v)] = struct{}{}
	}
	free := func(candidate string) bool {
		_, ok := taken[strings.ToLower(candidate)]
		return !ok
	}

	switch field {
	case "location_code":
		if m := trailingNumberPattern.FindStringSubmatch(strings.ToUpper(base)); m != nil {
			n, _ := strconv.Atoi(m[2])
			width := len(m[2])
			if width < 2 {
				width = 2
			}
			for i := n + 1; ; i++ {
				candidate := fmt.Sprintf("%s%0*d", m[1], width, i)
				if free(candidate) {
					return candidate
				}
			}
		}
	case "acronym":
		base = strings.ToUpper(base)
		for i := 1; ; i++ {
			suffix := strconv.Itoa(i)
			stem := base
			if len(stem)+len(suffix) > 10 {
				stem = stem[:10-len(suffix)]
			}
			if candidate := stem + suffix; free(candidate) {
				return candidate
			}
		}
	}
	for i := 1; ; i++ {
		if candidate := fmt.Sprintf("%s_%d", base, i); free(candidate) {
			return candidate
		}
	}
}

// NextInstrumentName returns the next free {platform}_{CODE}{NN} name and its
// instrument number ({CODE}{NN}).
func NextInstrumentName(platformName string, t InstrumentType, existing []string) (name, number string) {
	prefix := platformName + "_" + t.Code()
	next := nextSequence(prefix, existing)
	number = fmt.Sprintf("%s%02d", t.Code(), next)
	return platformName + "_" + number, number
}

// NextROIName returns the next free ROI_NN name.
func NextROIName(existing []string) string {
	return fmt.Sprintf("ROI_%02d", nextSequence("ROI_", existing))
}

func nextSequence(prefix string, existing []string) int {
	re := regexp.MustCompile(fmt.Sprintf(sequenceSuffixPatternTmpl, regexp.QuoteMeta(prefix)))
	max := 0
	for _, v := range existing {
		m := re.FindStringSubmatch(v)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}
