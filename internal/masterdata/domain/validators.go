package masterdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

func asString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	default:
		return "", errors.New("must be a string")
	}
}

func text(max int) func(any) (any, error) {
	return func(value any) (any, error) {
		s, err := asString(value)
		if err != nil {
			return nil, err
		}
		if len([]rune(s)) > max {
			return nil, fmt.Errorf("must be at most %d characters", max)
		}
		return s, nil
	}
}

func pattern(re *regexp.Regexp, msg string) func(any) (any, error) {
	return func(value any) (any, error) {
		s, err := asString(value)
		if err != nil {
			return nil, err
		}
		if !re.MatchString(s) {
			return nil, errors.New(msg)
		}
		return s, nil
	}
}

func optionalPattern(re *regexp.Regexp, msg string) func(any) (any, error) {
	return func(value any) (any, error) {
		s, err := asString(value)
		if err != nil {
			return nil, err
		}
		if s != "" && !re.MatchString(s) {
			return nil, errors.New(msg)
		}
		return s, nil
	}
}

func upperPattern(re *regexp.Regexp, msg string) func(any) (any, error) {
	return func(value any) (any, error) {
		s, err := asString(value)
		if err != nil {
			return nil, err
		}
		s = strings.ToUpper(s)
		if !re.MatchString(s) {
			return nil, errors.New(msg)
		}
		return s, nil
	}
}

func optionalUpperPattern(re *regexp.Regexp, msg string) func(any) (any, error) {
	return func(value any) (any, error) {
		s, err := asString(value)
		if err != nil {
			return nil, err
		}
		s = strings.ToUpper(s)
		if s != "" && !re.MatchString(s) {
			return nil, errors.New(msg)
		}
		return s, nil
	}
}

func oneOf(allowed []string) func(any) (any, error) {
	return func(value any) (any, error) {
		s, err := asString(value)
		if err != nil {
			return nil, err
		}
		for _, a := range allowed {
			if strings.EqualFold(a, s) {
				return a, nil
			}
		}
		return nil, fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func optionalOneOf(allowed []string) func(any) (any, error) {
	check := oneOf(allowed)
	return func(value any) (any, error) {
		s, err := asString(value)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return "", nil
		}
		return check(s)
	}
}

func normalizedStationName(value any) (any, error) {
	s, err := asString(value)
	if err != nil {
		return nil, err
	}
	name := NormalizeName(s)
	if !stationNamePattern.MatchString(name) {
		return nil, errors.New("must contain at least one letter or digit")
	}
	return name, nil
}

func instrumentType(value any) (any, error) {
	s, err := asString(value)
	if err != nil {
		return nil, err
	}
	t, ok := ParseInstrumentType(s)
	if !ok {
		names := make([]string, 0, len(InstrumentTypes))
		for _, t := range InstrumentTypes {
			names = append(names, string(t))
		}
		return nil, fmt.Errorf("must be one of %s", strings.Join(names, ", "))
	}
	return string(t), nil
}

func asFloat(value any) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, errors.New("must be a number")
		}
		return f, true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, errors.New("must be a number")
		}
		return f, true, nil
	default:
		return 0, false, errors.New("must be a number")
	}
}

func checkRange(f, min, max float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < min || f > max {
		return fmt.Errorf("must be between %g and %g", min, max)
	}
	return nil
}

// optionalFloat validates a nullable number; null or "" clears the column.
func optionalFloat(min, max float64) func(any) (any, error) {
	return func(value any) (any, error) {
		f, ok, err := asFloat(value)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		if err := checkRange(f, min, max); err != nil {
			return nil, err
		}
		return f, nil
	}
}

func float(min, max float64) func(any) (any, error) {
	return func(value any) (any, error) {
		f, ok, err := asFloat(value)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("must be a number")
		}
		if err := checkRange(f, min, max); err != nil {
			return nil, err
		}
		return f, nil
	}
}

func integer(min, max int) func(any) (any, error) {
	return func(value any) (any, error) {
		f, ok, err := asFloat(value)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		if !ok || f != math.Trunc(f) {
			return nil, errors.New("must be an integer")
		}
		if f < float64(min) || f > float64(max) {
			return nil, fmt.Errorf("must be between %d and %d", min, max)
		}
		return int(f), nil
	}
}

func boolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("must be true or false")
}

func optionalDate(value any) (any, error) {
	s, err := asString(value)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return "", nil
	}
	if !datePattern.MatchString(s) {
		return nil, errors.New("must be a date in YYYY-MM-DD format")
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return nil, errors.New("must be a valid calendar date")
	}
	return s, nil
}

// points accepts [[x,y],...], [{"x":..,"y":..},...] or either one encoded
// as a JSON string, and returns the canonical pair-array encoding.
func points(value any) (any, error) {
	if s, ok := value.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, errors.New("must be a JSON array of points")
		}
		value = decoded
	}
	if raw, ok := value.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, errors.New("must be a JSON array of points")
		}
		value = decoded
	}
	list, ok := value.([]any)
	if !ok {
		return nil, errors.New("must be a JSON array of points")
	}
	if len(list) < 3 {
		return nil, errors.New("must contain at least 3 points")
	}
	pairs := make([][2]float64, 0, len(list))
	for i, item := range list {
		x, y, err := point(item)
		if err != nil {
			return nil, fmt.Errorf("point %d %s", i, err.Error())
		}
		pairs = append(pairs, [2]float64{x, y})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func point(item any) (float64, float64, error) {
	switch p := item.(type) {
	case []any:
		if len(p) != 2 {
			return 0, 0, errors.New("must have exactly two coordinates")
		}
		x, okX, errX := asFloat(p[0])
		y, okY, errY := asFloat(p[1])
		if errX != nil || errY != nil || !okX || !okY {
			return 0, 0, errors.New("must have numeric coordinates")
		}
		return x, y, nil
	case map[string]any:
		x, okX, errX := asFloat(p["x"])
		y, okY, errY := asFloat(p["y"])
		if errX != nil || errY != nil || !okX || !okY {
			return 0, 0, errors.New("must have numeric x and y")
		}
		return x, y, nil
	default:
		return 0, 0, errors.New("must be a coordinate pair")
	}
}
