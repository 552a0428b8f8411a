package masterdata

import (
	"encoding/json"
	"sort"
	"time"
)

// Access is the minimum caller level that may write a field.
type Access int

const (
	// AccessNone is the level of callers that may not write at all.
	AccessNone Access = iota
	// AccessStation fields carry operational metadata editable by station users.
	AccessStation
	// AccessAdmin fields define identity and are editable by admins only.
	AccessAdmin
)

// Field declares one client-writable column.
type Field struct {
	Name     string
	Access   Access
	Required bool
	Validate func(value any) (any, error)
}

// WritableAt reports whether a caller at level may set the field.
func (f Field) WritableAt(level Access) bool {
	return level != AccessNone && f.Access <= level
}

// Schema is the declarative write policy of one resource kind.
type Schema struct {
	Kind   ResourceKind
	Fields []Field
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the names of fields whose access level is exactly access.
func (s Schema) FieldNames(access Access) []string {
	var names []string
	for _, f := range s.Fields {
		if f.Access == access {
			names = append(names, f.Name)
		}
	}
	return names
}

// Columns returns every writable column plus updated_at.
func (s Schema) Columns() map[string]struct{} {
	cols := make(map[string]struct{}, len(s.Fields)+1)
	for _, f := range s.Fields {
		cols[f.Name] = struct{}{}
	}
	cols["updated_at"] = struct{}{}
	return cols
}

// SchemaFor returns the schema of a kind.
func SchemaFor(kind ResourceKind) (Schema, bool) {
	switch kind {
	case KindStation:
		return stationSchema, true
	case KindPlatform:
		return platformSchema, true
	case KindInstrument:
		return instrumentSchema, true
	case KindROI:
		return roiSchema, true
	default:
		return Schema{}, false
	}
}

// Changes maps column names to validated values.
type Changes map[string]any

// Columns returns the changed columns in sorted order.
func (c Changes) Columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// String returns a changed string value, if present.
func (c Changes) String(col string) (string, bool) {
	v, ok := c[col]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Into decodes the changes onto an entity whose JSON names equal column names.
func (c Changes) Into(dst any) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// ApplyUpdate filters input down to the fields a caller at level may write,
// validates them, and stamps updated_at. Fields outside the allow list are
// dropped without error.
func ApplyUpdate(schema Schema, level Access, input map[string]any, now time.Time) (Changes, error) {
	changes, problems := decode(schema, level, input)
	if len(problems) > 0 {
		return nil, &ValidationError{Details: problems}
	}
	changes["updated_at"] = now.UTC()
	return changes, nil
}

// DecodeCreate is ApplyUpdate for inserts: required fields must be present.
func DecodeCreate(schema Schema, level Access, input map[string]any) (Changes, error) {
	changes, problems := decode(schema, level, input)
	for _, f := range schema.Fields {
		if !f.Required {
			continue
		}
		if _, failed := input[f.Name]; failed && hasProblem(problems, f.Name) {
			continue
		}
		if v, ok := changes[f.Name]; !ok || v == nil || v == "" {
			problems = append(problems, f.Name+": is required")
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Details: problems}
	}
	return changes, nil
}

func decode(schema Schema, level Access, input map[string]any) (Changes, []string) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := Changes{}
	var problems []string
	for _, name := range keys {
		field, ok := schema.Field(name)
		if !ok || !field.WritableAt(level) {
			continue
		}
		value, err := field.Validate(input[name])
		if err != nil {
			problems = append(problems, name+": "+err.Error())
			continue
		}
		changes[name] = value
	}
	return changes, problems
}

func hasProblem(problems []string, field string) bool {
	prefix := field + ": "
	for _, p := range problems {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

var stationSchema = Schema{
	Kind: KindStation,
	Fields: []Field{
		{Name: "display_name", Access: AccessStation, Required: true, Validate: text(200)},
		{Name: "normalized_name", Access: AccessAdmin, Validate: normalizedStationName},
		{Name: "acronym", Access: AccessAdmin, Required: true, Validate: upperPattern(acronymPattern, "must be 2-10 uppercase letters or digits")},
		{Name: "status", Access: AccessStation, Validate: oneOf(Statuses)},
		{Name: "country", Access: AccessStation, Validate: text(100)},
		{Name: "latitude", Access: AccessStation, Validate: optionalFloat(-90, 90)},
		{Name: "longitude", Access: AccessStation, Validate: optionalFloat(-180, 180)},
		{Name: "elevation_m", Access: AccessStation, Validate: optionalFloat(-500, 9000)},
		{Name: "description", Access: AccessStation, Validate: text(4000)},
	},
}

var platformSchema = Schema{
	Kind: KindPlatform,
	Fields: []Field{
		{Name: "display_name", Access: AccessStation, Validate: text(200)},
		{Name: "normalized_name", Access: AccessAdmin, Validate: pattern(identifierNamePattern, "must contain only letters, digits and single underscores")},
		{Name: "location_code", Access: AccessAdmin, Required: true, Validate: upperPattern(locationCodePattern, "must look like BL01")},
		{Name: "ecosystem_code", Access: AccessAdmin, Required: true, Validate: oneOf(EcosystemCodes)},
		{Name: "mounting_structure", Access: AccessStation, Validate: text(100)},
		{Name: "platform_height_m", Access: AccessStation, Validate: optionalFloat(0, 1000)},
		{Name: "latitude", Access: AccessStation, Validate: optionalFloat(-90, 90)},
		{Name: "longitude", Access: AccessStation, Validate: optionalFloat(-180, 180)},
		{Name: "status", Access: AccessStation, Validate: oneOf(Statuses)},
		{Name: "description", Access: AccessStation, Validate: text(4000)},
	},
}

var instrumentSchema = Schema{
	Kind: KindInstrument,
	Fields: []Field{
		{Name: "display_name", Access: AccessStation, Validate: text(200)},
		{Name: "normalized_name", Access: AccessAdmin, Validate: pattern(identifierNamePattern, "must contain only letters, digits and single underscores")},
		{Name: "legacy_acronym", Access: AccessAdmin, Validate: optionalUpperPattern(legacyAcronymPattern, "must be 2-20 uppercase letters, digits or dashes")},
		{Name: "instrument_type", Access: AccessStation, Required: true, Validate: instrumentType},
		{Name: "instrument_number", Access: AccessAdmin, Validate: text(20)},
		{Name: "status", Access: AccessStation, Validate: oneOf(Statuses)},
		{Name: "ecosystem_code", Access: AccessStation, Validate: optionalOneOf(EcosystemCodes)},
		{Name: "deployment_date", Access: AccessStation, Validate: optionalDate},
		{Name: "instrument_height_m", Access: AccessStation, Validate: optionalFloat(0, 1000)},
		{Name: "viewing_direction", Access: AccessStation, Validate: optionalPattern(viewingDirectionPattern, "must be a compass direction, Nadir or Zenith")},
		{Name: "azimuth_degrees", Access: AccessStation, Validate: optionalFloat(0, 360)},
		{Name: "degrees_from_nadir", Access: AccessStation, Validate: optionalFloat(0, 180)},
		{Name: "camera_brand", Access: AccessStation, Validate: text(100)},
		{Name: "camera_model", Access: AccessStation, Validate: text(100)},
		{Name: "camera_serial_number", Access: AccessStation, Validate: text(100)},
		{Name: "latitude", Access: AccessStation, Validate: optionalFloat(-90, 90)},
		{Name: "longitude", Access: AccessStation, Validate: optionalFloat(-180, 180)},
		{Name: "description", Access: AccessStation, Validate: text(4000)},
	},
}

var roiSchema = Schema{
	Kind: KindROI,
	Fields: []Field{
		{Name: "roi_name", Access: AccessAdmin, Validate: pattern(roiNamePattern, "must be 1-64 letters, digits or underscores")},
		{Name: "description", Access: AccessStation, Validate: text(2000)},
		{Name: "alpha", Access: AccessStation, Validate: float(0, 1)},
		{Name: "auto_generated", Access: AccessStation, Validate: boolean},
		{Name: "color_r", Access: AccessStation, Validate: integer(0, 255)},
		{Name: "color_g", Access: AccessStation, Validate: integer(0, 255)},
		{Name: "color_b", Access: AccessStation, Validate: integer(0, 255)},
		{Name: "thickness", Access: AccessStation, Validate: integer(1, 50)},
		{Name: "points_json", Access: AccessStation, Required: true, Validate: points},
		{Name: "source_image", Access: AccessStation, Validate: text(500)},
		{Name: "comment", Access: AccessStation, Validate: text(2000)},
	},
}
