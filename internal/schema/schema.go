// Package schema models the user-customizable set of record fields layered
// on top of the fixed base columns. The resolved schema drives both the LLM
// extraction shape and the destination-table column reconciliation.
package schema

import (
	"sort"
	"strings"

	"github.com/kalambet/habitd/internal/fault"
)

// Kind is the value kind of a schema field.
type Kind string

const (
	KindText    Kind = "text"
	KindInteger Kind = "integer"
	KindReal    Kind = "real"
	KindBoolean Kind = "boolean"
)

// Base column names. Schema field names must never collide with these; the
// table writer maps them to fixed record attributes.
const (
	ColDate      = "date"
	ColTimestamp = "timestamp"
	ColRaw       = "raw_record"
	ColDiary     = "diary"
)

// legacyAliases maps retired base-column names onto their current names.
// The table writer migrates these in place without reordering columns.
var legacyAliases = map[string]string{
	"raw_diary": ColRaw,
	"raw_text":  ColRaw,
}

// LegacyAlias returns the current name for a retired column name, or the
// input unchanged.
func LegacyAlias(name string) string {
	if cur, ok := legacyAliases[name]; ok {
		return cur
	}
	return name
}

// BaseColumns returns the fixed base column names in canonical order.
func BaseColumns() []string {
	return []string{ColDate, ColTimestamp, ColRaw, ColDiary}
}

// IsBaseColumn reports whether name is a base column or a legacy alias of one.
func IsBaseColumn(name string) bool {
	switch LegacyAlias(name) {
	case ColDate, ColTimestamp, ColRaw, ColDiary:
		return true
	}
	return false
}

// Field describes a single user-defined record field.
type Field struct {
	Kind        Kind     `json:"kind"`
	Nullable    bool     `json:"nullable,omitempty"`
	Description string   `json:"description"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Required    bool     `json:"required"`
}

// Numeric reports whether the field carries a numeric kind.
func (f Field) Numeric() bool {
	return f.Kind == KindInteger || f.Kind == KindReal
}

// Schema is the versioned set of field definitions owned by a profile.
type Schema struct {
	Version int              `json:"version"`
	Fields  map[string]Field `json:"fields"`
}

// Clone returns a deep copy of the schema. Mutating the copy never aliases
// into the receiver.
func (s Schema) Clone() Schema {
	cp := Schema{Version: s.Version, Fields: make(map[string]Field, len(s.Fields))}
	for name, f := range s.Fields {
		if f.Minimum != nil {
			v := *f.Minimum
			f.Minimum = &v
		}
		if f.Maximum != nil {
			v := *f.Maximum
			f.Maximum = &v
		}
		cp.Fields[name] = f
	}
	return cp
}

// FieldOrder returns the schema's field names sorted for deterministic
// column ordering: default fields first in their canonical order, then
// user-added fields alphabetically.
func (s Schema) FieldOrder() []string {
	var order []string
	seen := make(map[string]bool, len(s.Fields))
	for _, name := range defaultFieldOrder {
		if _, ok := s.Fields[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range s.Fields {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

var defaultFieldOrder = []string{
	"morning_exercises",
	"training",
	"alcohol",
	"mood",
	"day_importance",
}

// defaultSchema is the immutable baked-in template. It is deep-copied before
// being merged into any user-owned structure.
var defaultSchema = Schema{
	Version: 1,
	Fields: map[string]Field{
		"morning_exercises": {
			Kind:        KindInteger,
			Description: "Whether the person did morning exercises. 0 = no, 1 = yes.",
			Minimum:     ptr(0), Maximum: ptr(1),
			Required: true,
		},
		"training": {
			Kind:        KindInteger,
			Description: "Whether the person did any training or workout. 0 = no, 1 = yes.",
			Minimum:     ptr(0), Maximum: ptr(1),
			Required: true,
		},
		"alcohol": {
			Kind:        KindInteger,
			Description: "Alcohol consumption level from 0 to 3.",
			Minimum:     ptr(0), Maximum: ptr(3),
			Required: true,
		},
		"mood": {
			Kind:        KindInteger,
			Nullable:    true,
			Description: "Mood level 1-5 (1=very bad, 5=very good). null if not mentioned.",
			Minimum:     ptr(1), Maximum: ptr(5),
		},
		"day_importance": {
			Kind:        KindInteger,
			Description: "Day importance rating 1-3 (1=not important, 3=very important).",
			Minimum:     ptr(1), Maximum: ptr(3),
			Required: true,
		},
	},
}

func ptr(v float64) *float64 { return &v }

// Default returns a deep copy of the baked-in default schema.
func Default() Schema {
	return defaultSchema.Clone()
}

// Resolve merges the user's fields on top of the baked-in defaults. Default
// fields are never dropped; a user field with the same name overrides the
// default definition.
func Resolve(user Schema) Schema {
	resolved := Default()
	if user.Version > resolved.Version {
		resolved.Version = user.Version
	}
	for name, f := range user.Clone().Fields {
		resolved.Fields[name] = f
	}
	return resolved
}

// NormalizeKind maps loose kind spellings onto a Kind. The second return is
// false when the spelling is not recognized.
//
//	int | integer            -> integer
//	float | double | number | real -> real
//	bool | boolean           -> boolean
//	"" | str | string | text -> text
func NormalizeKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "int", "integer":
		return KindInteger, true
	case "float", "double", "number", "real":
		return KindReal, true
	case "bool", "boolean":
		return KindBoolean, true
	case "", "str", "string", "text":
		return KindText, true
	}
	return KindText, false
}

// ValidateField checks a candidate field definition against the existing
// schema: non-empty well-formed name, no collision with base columns or
// existing fields, and maximum >= minimum when both bounds are present on a
// numeric kind. Bounds on non-numeric kinds are rejected.
func ValidateField(name string, def Field, existing Schema) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fault.Validation(name, "field name is empty")
	}
	if strings.ContainsAny(name, " \t\n") {
		return fault.Validation(name, "field name must not contain whitespace")
	}
	if IsBaseColumn(name) {
		return fault.Validation(name, "name collides with base column %q", LegacyAlias(name))
	}
	if _, ok := existing.Fields[name]; ok {
		return fault.Validation(name, "field already exists")
	}
	switch def.Kind {
	case KindText, KindInteger, KindReal, KindBoolean:
	default:
		return fault.Validation(name, "unknown kind %q", def.Kind)
	}
	if !def.Numeric() && (def.Minimum != nil || def.Maximum != nil) {
		return fault.Validation(name, "bounds are only valid for numeric kinds")
	}
	if def.Minimum != nil && def.Maximum != nil && *def.Maximum < *def.Minimum {
		return fault.Validation(name, "maximum %v is below minimum %v", *def.Maximum, *def.Minimum)
	}
	return nil
}

// ValidateRecord filters an extraction output against the resolved schema.
// Unknown keys are dropped, values are coerced to the declared kind, and
// out-of-bounds numeric values are discarded. Reserved keys pass through
// untouched. The extraction boundary is the single place this runs; the
// engine and writer trust the result downstream.
func ValidateRecord(resolved Schema, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, val := range fields {
		if IsBaseColumn(key) {
			out[LegacyAlias(key)] = val
			continue
		}
		def, ok := resolved.Fields[key]
		if !ok {
			continue
		}
		if val == nil {
			if def.Nullable || !def.Required {
				out[key] = nil
			}
			continue
		}
		coerced, ok := coerce(def, val)
		if ok {
			out[key] = coerced
		}
	}
	return out
}

func coerce(def Field, val any) (any, bool) {
	switch def.Kind {
	case KindText:
		if s, ok := val.(string); ok {
			return s, true
		}
		return nil, false
	case KindBoolean:
		switch v := val.(type) {
		case bool:
			return v, true
		case float64:
			return v != 0, true
		}
		return nil, false
	case KindInteger, KindReal:
		num, ok := val.(float64)
		if !ok {
			return nil, false
		}
		if def.Minimum != nil && num < *def.Minimum {
			return nil, false
		}
		if def.Maximum != nil && num > *def.Maximum {
			return nil, false
		}
		if def.Kind == KindInteger {
			return int64(num), true
		}
		return num, true
	}
	return nil, false
}
