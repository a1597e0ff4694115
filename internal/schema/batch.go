package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// batchField is the wire shape accepted by ImportBatch: a single definition
// or a list of them. "type" accepts the loose spellings NormalizeKind knows,
// optionally as ["integer","null"] to mark a nullable field.
type batchField struct {
	Name        string          `json:"name"`
	Type        json.RawMessage `json:"type"`
	Description string          `json:"description"`
	Minimum     *float64        `json:"minimum"`
	Maximum     *float64        `json:"maximum"`
	Required    *bool           `json:"required"`
}

// BatchResult reports the per-field outcome of a bulk import.
type BatchResult struct {
	Added   []string
	Skipped map[string]string // name -> reason
}

// ImportBatch parses a JSON batch description (single object or list) and
// applies each definition to the schema with the same per-field rules as the
// interactive wizard. Invalid entries are skipped with a reason instead of
// failing the whole batch; a partially valid batch never raises a hard
// error. Only a payload that is not JSON at all is rejected outright.
func ImportBatch(raw string, target *Schema) (BatchResult, error) {
	res := BatchResult{Skipped: make(map[string]string)}

	defs, err := decodeBatch(raw)
	if err != nil {
		return res, err
	}
	if target.Fields == nil {
		target.Fields = make(map[string]Field)
	}

	for i, bf := range defs {
		name := strings.TrimSpace(bf.Name)
		if name == "" {
			res.Skipped[fmt.Sprintf("#%d", i+1)] = "missing name"
			continue
		}
		def, reason := buildField(bf)
		if reason != "" {
			res.Skipped[name] = reason
			continue
		}
		if err := ValidateField(name, def, *target); err != nil {
			res.Skipped[name] = err.Error()
			continue
		}
		target.Fields[name] = def
		res.Added = append(res.Added, name)
	}
	return res, nil
}

func decodeBatch(raw string) ([]batchField, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var list []batchField
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, fmt.Errorf("parsing batch list: %w", err)
		}
		return list, nil
	}
	var one batchField
	if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
		return nil, fmt.Errorf("parsing batch object: %w", err)
	}
	return []batchField{one}, nil
}

func buildField(bf batchField) (Field, string) {
	kindRaw, nullable, ok := decodeType(bf.Type)
	if !ok {
		return Field{}, "invalid type"
	}
	kind, ok := NormalizeKind(kindRaw)
	if !ok {
		return Field{}, fmt.Sprintf("unknown type %q", kindRaw)
	}
	required := true
	if bf.Required != nil {
		required = *bf.Required
	}
	if nullable {
		required = false
	}
	return Field{
		Kind:        kind,
		Nullable:    nullable,
		Description: strings.TrimSpace(bf.Description),
		Minimum:     bf.Minimum,
		Maximum:     bf.Maximum,
		Required:    required,
	}, ""
}

// decodeType accepts "integer" or ["integer","null"].
func decodeType(raw json.RawMessage) (kind string, nullable, ok bool) {
	if len(raw) == 0 {
		return "", false, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, false, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", false, false
	}
	for _, item := range list {
		if strings.EqualFold(item, "null") {
			nullable = true
			continue
		}
		kind = item
	}
	return kind, nullable, true
}
