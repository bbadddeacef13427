package fields

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Attribute keys used by NestedForm instances. The referenced form is a weak
// relation by id: the target form does not know about its referrers, and
// selectedFormSubmissionData is a denormalized cache that is only as fresh as
// the last propagation pass.
const (
	AttrSelectedFormID         = "selectedFormId"
	AttrSelectedFormName       = "selectedFormName"
	AttrSelectedNestedFields   = "selectedNestedFields"
	AttrSelectedSubmissionData = "selectedFormSubmissionData"
)

// ParseSchema decodes a serialized form schema, preserving element order.
// An empty blob is an empty schema.
func ParseSchema(blob []byte) ([]FieldInstance, error) {
	if len(blob) == 0 {
		return []FieldInstance{}, nil
	}
	var schema []FieldInstance
	if err := json.Unmarshal(blob, &schema); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return schema, nil
}

// MarshalSchema serializes a schema back to its storage form.
func MarshalSchema(schema []FieldInstance) ([]byte, error) {
	if schema == nil {
		schema = []FieldInstance{}
	}
	blob, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return blob, nil
}

// ParseContent decodes a submission content blob (fieldId -> value).
func ParseContent(blob []byte) (map[string]any, error) {
	if len(blob) == 0 {
		return map[string]any{}, nil
	}
	var content map[string]any
	if err := json.Unmarshal(blob, &content); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	return content, nil
}

// ValidateContent checks every input element of the schema against the
// submitted content and returns the ids of fields whose values fail their
// type rule. Values that are not strings (nested form selections) pass
// through untouched.
func ValidateContent(schema []FieldInstance, content map[string]any) ([]string, error) {
	var failed []string
	for _, el := range schema {
		raw, ok := content[el.ID]
		value := ""
		if ok {
			switch v := raw.(type) {
			case string:
				value = v
			case float64:
				value = strconv.FormatFloat(v, 'f', -1, 64)
			case bool:
				value = strconv.FormatBool(v)
			default:
				continue
			}
		}
		valid, err := Validate(el, value)
		if err != nil {
			return nil, err
		}
		if !valid {
			failed = append(failed, el.ID)
		}
	}
	return failed, nil
}

// SelectedFormID returns the target form id of a NestedForm instance.
// The id may be stored as a JSON number or a string; ok is false when the
// instance has no target selected.
func (f FieldInstance) SelectedFormID() (int64, bool) {
	raw, ok := f.ExtraAttributes[AttrSelectedFormID]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

// SelectedNestedFields returns the subset of the target form's fields the
// author chose to surface through a NestedForm instance.
func (f FieldInstance) SelectedNestedFields() []FieldInstance {
	raw, ok := f.ExtraAttributes[AttrSelectedNestedFields]
	if !ok {
		return nil
	}
	// Round-trip through JSON: the attribute arrives as []any after decode.
	blob, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var nested []FieldInstance
	if err := json.Unmarshal(blob, &nested); err != nil {
		return nil
	}
	return nested
}

// SubmissionData returns the cached submission projection of a NestedForm
// instance. Legacy schemas stored a single object instead of a list; both
// shapes are accepted.
func (f FieldInstance) SubmissionData() []any {
	raw, ok := f.ExtraAttributes[AttrSelectedSubmissionData]
	if !ok || raw == nil {
		return nil
	}
	if list, ok := raw.([]any); ok {
		return list
	}
	return []any{raw}
}

// AppendSubmissionData appends one parsed submission content object to the
// cached projection. The cache is append-only and never pruned.
func (f *FieldInstance) AppendSubmissionData(content map[string]any) {
	data := f.SubmissionData()
	if f.ExtraAttributes == nil {
		f.ExtraAttributes = map[string]any{}
	}
	f.ExtraAttributes[AttrSelectedSubmissionData] = append(data, content)
}
