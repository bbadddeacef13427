// Package fields defines the closed set of form element types, their default
// attribute shapes, and their validation rules. A form's schema is an ordered
// list of FieldInstance values serialized as a single JSON blob.
package fields

import (
	"fmt"
	"strconv"
	"time"
)

// ElementType tags a field instance with its behavior.
type ElementType string

const (
	TextField      ElementType = "TextField"
	TitleField     ElementType = "TitleField"
	SubTitleField  ElementType = "SubTitleField"
	ParagraphField ElementType = "ParagraphField"
	SeparatorField ElementType = "SeparatorField"
	SpacerField    ElementType = "SpacerField"
	NumberField    ElementType = "NumberField"
	TextAreaField  ElementType = "TextAreaField"
	DateField      ElementType = "DateField"
	TimeField      ElementType = "TimeField"
	SelectField    ElementType = "SelectField"
	CheckboxField  ElementType = "CheckboxField"
	RadioField     ElementType = "RadioField"
	FileField      ElementType = "FileField"
	NestedForm     ElementType = "NestedForm"
)

// FieldInstance is one element of a form schema. ID is unique within the form
// and immutable once created; ExtraAttributes must match the shape documented
// for Type.
type FieldInstance struct {
	ID              string         `json:"id"`
	Type            ElementType    `json:"type"`
	ExtraAttributes map[string]any `json:"extraAttributes,omitempty"`
}

// FormElement holds the behavior for one element type.
type FormElement struct {
	Type ElementType

	// Construct seeds a new instance with the type's default attributes.
	// Defaults are a UX convenience, not a stable contract.
	Construct func(id string) FieldInstance

	// Validate reports whether value satisfies the instance's constraints.
	// Pure and total: well-formed attributes plus any string value always
	// yield a verdict.
	Validate func(el FieldInstance, value string) bool
}

// elements is the dispatch table over the closed element set.
var elements = map[ElementType]FormElement{
	TextField: {
		Type: TextField,
		Construct: defaults(TextField, map[string]any{
			"label":       "Text field",
			"helperText":  "Helper text",
			"required":    false,
			"placeHolder": "Value here...",
		}),
		Validate: requiredNonEmpty,
	},
	TitleField: {
		Type:      TitleField,
		Construct: defaults(TitleField, map[string]any{"title": "Title field"}),
		Validate:  alwaysValid,
	},
	SubTitleField: {
		Type:      SubTitleField,
		Construct: defaults(SubTitleField, map[string]any{"title": "SubTitle field"}),
		Validate:  alwaysValid,
	},
	ParagraphField: {
		Type:      ParagraphField,
		Construct: defaults(ParagraphField, map[string]any{"text": "Text here"}),
		Validate:  alwaysValid,
	},
	SeparatorField: {
		Type:      SeparatorField,
		Construct: defaults(SeparatorField, nil),
		Validate:  alwaysValid,
	},
	SpacerField: {
		Type:      SpacerField,
		Construct: defaults(SpacerField, map[string]any{"height": 20}),
		Validate:  alwaysValid,
	},
	NumberField: {
		Type: NumberField,
		Construct: defaults(NumberField, map[string]any{
			"label":       "Number field",
			"helperText":  "Helper text",
			"required":    false,
			"placeHolder": "0",
		}),
		Validate: validateNumber,
	},
	TextAreaField: {
		Type: TextAreaField,
		Construct: defaults(TextAreaField, map[string]any{
			"label":       "Text area",
			"helperText":  "Helper text",
			"required":    false,
			"placeHolder": "Value here...",
			"rows":        3,
		}),
		Validate: validateTextArea,
	},
	DateField: {
		Type: DateField,
		Construct: defaults(DateField, map[string]any{
			"label":      "Date field",
			"helperText": "Pick a date",
			"required":   false,
		}),
		Validate: validateDate,
	},
	TimeField: {
		Type: TimeField,
		Construct: defaults(TimeField, map[string]any{
			"label":      "Time field",
			"helperText": "Pick a time",
			"required":   false,
		}),
		Validate: validateTime,
	},
	SelectField: {
		Type: SelectField,
		Construct: defaults(SelectField, map[string]any{
			"label":       "Select field",
			"helperText":  "Helper text",
			"required":    false,
			"placeHolder": "Value here...",
			"options":     []any{},
		}),
		Validate: validateOptions,
	},
	CheckboxField: {
		Type: CheckboxField,
		Construct: defaults(CheckboxField, map[string]any{
			"label":      "Checkbox field",
			"helperText": "Helper text",
			"required":   false,
		}),
		Validate: validateCheckbox,
	},
	RadioField: {
		Type: RadioField,
		Construct: defaults(RadioField, map[string]any{
			"label":      "Radio Field",
			"helperText": "Helper text",
			"required":   false,
			"options":    []any{},
		}),
		Validate: validateOptions,
	},
	FileField: {
		Type: FileField,
		Construct: defaults(FileField, map[string]any{
			"label":      "File Upload",
			"helperText": "Upload a file",
			"required":   false,
		}),
		Validate: requiredNonEmpty,
	},
	NestedForm: {
		Type: NestedForm,
		Construct: defaults(NestedForm, map[string]any{
			"selectedFormId":       nil,
			"selectedNestedFields": []any{},
		}),
		// The embedded projection is read-only; there is nothing to reject.
		Validate: alwaysValid,
	},
}

// ElementFor resolves the behavior for a tag. An unknown tag is a
// configuration error surfaced at construction time, never during validation.
func ElementFor(t ElementType) (FormElement, error) {
	el, ok := elements[t]
	if !ok {
		return FormElement{}, fmt.Errorf("unknown element type %q", t)
	}
	return el, nil
}

// Construct builds a new instance of the given type with default attributes.
func Construct(t ElementType, id string) (FieldInstance, error) {
	el, err := ElementFor(t)
	if err != nil {
		return FieldInstance{}, err
	}
	return el.Construct(id), nil
}

// Validate applies the type's rule to a raw value. Unknown types fail loudly
// rather than silently passing.
func Validate(el FieldInstance, value string) (bool, error) {
	behavior, err := ElementFor(el.Type)
	if err != nil {
		return false, err
	}
	return behavior.Validate(el, value), nil
}

// Types lists every registered element tag. Order is not significant.
func Types() []ElementType {
	out := make([]ElementType, 0, len(elements))
	for t := range elements {
		out = append(out, t)
	}
	return out
}

func defaults(t ElementType, attrs map[string]any) func(string) FieldInstance {
	return func(id string) FieldInstance {
		copied := make(map[string]any, len(attrs))
		for k, v := range attrs {
			copied[k] = v
		}
		return FieldInstance{ID: id, Type: t, ExtraAttributes: copied}
	}
}

func alwaysValid(FieldInstance, string) bool { return true }

// requiredNonEmpty is the universal rule: required fields reject empty input.
func requiredNonEmpty(el FieldInstance, value string) bool {
	if el.Required() {
		return len(value) > 0
	}
	return true
}

func validateNumber(el FieldInstance, value string) bool {
	if !requiredNonEmpty(el, value) {
		return false
	}
	if value == "" {
		return true
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// validateTextArea caps length when a positive maxChars attribute is set.
// Unset or zero means unlimited.
func validateTextArea(el FieldInstance, value string) bool {
	if !requiredNonEmpty(el, value) {
		return false
	}
	if limit, ok := el.ExtraAttributes["maxChars"].(float64); ok && limit > 0 {
		return len([]rune(value)) <= int(limit)
	}
	return true
}

func validateDate(el FieldInstance, value string) bool {
	if !requiredNonEmpty(el, value) {
		return false
	}
	if value == "" {
		return true
	}
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

func validateTime(el FieldInstance, value string) bool {
	if !requiredNonEmpty(el, value) {
		return false
	}
	if value == "" {
		return true
	}
	_, err := time.Parse("15:04", value)
	return err == nil
}

// validateCheckbox treats required as "must be checked".
func validateCheckbox(el FieldInstance, value string) bool {
	if el.Required() {
		return value == "true"
	}
	return true
}

// validateOptions adds option membership on top of the universal rule.
// An empty option list accepts any value: the form author has not
// constrained the field yet.
func validateOptions(el FieldInstance, value string) bool {
	if !requiredNonEmpty(el, value) {
		return false
	}
	if value == "" {
		return true
	}
	opts := el.Options()
	if len(opts) == 0 {
		return true
	}
	for _, opt := range opts {
		if opt == value {
			return true
		}
	}
	return false
}

// Required reports the instance's required attribute, defaulting to false.
func (f FieldInstance) Required() bool {
	v, ok := f.ExtraAttributes["required"].(bool)
	return ok && v
}

// Label returns the display label, or the empty string.
func (f FieldInstance) Label() string {
	v, _ := f.ExtraAttributes["label"].(string)
	return v
}

// Options returns the option values for Select/Radio instances. Options may
// be stored either as plain strings or as {label, value} objects.
func (f FieldInstance) Options() []string {
	raw, ok := f.ExtraAttributes["options"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, o := range raw {
		switch v := o.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if s, ok := v["value"].(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
