package fields

import (
	"encoding/json"
	"testing"
)

func TestParseSchemaPreservesOrder(t *testing.T) {
	blob := []byte(`[
		{"id":"c","type":"TextField","extraAttributes":{"label":"C"}},
		{"id":"a","type":"NumberField","extraAttributes":{"label":"A"}},
		{"id":"b","type":"SelectField","extraAttributes":{"label":"B"}}
	]`)
	schema, err := ParseSchema(blob)
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	want := []string{"c", "a", "b"}
	if len(schema) != len(want) {
		t.Fatalf("got %d elements, want %d", len(schema), len(want))
	}
	for i, id := range want {
		if schema[i].ID != id {
			t.Errorf("element %d: got id %q, want %q", i, schema[i].ID, id)
		}
	}

	// Round trip keeps the order too.
	out, err := MarshalSchema(schema)
	if err != nil {
		t.Fatalf("MarshalSchema: %v", err)
	}
	again, err := ParseSchema(out)
	if err != nil {
		t.Fatalf("ParseSchema round trip: %v", err)
	}
	for i, id := range want {
		if again[i].ID != id {
			t.Errorf("round trip element %d: got id %q, want %q", i, again[i].ID, id)
		}
	}
}

func TestParseSchemaEmpty(t *testing.T) {
	for _, blob := range [][]byte{nil, {}} {
		schema, err := ParseSchema(blob)
		if err != nil {
			t.Fatalf("ParseSchema(%q): %v", blob, err)
		}
		if len(schema) != 0 {
			t.Errorf("expected empty schema, got %d elements", len(schema))
		}
	}
}

func TestParseSchemaMalformed(t *testing.T) {
	if _, err := ParseSchema([]byte(`{"not":"a list"}`)); err == nil {
		t.Fatal("expected error for non-list schema")
	}
	if _, err := ParseSchema([]byte(`[{`)); err == nil {
		t.Fatal("expected error for truncated schema")
	}
}

func TestValidateContent(t *testing.T) {
	q1, _ := Construct(TextField, "q1")
	q1.ExtraAttributes["required"] = true
	q2, _ := Construct(NumberField, "q2")
	schema := []FieldInstance{q1, q2}

	failed, err := ValidateContent(schema, map[string]any{"q1": "hi", "q2": "5"})
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("expected clean validation, got failures %v", failed)
	}

	failed, err = ValidateContent(schema, map[string]any{"q2": "not a number"})
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if len(failed) != 2 {
		t.Errorf("expected q1 and q2 to fail, got %v", failed)
	}

	// Non-string values (nested form selections) pass through untouched.
	failed, err = ValidateContent(schema, map[string]any{
		"q1": map[string]any{"inner": "x"},
		"q2": "7",
	})
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("non-string value should be skipped, got failures %v", failed)
	}
}

func TestSelectedFormID(t *testing.T) {
	tests := []struct {
		name string
		attr any
		want int64
		ok   bool
	}{
		{"number", float64(7), 7, true},
		{"string", "12", 12, true},
		{"nil", nil, 0, false},
		{"garbage string", "seven", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := FieldInstance{ID: "n", Type: NestedForm,
				ExtraAttributes: map[string]any{AttrSelectedFormID: tt.attr}}
			got, ok := el.SelectedFormID()
			if got != tt.want || ok != tt.ok {
				t.Errorf("SelectedFormID() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}

	unset := FieldInstance{ID: "n", Type: NestedForm, ExtraAttributes: map[string]any{}}
	if _, ok := unset.SelectedFormID(); ok {
		t.Error("unset selectedFormId should not resolve")
	}
}

func TestSubmissionDataShapes(t *testing.T) {
	// List shape.
	el := FieldInstance{ID: "n", Type: NestedForm, ExtraAttributes: map[string]any{
		AttrSelectedSubmissionData: []any{map[string]any{"q1": "a"}},
	}}
	if got := len(el.SubmissionData()); got != 1 {
		t.Errorf("list shape: got %d entries, want 1", got)
	}

	// Legacy scalar shape wraps into a single-entry list.
	el.ExtraAttributes[AttrSelectedSubmissionData] = map[string]any{"q1": "a"}
	if got := len(el.SubmissionData()); got != 1 {
		t.Errorf("scalar shape: got %d entries, want 1", got)
	}

	// Absent means empty.
	delete(el.ExtraAttributes, AttrSelectedSubmissionData)
	if got := len(el.SubmissionData()); got != 0 {
		t.Errorf("absent: got %d entries, want 0", got)
	}
}

func TestAppendSubmissionData(t *testing.T) {
	el, _ := Construct(NestedForm, "n1")
	el.AppendSubmissionData(map[string]any{"q1": "first"})
	el.AppendSubmissionData(map[string]any{"q1": "second"})

	data := el.SubmissionData()
	if len(data) != 2 {
		t.Fatalf("got %d cached entries, want 2", len(data))
	}

	// Survives a serialization round trip.
	blob, err := MarshalSchema([]FieldInstance{el})
	if err != nil {
		t.Fatalf("MarshalSchema: %v", err)
	}
	schema, err := ParseSchema(blob)
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	if got := len(schema[0].SubmissionData()); got != 2 {
		t.Errorf("after round trip: got %d cached entries, want 2", got)
	}
}

func TestSelectedNestedFields(t *testing.T) {
	var el FieldInstance
	blob := []byte(`{"id":"n1","type":"NestedForm","extraAttributes":{
		"selectedFormId":"3",
		"selectedNestedFields":[
			{"id":"q1","type":"TextField","extraAttributes":{"label":"Name"}},
			{"id":"q2","type":"NumberField","extraAttributes":{"label":"Age"}}
		]}}`)
	if err := json.Unmarshal(blob, &el); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	nested := el.SelectedNestedFields()
	if len(nested) != 2 {
		t.Fatalf("got %d nested fields, want 2", len(nested))
	}
	if nested[0].ID != "q1" || nested[0].Type != TextField {
		t.Errorf("unexpected first nested field: %+v", nested[0])
	}
	if nested[1].Label() != "Age" {
		t.Errorf("unexpected second nested field label: %q", nested[1].Label())
	}
}
