package schema

import (
	"errors"
	"testing"
)

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		schemas []FormSchema
	}{
		{
			name: "duplicate form name",
			schemas: []FormSchema{
				{Name: "incident_report"},
				{Name: "incident_report"},
			},
		},
		{
			name: "duplicate field name",
			schemas: []FormSchema{{
				Name: "incident_report",
				Fields: []FieldSpec{
					{Name: "Jobcode"},
					{Name: "Jobcode"},
				},
			}},
		},
		{
			name:    "empty form name",
			schemas: []FormSchema{{Name: ""}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewRegistry(test.schemas...)
			var schemaError *SchemaError
			if !errors.As(err, &schemaError) {
				t.Fatalf("expected a SchemaError, got %v", err)
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	registry, err := NewRegistry(
		FormSchema{Name: "incident_report", Fields: []FieldSpec{{Name: "Jobcode"}}},
		FormSchema{Name: "site_survey"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	form, ok := registry.Lookup("incident_report")
	if !ok || form.Name != "incident_report" {
		t.Fatalf("expected to find incident_report, got %v %v", form, ok)
	}
	if _, ok := registry.Lookup("missing"); ok {
		t.Fatalf("unexpected hit for unknown form")
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "incident_report" || names[1] != "site_survey" {
		t.Fatalf("expected registration order to be preserved, got %v", names)
	}
}

func TestParseFieldTypeDefaultsToString(t *testing.T) {
	tests := []struct {
		raw      string
		expected FieldType
	}{
		{raw: "float", expected: TypeFloat},
		{raw: "int", expected: TypeInt},
		{raw: "integer", expected: TypeInt},
		{raw: "list", expected: TypeList},
		{raw: "date", expected: TypeDate},
		{raw: "str", expected: TypeString},
		{raw: "textarea", expected: TypeString},
		{raw: "", expected: TypeString},
	}
	for _, test := range tests {
		if got := ParseFieldType(test.raw); got != test.expected {
			t.Fatalf("ParseFieldType(%q) = %v, want %v", test.raw, got, test.expected)
		}
	}
}

func TestValueEqualAgainstStoredForms(t *testing.T) {
	if !IntValue(4).Equal(float64(4)) {
		t.Fatalf("int value must equal its JSON round-trip")
	}
	if !FloatValue(2.5).Equal(2.5) {
		t.Fatalf("float value must equal stored float")
	}
	if !ListValue([]string{"a", "b"}).Equal([]any{"a", "b"}) {
		t.Fatalf("list value must equal stored []any form")
	}
	if StringValue("low").Equal("high") {
		t.Fatalf("distinct strings must not compare equal")
	}
	if IntValue(4).Equal("4") {
		t.Fatalf("numbers must not silently compare equal to strings")
	}
}
