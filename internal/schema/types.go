package schema

import (
	"fmt"
	"strings"
)

// FieldType is the closed set of declared field types. Anything a form
// declares outside this set degrades to TypeString at registry build time.
type FieldType int

const (
	// TypeString holds free text.
	TypeString FieldType = iota
	// TypeFloat holds a decimal number.
	TypeFloat
	// TypeInt holds a whole number.
	TypeInt
	// TypeList holds zero or more strings (multi-select inputs).
	TypeList
	// TypeDate holds a calendar date without a time component.
	TypeDate
)

// String renders the declared-type tag used in form definitions.
func (t FieldType) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeList:
		return "list"
	case TypeDate:
		return "date"
	default:
		return "string"
	}
}

// ParseFieldType maps a declared-type tag onto the closed enum, defaulting
// unrecognized tags to TypeString.
func ParseFieldType(raw string) FieldType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "float":
		return TypeFloat
	case "int", "integer":
		return TypeInt
	case "list":
		return TypeList
	case "date":
		return TypeDate
	default:
		return TypeString
	}
}

// Widget is the UI rendering hint attached to a field.
type Widget string

const (
	// WidgetDefault renders the natural input for the declared type.
	WidgetDefault Widget = ""
	// WidgetCheckbox renders a multi-select; such fields always parse as
	// list-of-string regardless of the declared scalar type.
	WidgetCheckbox Widget = "checkbox"
	// WidgetTextarea renders a multi-line text input.
	WidgetTextarea Widget = "textarea"
)

// ReservedPrefix marks schema-metadata field names. Reserved fields are never
// compiled and never persisted as user fields.
const ReservedPrefix = "_"

// Validator is a named predicate run against a submitted value. Message is
// what an end user sees when Check fails.
type Validator struct {
	Name    string
	Message string
	Check   func(value any) error
}

// FieldSpec declares one form field. Specs are immutable after registry
// construction.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Required   bool
	Widget     Widget
	DenyGroups []string
	Validators []Validator
}

// Reserved reports whether the field is schema metadata.
func (s FieldSpec) Reserved() bool {
	return strings.HasPrefix(s.Name, ReservedPrefix)
}

// DeniedTo reports whether the caller's group is excluded from the field.
func (s FieldSpec) DeniedTo(group string) bool {
	return containsGroup(s.DenyGroups, group)
}

// ApprovalMode selects how a form resolves its approver.
type ApprovalMode int

const (
	// ApprovalNone disables the approval workflow for a form.
	ApprovalNone ApprovalMode = iota
	// ApprovalStatic names a fixed approver.
	ApprovalStatic
	// ApprovalReporterField reads the approver from a field on the
	// reporter's own user record (for example "Supervisor").
	ApprovalReporterField
	// ApprovalGroup routes approval to every member of a group.
	ApprovalGroup
)

// ApprovalPolicy captures a form's approver resolution rule.
type ApprovalPolicy struct {
	Mode          ApprovalMode
	Approver      string
	ReporterField string
	Group         string
}

// FormSchema is the declarative description of one form: its ordered fields
// plus form-level options. Immutable once the registry is built.
type FormSchema struct {
	Name              string
	Fields            []FieldSpec
	ApprovalPolicy    ApprovalPolicy
	SignatureRequired bool
	CaptureClientIP   bool
	DenyGroups        []string
}

// Field returns the spec for name.
func (f FormSchema) Field(name string) (FieldSpec, bool) {
	for _, spec := range f.Fields {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// DeniedTo reports whether the caller's group is excluded from the form.
func (f FormSchema) DeniedTo(group string) bool {
	return containsGroup(f.DenyGroups, group)
}

// SchemaError reports a malformed form definition. It is fatal: the whole
// form is rejected at registry construction.
type SchemaError struct {
	Form   string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: form %q: %s", e.Form, e.Reason)
	}
	return fmt.Sprintf("schema: form %q field %q: %s", e.Form, e.Field, e.Reason)
}

func containsGroup(groups []string, group string) bool {
	if group == "" {
		return false
	}
	for _, candidate := range groups {
		if candidate == group {
			return true
		}
	}
	return false
}
