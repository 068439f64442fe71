package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError reports a single field failing its type, required, or
// predicate checks. It is an expected outcome, surfaced per-field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// FieldParser converts untyped submitted input for one field into a typed
// Value, or rejects it. Parsers never coerce silently.
type FieldParser struct {
	Spec  FieldSpec
	parse func(raw []string) (Value, error)
}

// Parse runs the compiled conversion for the field.
func (p FieldParser) Parse(raw []string) (Value, error) {
	return p.parse(raw)
}

// Compile produces one typed parser per submitted field. Reserved fields and
// fields whose deny-list contains the caller's group are always excluded;
// submitted names the form does not declare are ignored.
func Compile(form FormSchema, callerGroup string, submitted []string) []FieldParser {
	parsers := make([]FieldParser, 0, len(submitted))
	for _, name := range submitted {
		spec, ok := form.Field(name)
		if !ok {
			continue
		}
		if spec.Reserved() || spec.DeniedTo(callerGroup) {
			continue
		}
		parsers = append(parsers, FieldParser{Spec: spec, parse: parserFor(spec)})
	}
	return parsers
}

// ParseSubmission compiles and runs parsers for the whole raw submission,
// returning typed values keyed by field name. Required fields that are
// missing, malformed values, and failing validator predicates all reject the
// submission with a ValidationError naming the field.
func ParseSubmission(form FormSchema, callerGroup string, raw map[string][]string) (map[string]Value, error) {
	submitted := make([]string, 0, len(raw))
	for name := range raw {
		submitted = append(submitted, name)
	}

	values := make(map[string]Value, len(raw))
	for _, parser := range Compile(form, callerGroup, submitted) {
		// Optional fields submitted empty (blank inputs on a full form
		// post) simply contribute no value.
		if !parser.Spec.Required && !hasContent(raw[parser.Spec.Name]) {
			continue
		}
		value, err := parser.Parse(raw[parser.Spec.Name])
		if err != nil {
			return nil, err
		}
		if result := Lint(parser.Spec, value.Native()); !result.OK {
			return nil, newValidationError(parser.Spec.Name, "%s", result.Message)
		}
		values[parser.Spec.Name] = value
	}

	for _, spec := range form.Fields {
		if !spec.Required || spec.Reserved() || spec.DeniedTo(callerGroup) {
			continue
		}
		if _, present := values[spec.Name]; !present {
			return nil, newValidationError(spec.Name, "required field is missing")
		}
	}
	return values, nil
}

func parserFor(spec FieldSpec) func(raw []string) (Value, error) {
	// Multi-select widgets tolerate multi-valued submission regardless of
	// the declared scalar type.
	if spec.Widget == WidgetCheckbox {
		return listParser(spec)
	}
	switch spec.Type {
	case TypeFloat:
		return scalarParser(spec, func(text string) (Value, error) {
			number, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return Value{}, newValidationError(spec.Name, "not a decimal number: %q", text)
			}
			return FloatValue(number), nil
		})
	case TypeInt:
		return scalarParser(spec, func(text string) (Value, error) {
			number, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return Value{}, newValidationError(spec.Name, "not a whole number: %q", text)
			}
			return IntValue(number), nil
		})
	case TypeList:
		return listParser(spec)
	case TypeDate:
		return scalarParser(spec, func(text string) (Value, error) {
			date, err := time.Parse(DateLayout, text)
			if err != nil {
				return Value{}, newValidationError(spec.Name, "not a date (want %s): %q", DateLayout, text)
			}
			return DateValue(date), nil
		})
	default:
		return scalarParser(spec, func(text string) (Value, error) {
			return StringValue(text), nil
		})
	}
}

func scalarParser(spec FieldSpec, convert func(text string) (Value, error)) func(raw []string) (Value, error) {
	return func(raw []string) (Value, error) {
		text := firstValue(raw)
		if text == "" {
			if spec.Required {
				return Value{}, newValidationError(spec.Name, "required field is empty")
			}
			if spec.Type == TypeString {
				return StringValue(""), nil
			}
			return Value{}, newValidationError(spec.Name, "empty value for %s field", spec.Type)
		}
		return convert(text)
	}
}

func listParser(spec FieldSpec) func(raw []string) (Value, error) {
	return func(raw []string) (Value, error) {
		values := make([]string, 0, len(raw))
		for _, element := range raw {
			if trimmed := strings.TrimSpace(element); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		if spec.Required && len(values) == 0 {
			return Value{}, newValidationError(spec.Name, "required field is empty")
		}
		return ListValue(values), nil
	}
}

func hasContent(raw []string) bool {
	return firstValue(raw) != ""
}

func firstValue(raw []string) string {
	for _, element := range raw {
		if trimmed := strings.TrimSpace(element); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
