package schema

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format for date-typed values.
const DateLayout = "2006-01-02"

// Value is a typed field value produced by a compiled parser. It is a tagged
// union over the five declared types; the zero Value is an empty string.
type Value struct {
	kind    FieldType
	str     string
	num     float64
	integer int64
	list    []string
	date    time.Time
}

// StringValue wraps free text.
func StringValue(v string) Value {
	return Value{kind: TypeString, str: v}
}

// FloatValue wraps a decimal number.
func FloatValue(v float64) Value {
	return Value{kind: TypeFloat, num: v}
}

// IntValue wraps a whole number.
func IntValue(v int64) Value {
	return Value{kind: TypeInt, integer: v}
}

// ListValue wraps a multi-valued submission.
func ListValue(v []string) Value {
	list := make([]string, len(v))
	copy(list, v)
	return Value{kind: TypeList, list: list}
}

// DateValue wraps a calendar date.
func DateValue(v time.Time) Value {
	return Value{kind: TypeDate, date: v}
}

// Kind returns the declared type the value was parsed as.
func (v Value) Kind() FieldType {
	return v.kind
}

// Native returns the JSON-stable representation used inside stored
// documents: string, float64, int64, []string, or a DateLayout string.
func (v Value) Native() any {
	switch v.kind {
	case TypeFloat:
		return v.num
	case TypeInt:
		return v.integer
	case TypeList:
		list := make([]string, len(v.list))
		copy(list, v.list)
		return list
	case TypeDate:
		return v.date.Format(DateLayout)
	default:
		return v.str
	}
}

// MarshalJSON renders the value in its native JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// Equal compares the typed value against a stored counterpart that has been
// round-tripped through JSON, where numbers come back as float64 and lists
// as []any. Used for changed-value detection on modify.
func (v Value) Equal(stored any) bool {
	switch v.kind {
	case TypeFloat:
		number, ok := toFloat(stored)
		return ok && number == v.num
	case TypeInt:
		number, ok := toFloat(stored)
		return ok && number == float64(v.integer)
	case TypeList:
		list, ok := toStringList(stored)
		if !ok || len(list) != len(v.list) {
			return false
		}
		for i := range list {
			if list[i] != v.list[i] {
				return false
			}
		}
		return true
	case TypeDate:
		text, ok := stored.(string)
		return ok && text == v.date.Format(DateLayout)
	default:
		text, ok := stored.(string)
		return ok && text == v.str
	}
}

func toFloat(raw any) (float64, bool) {
	switch number := raw.(type) {
	case float64:
		return number, true
	case float32:
		return float64(number), true
	case int:
		return float64(number), true
	case int64:
		return float64(number), true
	case json.Number:
		value, err := number.Float64()
		return value, err == nil
	default:
		return 0, false
	}
}

func toStringList(raw any) ([]string, bool) {
	switch list := raw.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, element := range list {
			text, ok := element.(string)
			if !ok {
				return nil, false
			}
			out = append(out, text)
		}
		return out, true
	default:
		return nil, false
	}
}
