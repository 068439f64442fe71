package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldMap is one journal entry's payload: either the full baseline snapshot
// (first entry) or the changed-only diff (every later entry).
type FieldMap = map[string]any

// Journal is the append-only edit history of a document: an ordered map from
// timestamp string to FieldMap. Replay correctness depends on temporal
// (insertion) order, never on a lexical key sort, so the order is carried
// explicitly alongside the entries.
type Journal struct {
	order   []string
	entries map[string]FieldMap
}

// Append records an entry under the write's timestamp. A repeated timestamp
// replaces the existing entry without growing the order.
func (j *Journal) Append(timestamp string, fields FieldMap) {
	if j.entries == nil {
		j.entries = map[string]FieldMap{}
	}
	if _, exists := j.entries[timestamp]; !exists {
		j.order = append(j.order, timestamp)
	}
	j.entries[timestamp] = fields
}

// Len returns the number of recorded entries.
func (j Journal) Len() int {
	return len(j.order)
}

// Timestamps returns the entry keys in temporal order.
func (j Journal) Timestamps() []string {
	order := make([]string, len(j.order))
	copy(order, j.order)
	return order
}

// Entry returns the payload recorded at timestamp.
func (j Journal) Entry(timestamp string) (FieldMap, bool) {
	fields, ok := j.entries[timestamp]
	return fields, ok
}

// MarshalJSON writes the journal as a plain JSON object with entries in
// temporal order, matching the persisted record layout.
func (j Journal) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, timestamp := range j.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(timestamp)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(j.entries[timestamp])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON re-derives insertion order from the raw token stream instead
// of decoding into an unordered map.
func (j *Journal) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	opening, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := opening.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("journal: expected object, got %v", opening)
	}

	j.order = nil
	j.entries = map[string]FieldMap{}
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		timestamp, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("journal: expected string key, got %v", keyToken)
		}
		entry := FieldMap{}
		if err := decoder.Decode(&entry); err != nil {
			return err
		}
		j.Append(timestamp, normalizeFieldMap(entry))
	}

	if _, err := decoder.Token(); err != nil {
		return err
	}
	return nil
}

// normalizeFieldMap converts json.Number values (from UseNumber decoding)
// back into float64 so entries compare like any other decoded document.
func normalizeFieldMap(entry FieldMap) FieldMap {
	for name, value := range entry {
		entry[name] = normalizeValue(value)
	}
	return entry
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case json.Number:
		number, err := typed.Float64()
		if err != nil {
			return typed.String()
		}
		return number
	case []any:
		for i, element := range typed {
			typed[i] = normalizeValue(element)
		}
		return typed
	case map[string]any:
		return normalizeFieldMap(typed)
	default:
		return value
	}
}
