package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one row of a query result.
//
// Cursor is the opaque keyset position of the record within the ordering
// that produced it. Only cursor-paginated sources set it.
type Record struct {
	Fields IRObject `json:"fields"`
	Cursor string   `json:"cursor,omitempty"`
}

// NewRecord wraps fields in a Record with no cursor.
func NewRecord(pairs ...IRPair) Record {
	return Record{Fields: NewIRObject(pairs...)}
}

// Get returns the value of field name, or IRNull when it is absent.
func (r Record) Get(name string) IRValue {
	if v, ok := r.Fields[name]; ok && v != nil {
		return v
	}
	return IRNull{}
}

// Key is an ordered primary-key tuple. Single-field keys have length one.
type Key []IRValue

// KeyOf extracts the primary key of r for the given key fields.
// A record missing any key field has no identity and is an error.
func KeyOf(r Record, fields []string) (Key, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no primary key fields")
	}
	k := make(Key, len(fields))
	for i, f := range fields {
		v, ok := r.Fields[f]
		if !ok || v == nil {
			return nil, fmt.Errorf("record has no primary key field %q", f)
		}
		k[i] = v
	}
	return k, nil
}

// Compare orders keys element-wise using the IRValue total order.
func (k Key) Compare(other Key) int {
	return Compare(IRArray(k), IRArray(other))
}

// Equal reports whether two keys identify the same record.
func (k Key) Equal(other Key) bool {
	return k.Compare(other) == 0
}

// String is the canonical encoding of the key, suitable as a map index.
func (k Key) String() string {
	b, err := MarshalCanonical(IRArray(k))
	if err != nil {
		// Only unsupported Go types fail; keys hold IRValues.
		return fmt.Sprintf("%v", []IRValue(k))
	}
	return string(b)
}

// IDs renders the key of every record for diagnostics and scenario checks.
// A single-field key renders as its bare value, composite keys as a tuple.
func IDs(records []Record, fields []string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		k, err := KeyOf(r, fields)
		if err != nil {
			out = append(out, "?")
			continue
		}
		out = append(out, k.Display())
	}
	return out
}

// Display renders the key for humans: bare strings and ints for single
// keys, comma-joined parts for composites.
func (k Key) Display() string {
	parts := make([]string, len(k))
	for i, v := range k {
		switch val := v.(type) {
		case IRString:
			parts[i] = string(val)
		default:
			b, err := json.Marshal(ToGo(val))
			if err != nil {
				parts[i] = "?"
				continue
			}
			parts[i] = string(b)
		}
	}
	return strings.Join(parts, ",")
}
