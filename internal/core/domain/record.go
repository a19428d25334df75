package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field is one named value of a flat record.
type Field struct {
	Name   string
	Value  any  // string, int64, float64, bool or nil
	Opaque bool // Value is a JSON-encoded list or object
}

// Record is a flat row destined for one table. It is built once and never
// mutated afterwards.
type Record struct {
	table  string
	fields []Field
	index  map[string]int
}

// NewRecord builds a record for table from fields, in the given order.
func NewRecord(table string, fields ...Field) Record {
	r := Record{
		table:  table,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(r.fields, fields)
	for i, f := range r.fields {
		r.index[f.Name] = i
	}
	return r
}

// Table is the name of the table this record belongs to.
func (r Record) Table() string {
	return r.table
}

// Columns returns the field names in order.
func (r Record) Columns() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Values returns the field values in column order.
func (r Record) Values() []any {
	vals := make([]any, len(r.fields))
	for i, f := range r.fields {
		vals[i] = f.Value
	}
	return vals
}

// Value returns the value of the named field.
func (r Record) Value(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// String returns the named field as a string, or "" when it is absent or not a string.
func (r Record) String(name string) string {
	v, _ := r.Value(name)
	s, _ := v.(string)
	return s
}

// IsOpaque reports whether the named field holds JSON-encoded structure.
func (r Record) IsOpaque(name string) bool {
	i, ok := r.index[name]
	return ok && r.fields[i].Opaque
}

// Decode unmarshals an opaque field into v.
func (r Record) Decode(name string, v any) error {
	i, ok := r.index[name]
	if !ok {
		return fmt.Errorf("domain: record has no field %q", name)
	}
	f := r.fields[i]
	if !f.Opaque {
		return fmt.Errorf("domain: field %q is not opaque", name)
	}
	s, ok := f.Value.(string)
	if !ok {
		return fmt.Errorf("domain: field %q has no encoded value", name)
	}
	return json.Unmarshal([]byte(s), v)
}

// SameShape reports whether r and other have identical column lists.
func (r Record) SameShape(other Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Name != other.fields[i].Name {
			return false
		}
	}
	return true
}

// KeySeparator sits between the values joined by Record.Key.
const KeySeparator = "\x1f"

// Key joins the values of the given columns, for de-duplication by primary
// key. Strings are used as is and NULL is empty, so keys built from the text
// cells of an exported row match.
func (r Record) Key(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		v, _ := r.Value(c)
		if v != nil {
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, KeySeparator)
}
