package heron

import (
	"fmt"
	"strings"
)

// Schema is the ordered column list of a relation. Names are unique within a
// schema; order is significant for positional operations, lookups are by name.
type Schema struct {
	Fields []SchemaField
}

type SchemaField struct {
	Name string
	Type Type
}

// NewSchema builds a schema, rejecting duplicate column names.
func NewSchema(fields ...SchemaField) (Schema, error) {
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if seen[field.Name] {
			return Schema{}, &SchemaError{Column: field.Name, Reason: "duplicate column name"}
		}
		seen[field.Name] = true
	}
	return Schema{Fields: fields}, nil
}

// FieldIndex returns the position of the named column, or -1.
func (s Schema) FieldIndex(name string) int {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Field(name string) (SchemaField, bool) {
	i := s.FieldIndex(name)
	if i < 0 {
		return SchemaField{}, false
	}
	return s.Fields[i], true
}

func (s Schema) Equal(other Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i].Name != other.Fields[i].Name {
			return false
		}
		if !s.Fields[i].Type.Equal(other.Fields[i].Type) {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	fieldStrings := make([]string, len(s.Fields))
	for i, field := range s.Fields {
		fieldStrings[i] = fmt.Sprintf("%s: %s", field.Name, field.Type)
	}
	return fmt.Sprintf("{%s}", strings.Join(fieldStrings, ", "))
}
