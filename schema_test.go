package heron

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewSchemaRejectsDuplicates(t *testing.T) {
	_, err := NewSchema(
		SchemaField{Name: "id", Type: Int64},
		SchemaField{Name: "id", Type: String},
	)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Equal(t, "id", schemaErr.Column)
}

func TestSchemaLookup(t *testing.T) {
	schema, err := NewSchema(
		SchemaField{Name: "id", Type: Int64},
		SchemaField{Name: "name", Type: String},
	)
	require.NoError(t, err)

	require.Equal(t, 1, schema.FieldIndex("name"))
	require.Equal(t, -1, schema.FieldIndex("missing"))

	field, ok := schema.Field("id")
	require.True(t, ok)
	require.True(t, Int64.Equal(field.Type))

	_, ok = schema.Field("missing")
	require.False(t, ok)
}

func TestSchemaEqualAndString(t *testing.T) {
	a, err := NewSchema(
		SchemaField{Name: "id", Type: Int64},
		SchemaField{Name: "name", Type: String.AsNullable()},
	)
	require.NoError(t, err)
	b, err := NewSchema(
		SchemaField{Name: "id", Type: Int64},
		SchemaField{Name: "name", Type: String.AsNullable()},
	)
	require.NoError(t, err)
	require.True(t, a.Equal(b))
	require.Equal(t, "{id: int64, name: string?}", a.String())

	c, err := NewSchema(SchemaField{Name: "id", Type: Int32})
	require.NoError(t, err)
	require.False(t, a.Equal(c))
}
