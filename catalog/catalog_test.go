package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heronql/heron"
	"github.com/heronql/heron/catalog"
	"github.com/heronql/heron/ir"
)

const declaration = `tables:
  - name: users
    columns:
      - name: id
        type: int64
      - name: name
        type: string?
      - name: age
        type: int32
  - name: orders
    columns:
      - name: order_id
        type: int64
      - name: amount
        type: decimal(10, 2)
`

func TestParse(t *testing.T) {
	c, err := catalog.Parse([]byte(declaration))
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "users"}, c.Names())

	schema, ok := c.Schema("users")
	require.True(t, ok)
	require.Equal(t, "{id: int64, name: string?, age: int32}", schema.String())

	_, ok = c.Schema("missing")
	require.False(t, ok)

	b := ir.NewBuilder()
	users, err := c.Table(b, "users")
	require.NoError(t, err)
	require.Equal(t, ir.NodeTypeTable, users.NodeType)
	require.Equal(t, "users", users.Table.Name)
	require.True(t, heron.String.AsNullable().Equal(users.Schema.Fields[1].Type))

	_, err = c.Table(b, "missing")
	require.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	for name, payload := range map[string]string{
		"not yaml":     "tables: [",
		"missing name": "tables:\n  - columns:\n      - name: id\n        type: int64\n",
		"bad type":     "tables:\n  - name: t\n    columns:\n      - name: id\n        type: wat\n",
		"duplicate table": "tables:\n" +
			"  - name: t\n    columns:\n      - name: id\n        type: int64\n" +
			"  - name: t\n    columns:\n      - name: id\n        type: int64\n",
		"duplicate column": "tables:\n" +
			"  - name: t\n    columns:\n" +
			"      - name: id\n        type: int64\n" +
			"      - name: id\n        type: string\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(payload))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(declaration), 0644))

	c, err := catalog.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "users"}, c.Names())

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
