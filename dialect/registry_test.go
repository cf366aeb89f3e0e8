package dialect_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/heronql/heron"
	"github.com/heronql/heron/dialect"
)

func TestDefaultRegistry(t *testing.T) {
	registry := dialect.Default()
	require.Equal(t, []string{"bigquery", "clickhouse", "duckdb", "mysql", "postgres", "sqlite"}, registry.Names())

	postgres, err := registry.Get("postgres")
	require.NoError(t, err)
	require.Equal(t, "postgres", postgres.Name)

	_, err = registry.Get("oracle")
	var unknown *heron.UnknownDialectError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "oracle", unknown.Name)
}

func TestRegisterReplaces(t *testing.T) {
	registry := dialect.NewRegistry(dialect.Postgres())
	custom := dialect.Postgres()
	custom.QuoteChar = '`'
	registry.Register(custom)

	got, err := registry.Get("postgres")
	require.NoError(t, err)
	require.Same(t, custom, got)
	require.Equal(t, []string{"postgres"}, registry.Names())
}

func TestFunctionName(t *testing.T) {
	postgres := dialect.Postgres()
	require.Equal(t, "log", postgres.FunctionName("log10"))
	require.Equal(t, "abs", postgres.FunctionName("abs"))

	sqlite := dialect.SQLite()
	require.Equal(t, "ceiling", sqlite.FunctionName("ceil"))
}
