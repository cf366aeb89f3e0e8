// Package introspect implements the schema introspection boundary for opaque
// queries: asking a target engine which columns a literal query produces,
// without the core ever parsing the query text.
package introspect

import (
	"github.com/jackc/pgx"
	"github.com/pkg/errors"

	"github.com/heronql/heron"
)

// PostgresDescriber asks a Postgres server for the column list of a query by
// running it with LIMIT 0 and reading the row description.
type PostgresDescriber struct {
	Conn *pgx.Conn
}

func NewPostgresDescriber(conn *pgx.Conn) *PostgresDescriber {
	return &PostgresDescriber{Conn: conn}
}

func (d *PostgresDescriber) DescribeColumns(dialectName string, query string) (heron.Schema, error) {
	if dialectName != "postgres" {
		return heron.Schema{}, &heron.SchemaIntrospectionError{
			Dialect: dialectName,
			Query:   query,
			Err:     errors.Errorf("postgres describer can't describe %s queries", dialectName),
		}
	}

	rows, err := d.Conn.Query("SELECT * FROM (" + query + ") describe_source LIMIT 0")
	if err != nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialectName, Query: query, Err: err}
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	fields := make([]heron.SchemaField, len(descriptions))
	for i, description := range descriptions {
		fieldType, err := postgresType(description.DataTypeName)
		if err != nil {
			return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialectName, Query: query, Err: err}
		}
		// A row description carries no nullability, so every column is
		// assumed nullable.
		fields[i] = heron.SchemaField{Name: description.Name, Type: fieldType.AsNullable()}
	}
	schema, err := heron.NewSchema(fields...)
	if err != nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialectName, Query: query, Err: err}
	}
	return schema, nil
}

func postgresType(name string) (heron.Type, error) {
	switch name {
	case "bool":
		return heron.Boolean, nil
	case "int2":
		return heron.Int16, nil
	case "int4":
		return heron.Int32, nil
	case "int8":
		return heron.Int64, nil
	case "float4":
		return heron.Float32, nil
	case "float8":
		return heron.Float64, nil
	case "numeric":
		return heron.Decimal(38, 9), nil
	case "text", "varchar", "bpchar", "name":
		return heron.String, nil
	case "bytea":
		return heron.Binary, nil
	case "date":
		return heron.Date, nil
	case "time":
		return heron.Time, nil
	case "timestamp":
		return heron.Timestamp(heron.UnitMicrosecond, ""), nil
	case "timestamptz":
		return heron.Timestamp(heron.UnitMicrosecond, "UTC"), nil
	case "interval":
		return heron.Interval(heron.UnitMicrosecond), nil
	default:
		return heron.Type{}, errors.Errorf("unsupported postgres type %q", name)
	}
}
