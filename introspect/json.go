package introspect

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"

	"github.com/heronql/heron"
)

// JSONDescriber parses a JSON column listing of the shape DuckDB's DESCRIBE
// emits: `[{"column_name": ..., "column_type": ..., "null": "YES"}]`. The Run
// callback owns talking to the engine; this type owns the parsing.
type JSONDescriber struct {
	Run func(dialectName string, query string) ([]byte, error)
}

func (d *JSONDescriber) DescribeColumns(dialectName string, query string) (heron.Schema, error) {
	if d.Run == nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{
			Dialect: dialectName,
			Query:   query,
			Err:     errors.New("no describe callback configured"),
		}
	}
	payload, err := d.Run(dialectName, query)
	if err != nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialectName, Query: query, Err: err}
	}

	var parser fastjson.Parser
	root, err := parser.ParseBytes(payload)
	if err != nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{
			Dialect: dialectName,
			Query:   query,
			Err:     errors.Wrap(err, "couldn't parse column listing"),
		}
	}
	columns, err := root.Array()
	if err != nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{
			Dialect: dialectName,
			Query:   query,
			Err:     errors.Wrap(err, "column listing is not an array"),
		}
	}

	fields := make([]heron.SchemaField, 0, len(columns))
	for _, column := range columns {
		name := string(column.GetStringBytes("column_name"))
		if name == "" {
			return heron.Schema{}, &heron.SchemaIntrospectionError{
				Dialect: dialectName,
				Query:   query,
				Err:     errors.New("column entry is missing column_name"),
			}
		}
		typeName := string(column.GetStringBytes("column_type"))
		fieldType, err := engineType(typeName)
		if err != nil {
			return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialectName, Query: query, Err: err}
		}
		if string(column.GetStringBytes("null")) != "NO" {
			fieldType = fieldType.AsNullable()
		}
		fields = append(fields, heron.SchemaField{Name: name, Type: fieldType})
	}
	schema, err := heron.NewSchema(fields...)
	if err != nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialectName, Query: query, Err: err}
	}
	return schema, nil
}

// engineType resolves a type name: first the common SQL spellings, then the
// canonical textual form.
func engineType(name string) (heron.Type, error) {
	switch strings.ToUpper(name) {
	case "BOOLEAN", "BOOL":
		return heron.Boolean, nil
	case "TINYINT":
		return heron.Int8, nil
	case "SMALLINT", "INT2":
		return heron.Int16, nil
	case "INTEGER", "INT", "INT4":
		return heron.Int32, nil
	case "BIGINT", "INT8":
		return heron.Int64, nil
	case "REAL", "FLOAT4":
		return heron.Float32, nil
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8":
		return heron.Float64, nil
	case "VARCHAR", "TEXT", "STRING":
		return heron.String, nil
	case "BLOB", "BYTEA", "VARBINARY":
		return heron.Binary, nil
	case "DATE":
		return heron.Date, nil
	case "TIME":
		return heron.Time, nil
	case "TIMESTAMP":
		return heron.Timestamp(heron.UnitMicrosecond, ""), nil
	case "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ":
		return heron.Timestamp(heron.UnitMicrosecond, "UTC"), nil
	}
	if strings.HasPrefix(strings.ToUpper(name), "DECIMAL") || strings.HasPrefix(strings.ToUpper(name), "NUMERIC") {
		return parseDecimalSuffix(name)
	}
	parsed, err := heron.ParseType(strings.ToLower(name))
	if err != nil {
		return heron.Type{}, errors.Errorf("unsupported engine type %q", name)
	}
	return parsed, nil
}

func parseDecimalSuffix(name string) (heron.Type, error) {
	open := strings.IndexByte(name, '(')
	if open < 0 {
		return heron.Decimal(38, 9), nil
	}
	parsed, err := heron.ParseType("decimal" + name[open:])
	if err != nil {
		return heron.Type{}, errors.Errorf("unsupported engine type %q", name)
	}
	return parsed, nil
}
