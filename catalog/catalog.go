// Package catalog loads external table declarations from YAML and turns them
// into table nodes.
package catalog

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/heronql/heron"
	"github.com/heronql/heron/ir"
)

type columnDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type tableDecl struct {
	Name    string       `yaml:"name"`
	Columns []columnDecl `yaml:"columns"`
}

type catalogDecl struct {
	Tables []tableDecl `yaml:"tables"`
}

// Catalog maps declared table names to their schemas.
type Catalog struct {
	tables map[string]heron.Schema
}

// Load reads a catalog declaration from a YAML file.
func Load(path string) (*Catalog, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read catalog file %s", path)
	}
	catalog, err := Parse(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't parse catalog file %s", path)
	}
	return catalog, nil
}

// Parse reads a catalog declaration from YAML text.
func Parse(payload []byte) (*Catalog, error) {
	var decl catalogDecl
	if err := yaml.Unmarshal(payload, &decl); err != nil {
		return nil, errors.Wrap(err, "couldn't unmarshal catalog declaration")
	}

	tables := make(map[string]heron.Schema, len(decl.Tables))
	for _, table := range decl.Tables {
		if table.Name == "" {
			return nil, errors.New("table declaration is missing a name")
		}
		if _, ok := tables[table.Name]; ok {
			return nil, errors.Errorf("table %q is declared twice", table.Name)
		}
		fields := make([]heron.SchemaField, len(table.Columns))
		for i, column := range table.Columns {
			columnType, err := heron.ParseType(column.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "couldn't parse type of column %q of table %q", column.Name, table.Name)
			}
			fields[i] = heron.SchemaField{Name: column.Name, Type: columnType}
		}
		schema, err := heron.NewSchema(fields...)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't build schema of table %q", table.Name)
		}
		tables[table.Name] = schema
	}
	return &Catalog{tables: tables}, nil
}

// Table builds the interned table node for a declared table.
func (c *Catalog) Table(b *ir.Builder, name string) (*ir.Node, error) {
	schema, ok := c.tables[name]
	if !ok {
		return nil, errors.Errorf("table %q is not declared in the catalog", name)
	}
	return b.Table(name, schema)
}

// Schema returns the declared schema of a table.
func (c *Catalog) Schema(name string) (heron.Schema, bool) {
	schema, ok := c.tables[name]
	return schema, ok
}

// Names lists the declared tables in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.tables))
	for name := range c.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
