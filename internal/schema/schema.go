// Package schema declares the typed table/column shape the rest of
// the core validates column references against (§2 C3, §4.3).
package schema

import (
	"github.com/go-playground/validator/v10"

	"github.com/dosco-labs/relq/internal/codec"
	"github.com/dosco-labs/relq/internal/rerr"
)

var structValidate = validator.New()

// Column is an immutable column declaration. Use the Column
// constructors (Text, Integer, ...) and chain Primary/Unique/Nullable/
// DefaultSQL to build one; each chained call returns a fresh value.
type Column struct {
	Name       string `validate:"required"`
	Codec      codec.Codec
	IsPrimary  bool
	IsUnique   bool
	DefaultSQL string
	IsNullable bool
}

func newColumn(name string, c codec.Codec) Column {
	return Column{Name: name, Codec: c}
}

// Text declares a TEXT column.
func Text(name string) Column { return newColumn(name, codec.Text) }

// Integer declares an INTEGER column.
func Integer(name string) Column { return newColumn(name, codec.Integer) }

// Real declares a REAL column.
func Real(name string) Column { return newColumn(name, codec.Real) }

// Boolean declares a boolean column, stored as INTEGER 0/1.
func Boolean(name string) Column { return newColumn(name, codec.Boolean) }

// Date declares a date column, stored as ISO-8601 TEXT.
func Date(name string) Column { return newColumn(name, codec.Date) }

// JSON declares a JSON column, stored as TEXT.
func JSON(name string) Column { return newColumn(name, codec.JSON) }

// Primary marks the column as (part of) the table's primary key.
func (c Column) Primary() Column {
	c.IsPrimary = true
	return c
}

// Unique adds a UNIQUE constraint to the column.
func (c Column) Unique() Column {
	c.IsUnique = true
	return c
}

// Nullable marks the column nullable and widens its codec accordingly.
func (c Column) Nullable() Column {
	c.IsNullable = true
	c.Codec = c.Codec.AsNullable()
	return c
}

// DefaultSQL attaches a literal SQL default expression to the column.
func (c Column) DefaultSQL(sql string) Column {
	c.DefaultSQL = sql
	return c
}

// Table is a named, ordered collection of columns.
type Table struct {
	Name    string
	Columns []Column
	byName  map[string]int
}

// Declare builds a Table, validating the invariants from spec.md §3:
// unique column names, at least one primary column, no nullable
// primary column. Columns carry no auto-increment flag, so no limit on
// auto-primary columns is checked.
func Declare(name string, columns ...Column) (Table, error) {
	t := Table{Name: name, Columns: columns, byName: make(map[string]int, len(columns))}

	hasPrimary := false
	for i, c := range columns {
		if err := structValidate.Struct(c); err != nil {
			return Table{}, rerr.New(rerr.SchemaError, "table %q column %d: %v", name, i, err)
		}
		if _, dup := t.byName[c.Name]; dup {
			return Table{}, rerr.New(rerr.SchemaError, "table %q: duplicate column %q", name, c.Name)
		}
		if c.IsPrimary && c.IsNullable {
			return Table{}, rerr.New(rerr.SchemaError, "table %q: primary column %q cannot be nullable", name, c.Name)
		}
		t.byName[c.Name] = i
		if c.IsPrimary {
			hasPrimary = true
		}
	}
	if !hasPrimary {
		return Table{}, rerr.New(rerr.SchemaError, "table %q: no primary column declared", name)
	}
	return t, nil
}

// DeclareMany builds several tables at once from a name->columns map,
// returning them sorted by the order they're listed in names.
func DeclareMany(names []string, columnSets map[string][]Column) ([]Table, error) {
	tables := make([]Table, 0, len(names))
	for _, n := range names {
		t, err := Declare(n, columnSets[n]...)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// PrimaryColumns returns the table's primary-key columns, in
// declaration order.
func (t Table) PrimaryColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.IsPrimary {
			out = append(out, c)
		}
	}
	return out
}

// Schema is an ordered mapping of table name to Table.
type Schema struct {
	Tables []Table
	byName map[string]int
}

// NewSchema builds a Schema, validating that table names are unique.
func NewSchema(tables ...Table) (Schema, error) {
	s := Schema{Tables: tables, byName: make(map[string]int, len(tables))}
	for i, t := range tables {
		if _, dup := s.byName[t.Name]; dup {
			return Schema{}, rerr.New(rerr.SchemaError, "schema: duplicate table %q", t.Name)
		}
		s.byName[t.Name] = i
	}
	return s, nil
}

// Table looks up a table by name.
func (s Schema) Table(name string) (Table, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Table{}, false
	}
	return s.Tables[i], true
}
