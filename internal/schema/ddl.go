package schema

import (
	"fmt"
	"strings"
)

// DDLOptions controls CREATE TABLE emission (§4.3).
type DDLOptions struct {
	IfNotExists bool
	Strict      bool
}

// quoteIdentifier double-quotes a SQLite identifier, matching the
// teacher's sqliteDialect.QuoteIdentifier.
func quoteIdentifier(s string) string {
	return `"` + s + `"`
}

// columnTypeSQL maps a codec name to its SQLite storage class, per
// §4.3's "Column type mapping".
func columnTypeSQL(codecName string) string {
	switch codecName {
	case "integer":
		return "INTEGER"
	case "real":
		return "REAL"
	case "boolean":
		return "INTEGER"
	case "date":
		return "TEXT"
	case "json":
		return "TEXT"
	default:
		return "TEXT"
	}
}

// DDL emits one CREATE TABLE statement per table, in declaration
// order. Primary-key clauses are inline for a single primary column,
// or a trailing composite PRIMARY KEY(...) clause for more than one.
func (s Schema) DDL(opts DDLOptions) []string {
	out := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, t.createTableSQL(opts))
	}
	return out
}

func (t Table) createTableSQL(opts DDLOptions) string {
	primaries := t.PrimaryColumns()
	composite := len(primaries) > 1

	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, c.columnDefSQL(composite))
	}
	if composite {
		names := make([]string, len(primaries))
		for i, p := range primaries {
			names[i] = quoteIdentifier(p.Name)
		}
		cols = append(cols, fmt.Sprintf("  PRIMARY KEY(%s)", strings.Join(names, ", ")))
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if opts.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(quoteIdentifier(t.Name))
	b.WriteString(" (\n")
	b.WriteString(strings.Join(cols, ",\n"))
	b.WriteString("\n)")
	if opts.Strict {
		b.WriteString(" STRICT")
	}
	b.WriteString(";")
	return b.String()
}

func (c Column) columnDefSQL(skipInlinePrimary bool) string {
	def := fmt.Sprintf("  %s %s", quoteIdentifier(c.Name), columnTypeSQL(c.Codec.Name))
	if c.IsPrimary && !skipInlinePrimary {
		def += " PRIMARY KEY"
	}
	if c.IsUnique {
		def += " UNIQUE"
	}
	if !c.IsNullable && !c.IsPrimary {
		def += " NOT NULL"
	}
	if c.DefaultSQL != "" {
		def += " DEFAULT " + c.DefaultSQL
	}
	return def
}

// AddColumn emits an ALTER TABLE ... ADD COLUMN statement.
func (t Table) AddColumn(c Column) string {
	def := columnTypeSQL(c.Codec.Name)
	if !c.IsNullable {
		def += " NOT NULL"
	}
	if c.DefaultSQL != "" {
		def += " DEFAULT " + c.DefaultSQL
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;",
		quoteIdentifier(t.Name), quoteIdentifier(c.Name), def)
}

// DropColumn emits an ALTER TABLE ... DROP COLUMN statement.
func (t Table) DropColumn(columnName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;",
		quoteIdentifier(t.Name), quoteIdentifier(columnName))
}

// DropTable emits a DROP TABLE statement.
func (t Table) DropTable() string {
	return fmt.Sprintf("DROP TABLE %s;", quoteIdentifier(t.Name))
}

// CreateIndex emits a CREATE INDEX statement over a single column.
func (t Table) CreateIndex(columnName string) string {
	idxName := fmt.Sprintf("idx_%s_%s", t.Name, columnName)
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s);",
		quoteIdentifier(idxName), quoteIdentifier(t.Name), quoteIdentifier(columnName))
}

// CreateUniqueIndex emits a CREATE UNIQUE INDEX statement over a single column.
func (t Table) CreateUniqueIndex(columnName string) string {
	idxName := fmt.Sprintf("idx_%s_%s_unique", t.Name, columnName)
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s);",
		quoteIdentifier(idxName), quoteIdentifier(t.Name), quoteIdentifier(columnName))
}
