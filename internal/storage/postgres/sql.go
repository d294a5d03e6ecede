package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Huy0211/DPA01-project/internal/storage"
)

// pgIdent quotes an identifier, doubling embedded quotes.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// pgTableIdent quotes a possibly schema-qualified table name.
//
//	"public.raw_data" -> "public"."raw_data"
func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

// splitQualifiedName splits "schema.table". Anything other than exactly one
// dot is treated as an unqualified name.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func pgType(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "TEXT", nil
	case storage.TypeBigint:
		return "BIGINT", nil
	case storage.TypeDouble:
		return "DOUBLE PRECISION", nil
	}
	return "", fmt.Errorf("postgres: unsupported column type %q", logical)
}

// buildColumnDef renders "<col> <type> [NOT NULL]".
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	typ, err := pgType(c.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", c.Name, err)
	}
	def := pgIdent(c.Name) + " " + typ
	if !c.IsNullable() {
		def += " NOT NULL"
	}
	return def, nil
}

// buildReplaceSQL returns the statements that recreate spec from scratch:
// an optional CREATE SCHEMA, DROP TABLE IF EXISTS and CREATE TABLE.
func buildReplaceSQL(spec storage.TableSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", spec.Name, err)
		}
		defs = append(defs, def)
	}

	var stmts []string
	if schema, _ := splitQualifiedName(spec.Name); schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schema)+";")
	}
	table := pgTableIdent(spec.Name)
	stmts = append(stmts,
		"DROP TABLE IF EXISTS "+table+";",
		"CREATE TABLE "+table+" ("+strings.Join(defs, ", ")+");",
	)
	return stmts, nil
}

// buildInsertSQL constructs one multi-row INSERT and its args. It is pure so
// placeholder numbering can be tested without a database.
//
// Constraints:
//   - columns is non-empty and every row has len(columns) cells.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(p))
			args = append(args, storage.DBValue(row[j]))
			p++
		}
		b.WriteByte(')')
	}
	b.WriteByte(';')
	return b.String(), args
}

func buildSelectSQL(table string) string {
	return "SELECT * FROM " + pgTableIdent(table) + ";"
}
