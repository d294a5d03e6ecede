package storage

import (
	"fmt"
	"math"
	"strings"

	"github.com/Huy0211/DPA01-project/pkg/records"
)

// Logical column types. Backends map them to native types.
const (
	TypeText   = "text"
	TypeBigint = "bigint"
	TypeDouble = "double"
)

// TableSpec describes a table owned by the pipeline.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec describes one column.
//
// Nullable semantics:
//   - nil   => NOT NULL
//   - true  => NULL allowed
//   - false => NOT NULL
type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable *bool  `json:"nullable,omitempty"`
}

// IsNullable reports whether NULL is allowed.
func (c ColumnSpec) IsNullable() bool { return c.Nullable != nil && *c.Nullable }

// ColumnNames returns the column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the table definition before any DDL is rendered.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s: no columns", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("storage: table %s: column %d has no name", t.Name, i)
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("storage: table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[key] = struct{}{}
		switch c.Type {
		case TypeText, TypeBigint, TypeDouble:
		default:
			return fmt.Errorf("storage: table %s: column %s: unsupported type %q", t.Name, c.Name, c.Type)
		}
	}
	return nil
}

func nullable() *bool { v := true; return &v }

// TextTable describes a staging table: every column nullable text.
func TextTable(name string, columns []string) TableSpec {
	t := TableSpec{Name: name, Columns: make([]ColumnSpec, len(columns))}
	for i, c := range columns {
		t.Columns[i] = ColumnSpec{Name: c, Type: TypeText, Nullable: nullable()}
	}
	return t
}

// InferTable derives a TableSpec from a typed batch. A column is bigint when
// every present cell is an integer, double when any is a float, and text
// otherwise. Columns holding a missing cell are nullable.
func InferTable(name string, b records.Batch) TableSpec {
	t := TableSpec{Name: name, Columns: make([]ColumnSpec, len(b.Columns))}
	for i, col := range b.Columns {
		t.Columns[i] = inferColumn(col, b.Column(col))
	}
	return t
}

func inferColumn(name string, values []any) ColumnSpec {
	c := ColumnSpec{Name: name}
	sawInt, sawFloat, sawOther := false, false, false
	for _, v := range values {
		if records.IsMissing(v) {
			c.Nullable = nullable()
			continue
		}
		switch t := v.(type) {
		case int, int8, int16, int32, int64, uint8, uint16, uint32:
			sawInt = true
		case uint:
			// values past int64 are written as text by NormalizeValue
			if uint64(t) > math.MaxInt64 {
				sawOther = true
			} else {
				sawInt = true
			}
		case uint64:
			if t > math.MaxInt64 {
				sawOther = true
			} else {
				sawInt = true
			}
		case float32, float64:
			sawFloat = true
		default:
			sawOther = true
		}
	}
	switch {
	case sawOther || (!sawInt && !sawFloat):
		c.Type = TypeText
	case sawFloat:
		c.Type = TypeDouble
	default:
		c.Type = TypeBigint
	}
	return c
}

// ChunkRows splits rows so each chunk stays under maxParams bind parameters
// and maxRows rows. Non-positive limits are ignored.
func ChunkRows(rows [][]any, ncols, maxParams, maxRows int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if maxParams > 0 && ncols > 0 {
		if n := maxParams / ncols; n < per {
			per = n
		}
	}
	if maxRows > 0 && maxRows < per {
		per = maxRows
	}
	if per < 1 {
		per = 1
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// CheckRows verifies every row has exactly ncols cells.
func CheckRows(table string, ncols int, rows [][]any) error {
	for i, r := range rows {
		if len(r) != ncols {
			return fmt.Errorf("storage: %s: row %d has %d values, want %d", table, i, len(r), ncols)
		}
	}
	return nil
}

// TableData is a table definition plus the rows that replace its contents.
type TableData struct {
	Spec TableSpec
	Rows [][]any
}

// CheckTables validates every spec and row width so a multi-table write can
// fail before it opens a transaction.
func CheckTables(tables []TableData) error {
	if len(tables) == 0 {
		return fmt.Errorf("storage: no tables to write")
	}
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if err := t.Spec.Validate(); err != nil {
			return err
		}
		if seen[t.Spec.Name] {
			return fmt.Errorf("storage: table %s written twice", t.Spec.Name)
		}
		seen[t.Spec.Name] = true
		if err := CheckRows(t.Spec.Name, len(t.Spec.Columns), t.Rows); err != nil {
			return err
		}
	}
	return nil
}
