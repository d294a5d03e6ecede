// Package records holds the tabular batch model shared by the pipeline steps.
package records

import "math"

// Record is one row keyed by column name.
type Record map[string]any

// MissingValue marks a cell whose value is absent.
type MissingValue struct{}

func (MissingValue) String() string { return "<missing>" }

// Missing is the explicit missing-cell marker produced by normalization.
var Missing = MissingValue{}

// IsMissing reports whether v is absent: nil, the Missing marker or a float NaN.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case MissingValue:
		return true
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	default:
		return false
	}
}

// Batch is an ordered set of rows sharing one column set.
//
// Every row carries every column in Columns; readers may rely on it.
type Batch struct {
	Columns []string
	Rows    []Record
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

// HasColumn reports whether name is one of the batch columns.
func (b Batch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order.
// Rows lacking the key yield Missing.
func (b Batch) Column(name string) []any {
	out := make([]any, len(b.Rows))
	for i, r := range b.Rows {
		v, ok := r[name]
		if !ok {
			v = Missing
		}
		out[i] = v
	}
	return out
}

// Clone returns a deep copy of the column list and row maps.
// Cell values are copied by assignment.
func (b Batch) Clone() Batch {
	out := Batch{
		Columns: append([]string(nil), b.Columns...),
		Rows:    make([]Record, len(b.Rows)),
	}
	for i, r := range b.Rows {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// FromRows builds a batch from positional rows aligned to columns.
// Short rows are padded with Missing.
func FromRows(columns []string, rows [][]any) Batch {
	b := Batch{
		Columns: append([]string(nil), columns...),
		Rows:    make([]Record, 0, len(rows)),
	}
	for _, row := range rows {
		r := make(Record, len(columns))
		for i, c := range columns {
			if i < len(row) {
				r[c] = row[i]
			} else {
				r[c] = Missing
			}
		}
		b.Rows = append(b.Rows, r)
	}
	return b
}

// Matrix returns rows as positional slices aligned to Columns.
func (b Batch) Matrix() [][]any {
	out := make([][]any, len(b.Rows))
	for i, r := range b.Rows {
		row := make([]any, len(b.Columns))
		for j, c := range b.Columns {
			row[j] = r[c]
		}
		out[i] = row
	}
	return out
}
