package transformer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Huy0211/DPA01-project/internal/metrics"
	"github.com/Huy0211/DPA01-project/internal/schema"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

var (
	// ErrNotValidated is returned when Encode gets a token that did not come
	// from a successful schema.Validate.
	ErrNotValidated = errors.New("encode: batch has not passed validation")

	// ErrMixedColumn marks a column holding both text and numbers.
	ErrMixedColumn = errors.New("encode: column mixes text and numeric values")

	// ErrMissingCell marks a missing value that survived into a validated batch.
	ErrMissingCell = errors.New("encode: missing value in column")
)

// Encoding is the label table for one categorical column. Labels are sorted
// lexicographically and a label's code is its index.
type Encoding struct {
	Column string
	Labels []string
}

// Code returns the code for label.
func (e Encoding) Code(label string) (int64, bool) {
	i := sort.SearchStrings(e.Labels, label)
	if i < len(e.Labels) && e.Labels[i] == label {
		return int64(i), true
	}
	return 0, false
}

// Label returns the label behind code.
func (e Encoding) Label(code int64) (string, bool) {
	if code < 0 || code >= int64(len(e.Labels)) {
		return "", false
	}
	return e.Labels[code], true
}

// Map returns label -> code.
func (e Encoding) Map() map[string]int64 {
	m := make(map[string]int64, len(e.Labels))
	for i, l := range e.Labels {
		m[l] = int64(i)
	}
	return m
}

// Encodings holds one Encoding per categorical column.
type Encodings map[string]Encoding

// Columns returns the encoded column names in sorted order.
func (es Encodings) Columns() []string {
	out := make([]string, 0, len(es))
	for c := range es {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Decode maps a code of column back to its label.
func (es Encodings) Decode(column string, code int64) (string, bool) {
	e, ok := es[column]
	if !ok {
		return "", false
	}
	return e.Label(code)
}

// Rows flattens the encodings into (column, label, code) triples ordered by
// column then code, which is the layout of the encodings table.
func (es Encodings) Rows() [][]any {
	var out [][]any
	for _, c := range es.Columns() {
		for i, l := range es[c].Labels {
			out = append(out, []any{c, l, int64(i)})
		}
	}
	return out
}

type columnKind int

const (
	kindNumeric columnKind = iota
	kindText
)

// Encode replaces every text column of a validated batch with int64 codes.
//
// When to use: after schema.Validate succeeded; the token is the only input.
//
// Edge cases:
//   - Columns with no rows are left alone and get no Encoding.
//   - Numeric columns pass through unchanged.
//   - Labels are sorted, so the same set of labels always gets the same codes.
//
// Errors:
//   - ErrNotValidated for a zero or failed token.
//   - ErrMixedColumn or ErrMissingCell for columns that cannot be typed.
func Encode(v schema.Validated) (records.Batch, Encodings, error) {
	if !v.OK() {
		return records.Batch{}, nil, ErrNotValidated
	}

	b := v.Batch()
	enc := Encodings{}
	for _, col := range b.Columns {
		kind, err := kindOf(b, col)
		if err != nil {
			return records.Batch{}, nil, err
		}
		if kind != kindText {
			continue
		}

		e := Encoding{Column: col, Labels: distinctLabels(b, col)}
		for _, r := range b.Rows {
			code, _ := e.Code(r[col].(string))
			r[col] = code
		}
		enc[col] = e
	}

	metrics.AddRecords("encoded", b.Len())
	return b, enc, nil
}

func kindOf(b records.Batch, col string) (columnKind, error) {
	if b.Len() == 0 {
		return kindNumeric, nil
	}
	var sawText, sawNumber bool
	for i, r := range b.Rows {
		v, ok := r[col]
		if !ok || records.IsMissing(v) {
			return 0, fmt.Errorf("%w %q (row %d)", ErrMissingCell, col, i)
		}
		switch v.(type) {
		case string:
			sawText = true
		default:
			if _, ok := schema.Numeric(v); !ok {
				return 0, fmt.Errorf("encode: column %q: unsupported value type %T", col, v)
			}
			sawNumber = true
		}
		if sawText && sawNumber {
			return 0, fmt.Errorf("%w: %q", ErrMixedColumn, col)
		}
	}
	if sawText {
		return kindText, nil
	}
	return kindNumeric, nil
}

func distinctLabels(b records.Batch, col string) []string {
	seen := make(map[string]struct{})
	for _, r := range b.Rows {
		seen[r[col].(string)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
