// Package builtin holds small helpers shared by the transform and load steps.
package builtin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Huy0211/DPA01-project/pkg/records"
)

// DefaultHashField is the column the load step writes row hashes into.
const DefaultHashField = "row_hash"

// RowHash stamps each record with a SHA-256 over selected columns. The
// warehouse table uses it as a stable, never-null key for a cleaned row.
//
// Canonical form:
//   - Columns are joined in order with Separator (default 0x1f).
//   - A missing or nil cell is a single NUL byte, so it differs from "".
//   - Integers and floats use strconv; float64 uses the shortest 'g' form.
//   - time.Time is RFC3339Nano in UTC.
//   - Output is 64 lowercase hex characters.
type RowHash struct {
	// Columns is the ordered list of hashed columns.
	Columns []string

	// Target is where the hash is stored. Empty means DefaultHashField.
	Target string

	// IncludeNames writes "column=value" instead of bare values.
	IncludeNames bool

	Separator string

	// Overwrite replaces an existing Target value.
	Overwrite bool

	// TrimSpace trims surrounding whitespace from text before hashing.
	TrimSpace bool
}

// ForBatch returns a RowHash over every column of b, in column order.
func ForBatch(b records.Batch) RowHash {
	cols := make([]string, 0, len(b.Columns))
	for _, c := range b.Columns {
		if c == DefaultHashField {
			continue
		}
		cols = append(cols, c)
	}
	return RowHash{Columns: cols, IncludeNames: true, Overwrite: true}
}

// Apply computes hashes and mutates the records in place.
func (h RowHash) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(h.Columns) == 0 {
		return in
	}
	target := h.Target
	if target == "" {
		target = DefaultHashField
	}
	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	for _, r := range in {
		if r == nil {
			continue
		}
		if !h.Overwrite {
			if _, exists := r[target]; exists {
				continue
			}
		}
		sum := hashRecord(r, h.Columns, sep, h.IncludeNames, h.TrimSpace)
		r[target] = hex.EncodeToString(sum[:])
	}
	return in
}

// Sum returns the hex hash of a single record without modifying it.
func (h RowHash) Sum(r records.Record) string {
	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}
	sum := hashRecord(r, h.Columns, sep, h.IncludeNames, h.TrimSpace)
	return hex.EncodeToString(sum[:])
}

func hashRecord(r records.Record, cols []string, sep string, includeNames, trimSpace bool) [sha256.Size]byte {
	var b strings.Builder
	b.Grow(len(cols) * 16)

	for i, c := range cols {
		if i > 0 {
			b.WriteString(sep)
		}
		if includeNames {
			b.WriteString(c)
			b.WriteByte('=')
		}
		v, ok := r[c]
		if !ok || records.IsMissing(v) {
			b.WriteByte('\x00')
			continue
		}
		appendCanonicalValue(&b, v, trimSpace)
	}
	return sha256.Sum256([]byte(b.String()))
}

func appendCanonicalValue(b *strings.Builder, v any, trimSpace bool) {
	switch t := v.(type) {
	case string:
		if trimSpace && HasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)
	case []byte:
		s := string(t)
		if trimSpace && HasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		b.WriteString(s)
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int:
		b.WriteString(strconv.Itoa(t))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case time.Time:
		if !t.IsZero() {
			t = t.UTC()
		}
		b.WriteString(t.Format(time.RFC3339Nano))
	default:
		b.WriteString(fmt.Sprint(t))
	}
}
