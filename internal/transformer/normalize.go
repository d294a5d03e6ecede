// Package transformer turns raw census batches into model-ready ones:
// Normalize cleans representation, CoerceSpec types numeric text, Encode maps
// categorical text to integer codes. Processor chains them with schema.Validate.
package transformer

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Huy0211/DPA01-project/internal/metrics"
	"github.com/Huy0211/DPA01-project/internal/transformer/builtin"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

var columnReplacer = strings.NewReplacer("-", "_", " ", "_")

// CanonicalColumnName trims, lowercases and replaces '-' and ' ' with '_'.
// Applying it twice yields the same result as applying it once.
func CanonicalColumnName(name string) string {
	return columnReplacer.Replace(strings.ToLower(norm.NFC.String(strings.TrimSpace(name))))
}

// IsMissingSentinel reports whether a trimmed string stands for a missing value.
func IsMissingSentinel(s string) bool {
	switch s {
	case "?", "", "nan", "NaN":
		return true
	}
	return false
}

// NormalizeCell trims and NFC-normalizes text and maps sentinels, nil and NaN
// to records.Missing. Other values pass through unchanged.
func NormalizeCell(v any) any {
	switch t := v.(type) {
	case string:
		return normalizeText(t)
	case []byte:
		return normalizeText(string(t))
	}
	if records.IsMissing(v) {
		return records.Missing
	}
	return v
}

func normalizeText(s string) any {
	if builtin.HasEdgeSpace(s) {
		s = strings.TrimSpace(s)
	}
	if IsMissingSentinel(s) {
		return records.Missing
	}
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return s
}

// Normalize returns a cleaned copy of b: canonical column names, normalized
// cells, and only the rows with no missing cell. It never fails.
//
// When two raw columns share a canonical name the first one wins.
// The surviving and dropped row counts are reported as etl_records_total.
func Normalize(b records.Batch) records.Batch {
	cols := make([]string, 0, len(b.Columns))
	src := make([]string, 0, len(b.Columns))
	seen := make(map[string]struct{}, len(b.Columns))
	for _, raw := range b.Columns {
		c := CanonicalColumnName(raw)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
		src = append(src, raw)
	}

	out := records.Batch{Columns: cols, Rows: make([]records.Record, 0, len(b.Rows))}
	for _, r := range b.Rows {
		row := make(records.Record, len(cols))
		complete := true
		for i, c := range cols {
			v, ok := r[src[i]]
			if !ok {
				complete = false
				break
			}
			v = NormalizeCell(v)
			if records.IsMissing(v) {
				complete = false
				break
			}
			row[c] = v
		}
		if complete {
			out.Rows = append(out.Rows, row)
		}
	}

	metrics.AddRecords("cleaned", out.Len())
	metrics.AddRecords("dropped", b.Len()-out.Len())
	return out
}
