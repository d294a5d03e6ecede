// Package csv reads a delimited census extract into a records.Batch.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Huy0211/DPA01-project/internal/config"
	"github.com/Huy0211/DPA01-project/internal/transformer/builtin"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

// ErrNoHeader is returned when has_header is false and no "columns" option
// names the fields.
var ErrNoHeader = errors.New("csv: has_header=false requires the columns option")

// ReadBatch reads every record of src into a batch of string cells.
//
// Options (all optional):
//   - has_header (bool, true): first record names the columns.
//   - columns ([]string): column names when has_header is false.
//   - header_map (map): renames source headers before anything else sees them.
//   - comma (string, ","): field delimiter; "\t" or "tab" for TSV.
//   - lazy_quotes (bool, false), fields_per_record (int, -1 = any).
//   - trim_space (bool, false): trim cells here instead of in Normalize.
//   - skip_blank_rows (bool, true): drop records whose cells are all empty.
//
// Header names are kept as written apart from a leading BOM and surrounding
// whitespace; canonicalization is left to the transform step so the staging
// table mirrors the source file.
//
// A malformed record is reported through onErr (when non-nil) and skipped.
// Short records are padded with records.Missing.
func ReadBatch(ctx context.Context, src io.Reader, opt config.Options, onErr func(line int, err error)) (records.Batch, error) {
	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = opt.Int("fields_per_record", -1)
	cr.ReuseRecord = true

	trim := opt.Bool("trim_space", false)
	skipBlank := opt.Bool("skip_blank_rows", true)
	hm := opt.StringMap("header_map")

	var (
		line    int
		columns []string
	)

	if opt.Bool("has_header", true) {
		line++
		hdr, err := cr.Read()
		if err == io.EOF {
			return records.Batch{}, fmt.Errorf("csv: empty input")
		}
		if err != nil {
			return records.Batch{}, fmt.Errorf("csv: read header: %w", err)
		}
		columns = make([]string, len(hdr))
		for i, h := range hdr {
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			if builtin.HasEdgeSpace(h) {
				h = strings.TrimSpace(h)
			}
			if mapped, ok := hm[h]; ok {
				h = mapped
			}
			columns[i] = h
		}
	} else {
		columns = opt.StringSlice("columns")
		if len(columns) == 0 {
			return records.Batch{}, ErrNoHeader
		}
	}

	if err := checkDuplicateHeaders(columns); err != nil {
		return records.Batch{}, err
	}

	b := records.Batch{Columns: columns}
	for {
		if err := ctx.Err(); err != nil {
			return records.Batch{}, err
		}

		line++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}
		if skipBlank && blank(rec) {
			continue
		}

		row := make(records.Record, len(columns))
		for i, c := range columns {
			if i >= len(rec) {
				row[c] = records.Missing
				continue
			}
			v := rec[i]
			if trim && builtin.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			row[c] = v
		}
		b.Rows = append(b.Rows, row)
	}
	return b, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func checkDuplicateHeaders(cols []string) error {
	seen := make(map[string]int, len(cols))
	for i, c := range cols {
		if j, ok := seen[c]; ok {
			return fmt.Errorf("csv: duplicate header %q at positions %d and %d", c, j+1, i+1)
		}
		seen[c] = i
	}
	return nil
}
