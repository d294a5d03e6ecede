// Package json reads census records exported as JSON into a records.Batch.
package json

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Huy0211/DPA01-project/internal/config"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

// ReadBatch accepts a root array of objects or an envelope object holding one
// (the "records_key" option names the field; otherwise the first array wins).
//
// Cells are staged as text like the CSV reader produces them: numbers keep
// their literal form, null becomes records.Missing, nested values are
// re-encoded as JSON. Columns follow the "columns" option or, without it,
// first-seen key order with later keys sorted per record.
func ReadBatch(ctx context.Context, r io.Reader, opt config.Options) (records.Batch, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	hm := opt.StringMap("header_map")
	want := opt.StringSlice("columns")

	var objs []map[string]any
	emit := func(obj map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		objs = append(objs, obj)
		return nil
	}

	tok, err := dec.Token()
	if err == io.EOF {
		return records.Batch{Columns: want}, nil
	}
	if err != nil {
		return records.Batch{}, fmt.Errorf("json: read first token: %w", err)
	}

	switch tok {
	case json.Delim('['):
		if err := streamArray(dec, emit); err != nil {
			return records.Batch{}, err
		}
	case json.Delim('{'):
		if err := streamEnvelope(dec, opt.String("records_key", ""), emit); err != nil {
			return records.Batch{}, err
		}
	default:
		return records.Batch{}, fmt.Errorf("json: unsupported root token %v (want object or array)", tok)
	}

	return toBatch(objs, want, hm), nil
}

func streamArray(dec *json.Decoder, emit func(map[string]any) error) error {
	for i := 0; dec.More(); i++ {
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("json: decode element %d: %w", i, err)
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("json: element %d is %T, want object", i, raw)
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("json: read array end: %w", err)
	}
	return nil
}

var errNoRecords = errors.New("json: object holds no array of records")

func streamEnvelope(dec *json.Decoder, key string, emit func(map[string]any) error) error {
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: read key: %w", err)
		}
		k, _ := kt.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("json: read %q: %w", k, err)
		}
		if key != "" && k != key {
			continue
		}
		if len(raw) == 0 || raw[0] != '[' {
			if key != "" {
				return fmt.Errorf("json: %q is not an array", key)
			}
			continue
		}
		inner := json.NewDecoder(bytes.NewReader(raw))
		inner.UseNumber()
		if _, err := inner.Token(); err != nil {
			return fmt.Errorf("json: read %q: %w", k, err)
		}
		return streamArray(inner, emit)
	}
	return errNoRecords
}

func toBatch(objs []map[string]any, columns []string, hm map[string]string) records.Batch {
	rename := func(k string) string {
		if m, ok := hm[k]; ok {
			return m
		}
		return k
	}

	if len(columns) == 0 {
		seen := map[string]struct{}{}
		for _, o := range objs {
			keys := make([]string, 0, len(o))
			for k := range o {
				keys = append(keys, rename(k))
			}
			sort.Strings(keys)
			for _, k := range keys {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					columns = append(columns, k)
				}
			}
		}
	}

	b := records.Batch{Columns: columns, Rows: make([]records.Record, 0, len(objs))}
	for _, o := range objs {
		renamed := make(map[string]any, len(o))
		for k, v := range o {
			renamed[rename(k)] = v
		}
		row := make(records.Record, len(columns))
		for _, c := range columns {
			v, ok := renamed[c]
			if !ok {
				row[c] = records.Missing
				continue
			}
			row[c] = stageValue(v)
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

func stageValue(v any) any {
	switch t := v.(type) {
	case nil:
		return records.Missing
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
