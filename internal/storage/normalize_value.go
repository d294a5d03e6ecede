package storage

import (
	"math"
	"strconv"
	"time"

	"github.com/Huy0211/DPA01-project/pkg/records"
)

// NormalizeValue converts a scanned driver value to a batch cell: NULL becomes
// records.Missing, []byte becomes string, every integer width becomes int64
// and float32 becomes float64.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return records.Missing
	case []byte:
		return string(t)
	case string, int64, float64, bool:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint:
		if uint64(t) > math.MaxInt64 {
			return strconv.FormatUint(uint64(t), 10)
		}
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return strconv.FormatUint(t, 10)
		}
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

// DBValue converts a batch cell to a bind argument: missing cells become nil.
func DBValue(v any) any {
	if records.IsMissing(v) {
		return nil
	}
	return v
}

// DBArgs converts one row of cells with DBValue.
func DBArgs(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = DBValue(v)
	}
	return out
}
