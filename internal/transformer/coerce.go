package transformer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Huy0211/DPA01-project/internal/schema"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

// Coercion target types accepted in a coerce transform's "types" option.
const (
	TypeNumber = "number" // int64 when integral, float64 otherwise
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeText   = "text"
)

var typeAliases = map[string]string{
	"number":  TypeNumber,
	"numeric": TypeNumber,
	"int":     TypeInt,
	"integer": TypeInt,
	"bigint":  TypeInt,
	"float":   TypeFloat,
	"double":  TypeFloat,
	"real":    TypeFloat,
	"text":    TypeText,
	"string":  TypeText,
}

// CoerceSpec maps canonical column names to a target type.
//
// Staging tables store text, so numeric columns arrive as strings. Values that
// do not parse are left untouched; the validator then reports the column as
// non-numeric instead of the coercion failing silently.
type CoerceSpec map[string]string

// CoerceSpecFromContract types every range-ruled column as a number.
func CoerceSpecFromContract(c schema.Contract) CoerceSpec {
	s := CoerceSpec{}
	for _, col := range c.NumericColumns() {
		s[col] = TypeNumber
	}
	return s
}

// ParseCoerceSpec builds a spec from a column->type option map. Column names
// are canonicalized; unknown types are an error.
func ParseCoerceSpec(types map[string]string) (CoerceSpec, error) {
	s := make(CoerceSpec, len(types))
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t, ok := typeAliases[strings.ToLower(strings.TrimSpace(types[k]))]
		if !ok {
			return nil, fmt.Errorf("coerce: column %q: unsupported type %q", k, types[k])
		}
		s[CanonicalColumnName(k)] = t
	}
	return s, nil
}

// Apply returns a copy of b with the mapped columns converted.
func (s CoerceSpec) Apply(b records.Batch) records.Batch {
	out := b.Clone()
	if len(s) == 0 {
		return out
	}
	for _, r := range out.Rows {
		for col, typ := range s {
			v, ok := r[col]
			if !ok {
				continue
			}
			r[col] = coerceValue(v, typ)
		}
	}
	return out
}

func coerceValue(v any, typ string) any {
	if records.IsMissing(v) {
		return v
	}
	switch typ {
	case TypeText:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	case TypeInt, TypeNumber, TypeFloat:
	default:
		return v
	}

	s, isText := v.(string)
	if !isText {
		n, ok := schema.Numeric(v)
		if !ok {
			return v
		}
		return convertNumber(n, typ, v)
	}

	if typ != TypeFloat {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return v
	}
	return convertNumber(f, typ, v)
}

// twoTo63 is the first float64 outside the int64 range. float64(math.MaxInt64)
// rounds up to it, so the upper bound must be exclusive.
const twoTo63 = 1 << 63

func fitsInt64(f float64) bool {
	return f == math.Trunc(f) && f >= -twoTo63 && f < twoTo63
}

func convertNumber(f float64, typ string, orig any) any {
	switch typ {
	case TypeFloat:
		return f
	case TypeInt:
		if !fitsInt64(f) {
			return orig
		}
		return int64(f)
	default:
		if _, isText := orig.(string); !isText {
			return orig
		}
		if fitsInt64(f) {
			return int64(f)
		}
		return f
	}
}
