package config

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Options is a free-form option bag attached to parser and transform entries.
// Accessors never fail; a missing or mistyped key yields the default.
type Options map[string]any

// Any returns the raw value for key.
func (o Options) Any(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o[key]
	return v, ok
}

// Bool reads a bool, also accepting "true"/"false" strings.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o.Any(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// Int reads an integer. JSON numbers arrive as float64 and YAML ones as int.
func (o Options) Int(key string, def int) int {
	v, ok := o.Any(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

// Rune reads a single-character string such as a CSV delimiter. "\t" and
// "tab" both mean a tab.
func (o Options) Rune(key string, def rune) rune {
	s := o.String(key, "")
	switch s {
	case "":
		return def
	case `\t`, "tab":
		return '\t'
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return def
	}
	return r
}

// String reads a string value.
func (o Options) String(key, def string) string {
	v, ok := o.Any(key)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// StringMap reads an object whose values are strings. Non-string values are
// formatted with fmt.Sprint.
func (o Options) StringMap(key string) map[string]string {
	v, ok := o.Any(key)
	if !ok {
		return nil
	}
	out := map[string]string{}
	switch t := v.(type) {
	case map[string]string:
		for k, s := range t {
			out[k] = s
		}
	case map[string]any:
		for k, x := range t {
			if s, ok := x.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprint(x)
			}
		}
	default:
		return nil
	}
	return out
}

// StringSlice reads a list of strings.
func (o Options) StringSlice(key string) []string {
	v, ok := o.Any(key)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
