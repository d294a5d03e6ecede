// Package schema declares column contracts and validates batches against them.
//
// A Contract is a table of per-column rules. Validate evaluates every rule over
// the whole column (no early exit) and reports all failures at once.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// RuleKind selects how a Field's values are checked.
type RuleKind string

const (
	// RuleMembership requires every value to be one of Field.Allowed.
	RuleMembership RuleKind = "membership"
	// RuleRange requires every value to be numeric and within Min/Max.
	RuleRange RuleKind = "range"
)

// Field binds one rule to one column.
//
// Nullable semantics mirror storage.ColumnSpec: the zero value means NOT NULL,
// so a missing cell in a non-nullable column is a NullViolation.
type Field struct {
	Name    string   `json:"name" yaml:"name"`
	Kind    RuleKind `json:"kind" yaml:"kind"`
	Allowed []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`

	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`

	// ExclusiveMin turns Min into a strict lower bound (v > Min).
	ExclusiveMin bool `json:"exclusive_min,omitempty" yaml:"exclusive_min,omitempty"`

	Nullable bool `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// Contract is an ordered rule table. Failures are reported in field order.
type Contract struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Columns returns the column names the contract requires, in field order.
func (c Contract) Columns() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

// NumericColumns returns the columns governed by range rules.
func (c Contract) NumericColumns() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Kind == RuleRange {
			out = append(out, f.Name)
		}
	}
	return out
}

// Field returns the field named name.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Check reports contract definition mistakes (empty or duplicate names, unknown
// kinds, empty label sets, inverted bounds). It does not look at data.
func (c Contract) Check() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("schema: contract %q has no fields", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for i, f := range c.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("schema: fields[%d]: name is empty", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("schema: fields[%d]: duplicate field %q", i, name)
		}
		seen[name] = struct{}{}

		switch f.Kind {
		case RuleMembership:
			if len(f.Allowed) == 0 {
				return fmt.Errorf("schema: field %q: membership rule needs allowed values", name)
			}
		case RuleRange:
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				return fmt.Errorf("schema: field %q: min %s > max %s", name, formatBound(*f.Min), formatBound(*f.Max))
			}
		default:
			return fmt.Errorf("schema: field %q: unknown rule kind %q", name, f.Kind)
		}
	}
	return nil
}

func (f Field) inBounds(v float64) bool {
	if f.Min != nil {
		if f.ExclusiveMin && v <= *f.Min {
			return false
		}
		if !f.ExclusiveMin && v < *f.Min {
			return false
		}
	}
	if f.Max != nil && v > *f.Max {
		return false
	}
	return true
}

func (f Field) boundsMessage() string {
	switch {
	case f.Min != nil && f.Max != nil && !f.ExclusiveMin:
		return fmt.Sprintf("%s must be between %s and %s", f.Name, formatBound(*f.Min), formatBound(*f.Max))
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("%s must be > %s and <= %s", f.Name, formatBound(*f.Min), formatBound(*f.Max))
	case f.Min != nil && f.ExclusiveMin && *f.Min == 0:
		return fmt.Sprintf("%s must be positive", f.Name)
	case f.Min != nil && f.ExclusiveMin:
		return fmt.Sprintf("%s must be > %s", f.Name, formatBound(*f.Min))
	case f.Min != nil:
		return fmt.Sprintf("%s must be >= %s", f.Name, formatBound(*f.Min))
	case f.Max != nil:
		return fmt.Sprintf("%s must be <= %s", f.Name, formatBound(*f.Max))
	default:
		return fmt.Sprintf("%s is out of range", f.Name)
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Numeric converts Go number types to float64. Strings are not numbers here;
// textual digits must be coerced before validation.
func Numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
