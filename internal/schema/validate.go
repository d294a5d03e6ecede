package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Huy0211/DPA01-project/pkg/records"
)

// Validated is proof that a batch passed Validate. Only Validate can produce a
// usable value; the zero value reports OK() == false.
type Validated struct {
	batch    records.Batch
	contract string
	ok       bool
}

// OK reports whether v came from a successful Validate call.
func (v Validated) OK() bool { return v.ok }

// Contract returns the name of the contract the batch satisfied.
func (v Validated) Contract() string { return v.contract }

// Batch returns a copy of the validated batch.
func (v Validated) Batch() records.Batch { return v.batch.Clone() }

// Len returns the number of validated rows.
func (v Validated) Len() int { return v.batch.Len() }

// Validate checks b against every rule in c.
//
// Behavior:
//   - Contract columns absent from b yield *MalformedInputError before any rule runs.
//   - Every field is evaluated; all failures are collected into one *ValidationError.
//   - An empty batch passes: every predicate over an empty column holds.
//
// On success the returned Validated wraps a private copy of b.
func Validate(b records.Batch, c Contract) (Validated, error) {
	if err := c.Check(); err != nil {
		return Validated{}, err
	}

	var missing []string
	for _, col := range c.Columns() {
		if !b.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Validated{}, &MalformedInputError{Missing: missing}
	}

	var rep Report
	for _, f := range c.Fields {
		f.check(b.Column(f.Name), &rep)
	}
	if err := rep.Err(); err != nil {
		return Validated{}, err
	}
	return Validated{batch: b.Clone(), contract: c.Name, ok: true}, nil
}

func (f Field) check(values []any, rep *Report) {
	switch f.Kind {
	case RuleRange:
		f.checkRange(values, rep)
	case RuleMembership:
		f.checkMembership(values, rep)
	}
}

// checkRange reports at most one failure: type first, then nulls, then bounds.
func (f Field) checkRange(values []any, rep *Report) {
	nums := make([]float64, 0, len(values))
	nulls := false
	for _, v := range values {
		if records.IsMissing(v) {
			nulls = true
			continue
		}
		n, ok := Numeric(v)
		if !ok {
			rep.Add(Failure{Column: f.Name, Kind: TypeMismatch, Message: f.Name + " must be numeric"})
			return
		}
		nums = append(nums, n)
	}
	if nulls && !f.Nullable {
		rep.Add(Failure{Column: f.Name, Kind: NullViolation, Message: f.Name + " must not contain null values"})
		return
	}
	for _, n := range nums {
		if !f.inBounds(n) {
			rep.Add(Failure{Column: f.Name, Kind: OutOfRange, Message: f.boundsMessage()})
			return
		}
	}
}

// checkMembership names every distinct value outside the allowed set.
func (f Field) checkMembership(values []any, rep *Report) {
	allowed := make(map[string]struct{}, len(f.Allowed))
	for _, a := range f.Allowed {
		allowed[a] = struct{}{}
	}

	offending := map[string]struct{}{}
	nulls := false
	for _, v := range values {
		if records.IsMissing(v) {
			nulls = true
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if _, ok := allowed[s]; !ok {
			offending[s] = struct{}{}
		}
	}
	if nulls && !f.Nullable {
		rep.Add(Failure{Column: f.Name, Kind: NullViolation, Message: f.Name + " must not contain null values"})
		return
	}
	if len(offending) == 0 {
		return
	}

	bad := make([]string, 0, len(offending))
	for s := range offending {
		bad = append(bad, s)
	}
	sort.Strings(bad)
	for i, s := range bad {
		bad[i] = strconv.Quote(s)
	}
	rep.Add(Failure{
		Column:  f.Name,
		Kind:    InvalidCategory,
		Message: fmt.Sprintf("invalid values for %s: %s", f.Name, strings.Join(bad, ", ")),
	})
}
