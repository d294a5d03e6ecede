package schema

import (
	"fmt"
	"strings"
)

// FailureKind classifies a rule violation.
type FailureKind string

const (
	TypeMismatch    FailureKind = "type_mismatch"
	OutOfRange      FailureKind = "out_of_range"
	InvalidCategory FailureKind = "invalid_category"
	NullViolation   FailureKind = "null_violation"
)

// Failure is one violated rule.
type Failure struct {
	Column  string      `json:"column"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Report accumulates failures in the order rules were evaluated.
// Identical messages are recorded once. The zero value is ready to use.
type Report struct {
	failures []Failure
	seen     map[string]struct{}
}

// Add records f and reports whether it was new.
func (r *Report) Add(f Failure) bool {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, dup := r.seen[f.Message]; dup {
		return false
	}
	r.seen[f.Message] = struct{}{}
	r.failures = append(r.failures, f)
	return true
}

// Len returns the number of distinct failures.
func (r *Report) Len() int { return len(r.failures) }

// Failures returns a copy of the recorded failures.
func (r *Report) Failures() []Failure {
	return append([]Failure(nil), r.failures...)
}

// Err returns nil for an empty report, otherwise a *ValidationError.
func (r *Report) Err() error {
	if len(r.failures) == 0 {
		return nil
	}
	return &ValidationError{Failures: r.Failures()}
}

// ValidationError is the single error returned for a batch that broke at least
// one rule. It lists every failure, not only the first.
type ValidationError struct {
	Failures []Failure
}

// Messages returns the failure descriptions in report order.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Message)
	}
	return out
}

func (e *ValidationError) Error() string {
	return "data validation failed:\n  - " + strings.Join(e.Messages(), "\n  - ")
}

// MalformedInputError means the batch lacks columns the contract requires.
// No rule is evaluated when it is returned.
type MalformedInputError struct {
	Missing []string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: missing required columns: %s", strings.Join(e.Missing, ", "))
}
