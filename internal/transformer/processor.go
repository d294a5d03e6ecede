package transformer

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/Huy0211/DPA01-project/internal/logging"
	"github.com/Huy0211/DPA01-project/internal/metrics"
	"github.com/Huy0211/DPA01-project/internal/schema"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

// Processor runs normalize, coerce, validate and encode over one batch.
type Processor struct {
	Contract schema.Contract

	// Coerce types text cells before validation. Nil derives a spec from the
	// contract's numeric columns.
	Coerce CoerceSpec

	Logger *log.Logger
}

// Result is what a successful Process call hands to the load step.
type Result struct {
	Batch     records.Batch
	Encodings Encodings
	Read      int
	Cleaned   int
}

// Dropped returns how many input rows normalization removed.
func (r Result) Dropped() int { return r.Read - r.Cleaned }

// NewProcessor returns a Processor for c.
func NewProcessor(c schema.Contract, logger *log.Logger) *Processor {
	return &Processor{Contract: c, Logger: logger}
}

// Process cleans, validates and encodes b.
//
// Errors:
//   - *schema.MalformedInputError when contract columns are absent.
//   - *schema.ValidationError listing every rule violation.
//   - errors from Encode.
//
// On error the returned Result still carries the read and cleaned counts.
func (p *Processor) Process(b records.Batch) (Result, error) {
	lg := logging.OrDiscard(p.Logger)

	res := Result{Read: b.Len()}
	metrics.AddRecords("read", res.Read)

	clean := Normalize(b)
	res.Cleaned = clean.Len()
	lg.Info("after cleaning", "rows", res.Cleaned, "dropped", res.Dropped())

	spec := p.Coerce
	if spec == nil {
		spec = CoerceSpecFromContract(p.Contract)
	}
	typed := spec.Apply(clean)

	v, err := schema.Validate(typed, p.Contract)
	if err != nil {
		reportValidationFailure(lg, err)
		return res, err
	}
	lg.Info("all validation checks passed", "rows", v.Len(), "contract", v.Contract())

	out, enc, err := Encode(v)
	if err != nil {
		return res, fmt.Errorf("transform: %w", err)
	}
	lg.Debug("encoded categorical columns", "columns", enc.Columns())

	metrics.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"contract": v.Contract()})
	res.Batch = out
	res.Encodings = enc
	return res, nil
}

func reportValidationFailure(lg *log.Logger, err error) {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		for _, f := range ve.Failures {
			metrics.IncCounter(metrics.ValidationFailureTotal, 1, metrics.Labels{"column": f.Column, "kind": string(f.Kind)})
		}
		lg.Error("data validation failed", "failures", len(ve.Failures))
		return
	}
	var me *schema.MalformedInputError
	if errors.As(err, &me) {
		metrics.IncCounter(metrics.ValidationFailureTotal, 1, metrics.Labels{"column": "", "kind": "malformed_input"})
		lg.Error("malformed input", "missing", me.Missing)
		return
	}
	lg.Error("validation error", "err", err)
}
