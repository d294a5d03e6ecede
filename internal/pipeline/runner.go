// Package pipeline runs the extract, transform and load steps of a census job
// against a storage.Repository.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Huy0211/DPA01-project/internal/config"
	"github.com/Huy0211/DPA01-project/internal/logging"
	"github.com/Huy0211/DPA01-project/internal/storage"
)

// Step names one stage of the job.
type Step string

const (
	StepExtract   Step = "extract"
	StepTransform Step = "transform"
	StepLoad      Step = "load"
	StepAll       Step = "all"
)

// ParseStep maps a flag value to a Step. Empty means StepAll.
func ParseStep(s string) (Step, error) {
	switch Step(strings.ToLower(strings.TrimSpace(s))) {
	case "", StepAll:
		return StepAll, nil
	case StepExtract:
		return StepExtract, nil
	case StepTransform:
		return StepTransform, nil
	case StepLoad:
		return StepLoad, nil
	default:
		return "", fmt.Errorf("pipeline: unknown step %q (want extract|transform|load|all)", s)
	}
}

// Summary counts what a Run did. Fields of steps that did not run stay zero.
type Summary struct {
	RunID string

	Staged      int64
	Read        int
	Cleaned     int
	Transformed int64
	Encoded     int
	Loaded      int64
}

// Dropped returns how many staged rows normalization removed.
func (s Summary) Dropped() int { return s.Read - s.Cleaned }

// Runner wires the steps to their dependencies. Every field has a default
// from NewDefaultRunner; tests replace them individually.
type Runner struct {
	// storage-agnostic factory seam
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	// OpenSource opens the raw extract named by source.file.path.
	OpenSource func(path string) (io.ReadCloser, error)

	Logger *log.Logger

	Now      func() time.Time
	NewRunID func() string
}

// NewDefaultRunner returns a Runner backed by the registered storage
// backends, the local filesystem and logger.
func NewDefaultRunner(logger *log.Logger) *Runner {
	return &Runner{
		NewRepository: func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
			return storage.New(ctx, cfg)
		},
		OpenSource: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
		Logger:   logger,
		Now:      time.Now,
		NewRunID: uuid.NewString,
	}
}

// Run executes step (or every step, in order, for StepAll) for p.
//
// Behavior:
//   - p must already be defaulted and validated; Run only checks what it needs.
//   - One repository is opened per Run and closed before returning.
//   - A failing step stops the run; later steps do not execute.
//
// Errors:
//   - "open storage: ..." when the repository cannot be created.
//   - "<step>: ..." wrapping the failing step's error. Validation failures
//     keep their *schema.ValidationError / *schema.MalformedInputError type
//     for errors.As.
func (r *Runner) Run(ctx context.Context, p config.Pipeline, step Step) (Summary, error) {
	if step == "" {
		step = StepAll
	}
	if _, err := ParseStep(string(step)); err != nil {
		return Summary{}, err
	}
	if p.Storage.Kind == "" {
		return Summary{}, fmt.Errorf("pipeline: storage.kind must be set")
	}

	lg := logging.OrDiscard(r.Logger)
	newID := r.NewRunID
	if newID == nil {
		newID = uuid.NewString
	}
	sum := Summary{RunID: newID()}
	lg = lg.With("job", p.Job, "run_id", sum.RunID)

	newRepo := r.NewRepository
	if newRepo == nil {
		newRepo = storage.New
	}
	repo, err := newRepo(ctx, storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       p.Storage.DB.DSN,
		BatchSize: p.Runtime.BatchSize,
	})
	if err != nil {
		return sum, fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	s := &stepRunner{runner: r, repo: repo, p: p, lg: lg, sum: &sum}

	var steps []Step
	if step == StepAll {
		steps = []Step{StepExtract, StepTransform, StepLoad}
	} else {
		steps = []Step{step}
	}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := s.run(ctx, st); err != nil {
			return sum, fmt.Errorf("%s: %w", st, err)
		}
	}
	lg.Info("run finished", "steps", len(steps))
	return sum, nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) openSource(path string) (io.ReadCloser, error) {
	if r.OpenSource != nil {
		return r.OpenSource(path)
	}
	return os.Open(path)
}
