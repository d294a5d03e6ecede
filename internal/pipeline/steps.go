package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Huy0211/DPA01-project/internal/config"
	"github.com/Huy0211/DPA01-project/internal/metrics"
	csvparser "github.com/Huy0211/DPA01-project/internal/parser/csv"
	jsonparser "github.com/Huy0211/DPA01-project/internal/parser/json"
	"github.com/Huy0211/DPA01-project/internal/storage"
	"github.com/Huy0211/DPA01-project/internal/transformer"
	"github.com/Huy0211/DPA01-project/internal/transformer/builtin"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

// Column names the load and transform steps add to their tables.
const (
	RunIDColumn    = "run_id"
	LoadedAtColumn = "loaded_at"
)

// EncodingsTable describes the table holding one run's category codes.
func EncodingsTable(name string) storage.TableSpec {
	return storage.TableSpec{
		Name: name,
		Columns: []storage.ColumnSpec{
			{Name: RunIDColumn, Type: storage.TypeText},
			{Name: "column_name", Type: storage.TypeText},
			{Name: "label", Type: storage.TypeText},
			{Name: "code", Type: storage.TypeBigint},
		},
	}
}

type stepRunner struct {
	runner *Runner
	repo   storage.Repository
	p      config.Pipeline
	lg     *log.Logger
	sum    *Summary
}

func (s *stepRunner) run(ctx context.Context, st Step) (err error) {
	started := time.Now()
	defer func() { metrics.RecordStep(string(st), started, err) }()

	lg := s.lg.With("step", string(st))
	switch st {
	case StepExtract:
		err = s.extract(ctx, lg)
	case StepTransform:
		err = s.transform(ctx, lg)
	case StepLoad:
		err = s.load(ctx, lg)
	default:
		err = fmt.Errorf("unknown step %q", st)
	}
	if err == nil {
		lg.Info("step finished", "duration", time.Since(started).Round(time.Millisecond))
	}
	return err
}

// extract copies the source file verbatim into the staging table.
func (s *stepRunner) extract(ctx context.Context, lg *log.Logger) error {
	path := s.p.Source.File.Path
	if path == "" {
		return fmt.Errorf("source.file.path must be set")
	}
	f, err := s.runner.openSource(path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	var b records.Batch
	switch s.p.Parser.Kind {
	case "", "csv":
		b, err = csvparser.ReadBatch(ctx, f, s.p.Parser.Options, func(line int, err error) {
			lg.Warn("skipping malformed record", "line", line, "err", err)
		})
	case "json":
		b, err = jsonparser.ReadBatch(ctx, f, s.p.Parser.Options)
	default:
		err = fmt.Errorf("unsupported parser kind %q", s.p.Parser.Kind)
	}
	if err != nil {
		return err
	}
	lg.Info("parsed source", "path", path, "rows", b.Len(), "columns", len(b.Columns))

	table := s.p.Storage.DB.StagingTable
	n, err := s.write(ctx, storage.TableData{Spec: storage.TextTable(table, b.Columns), Rows: b.Matrix()})
	if err != nil {
		return err
	}
	s.sum.Staged = n[0]
	metrics.AddRecords("staged", int(n))
	lg.Info("loaded raw data", "table", table, "rows", n)
	return nil
}

// transform cleans, validates and encodes the staging table. Nothing is
// written when validation fails, and the transformed and category code tables
// are replaced together so they always describe the same run.
func (s *stepRunner) transform(ctx context.Context, lg *log.Logger) error {
	db := s.p.Storage.DB
	b, err := s.selectBatch(ctx, db.StagingTable)
	if err != nil {
		return err
	}

	proc, err := s.processor(lg)
	if err != nil {
		return err
	}
	res, err := proc.Process(b)
	s.sum.Read, s.sum.Cleaned = res.Read, res.Cleaned
	if err != nil {
		return err
	}

	codes := res.Encodings.Rows()
	rows := make([][]any, len(codes))
	for i, c := range codes {
		rows[i] = append([]any{s.sum.RunID}, c...)
	}
	n, err := s.write(ctx,
		storage.TableData{Spec: storage.InferTable(db.TransformedTable, res.Batch), Rows: res.Batch.Matrix()},
		storage.TableData{Spec: EncodingsTable(db.EncodingsTable), Rows: rows},
	)
	if err != nil {
		return err
	}
	s.sum.Transformed = n[0]
	s.sum.Encoded = len(res.Encodings)
	lg.Info("wrote transformed data", "table", db.TransformedTable, "rows", n[0])
	lg.Info("wrote category codes", "table", db.EncodingsTable, "columns", len(res.Encodings), "codes", n[1])
	return nil
}

func (s *stepRunner) processor(lg *log.Logger) (*transformer.Processor, error) {
	c, err := s.p.Contract()
	if err != nil {
		return nil, err
	}
	proc := transformer.NewProcessor(c, lg)
	if types, ok := s.p.CoerceTypes(); ok && len(types) > 0 {
		spec, err := transformer.ParseCoerceSpec(types)
		if err != nil {
			return nil, err
		}
		proc.Coerce = spec
	}
	return proc, nil
}

// load stamps every transformed row with a row hash, the run id and a load
// timestamp and writes the result to the warehouse table.
func (s *stepRunner) load(ctx context.Context, lg *log.Logger) error {
	db := s.p.Storage.DB
	b, err := s.selectBatch(ctx, db.TransformedTable)
	if err != nil {
		return err
	}

	b.Rows = builtin.ForBatch(b).Apply(b.Rows)
	loadedAt := s.runner.now().UTC().Format(time.RFC3339)
	for _, r := range b.Rows {
		r[RunIDColumn] = s.sum.RunID
		r[LoadedAtColumn] = loadedAt
	}
	for _, c := range []string{builtin.DefaultHashField, RunIDColumn, LoadedAtColumn} {
		if !b.HasColumn(c) {
			b.Columns = append(b.Columns, c)
		}
	}

	n, err := s.write(ctx, storage.TableData{Spec: storage.InferTable(db.WarehouseTable, b), Rows: b.Matrix()})
	if err != nil {
		return err
	}
	s.sum.Loaded = n[0]
	metrics.AddRecords("loaded", int(n[0]))
	lg.Info("loaded warehouse", "table", db.WarehouseTable, "rows", n[0])
	return nil
}

func (s *stepRunner) selectBatch(ctx context.Context, table string) (records.Batch, error) {
	cols, rows, err := s.repo.SelectRows(ctx, table)
	if err != nil {
		return records.Batch{}, fmt.Errorf("read %s: %w", table, err)
	}
	return records.FromRows(cols, rows), nil
}

// write replaces tables in one repository transaction and returns the rows
// written per table.
func (s *stepRunner) write(ctx context.Context, tables ...storage.TableData) ([]int64, error) {
	n, err := s.repo.WriteTables(ctx, tables...)
	if err != nil {
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.Spec.Name
		}
		return nil, fmt.Errorf("write %s: %w", strings.Join(names, ", "), err)
	}
	return n, nil
}
