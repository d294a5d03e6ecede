// Command qacheck runs the data-quality core (normalize, validate, encode) on a
// local extract without a database and prints a JSON report.
//
// Exit codes: 0 when the batch is valid, 1 when it is not (or cannot be read),
// 2 on usage errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Huy0211/DPA01-project/internal/config"
	"github.com/Huy0211/DPA01-project/internal/logging"
	csvparser "github.com/Huy0211/DPA01-project/internal/parser/csv"
	jsonparser "github.com/Huy0211/DPA01-project/internal/parser/json"
	"github.com/Huy0211/DPA01-project/internal/schema"
	"github.com/Huy0211/DPA01-project/internal/transformer"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

// Report statuses.
const (
	statusOK        = "ok"
	statusInvalid   = "invalid"
	statusMalformed = "malformed"
)

// report is the JSON document written to stdout.
type report struct {
	Status    string              `json:"status"`
	Contract  string              `json:"contract"`
	Read      int                 `json:"read"`
	Cleaned   int                 `json:"cleaned"`
	Dropped   int                 `json:"dropped"`
	Failures  []schema.Failure    `json:"failures,omitempty"`
	Missing   []string            `json:"missing,omitempty"`
	Encodings map[string][]string `json:"encodings,omitempty"`
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("qacheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		input    = fs.String("input", "", "CSV or JSON extract to check")
		format   = fs.String("format", "", "csv|json (default: from the file extension)")
		cfgPath  = fs.String("config", "", "optional pipeline config supplying parser options, contract and coerce types")
		logLevel = fs.String("log-level", "warn", "log level: debug|info|warn|error")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*input) == "" {
		fmt.Fprintln(stderr, "usage: qacheck -input <file.csv|file.json> [-format csv|json] [-config pipeline.yaml]")
		return 2
	}

	var p config.Pipeline
	if *cfgPath != "" {
		var err error
		if p, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	kind := *format
	if kind == "" {
		kind = formatFromPath(*input)
	}

	logger := logging.New(logging.Options{Level: *logLevel, Output: stderr})

	b, err := readInput(ctx, *input, kind, p.Parser.Options, func(line int, err error) {
		logger.Warn("skipping malformed record", "line", line, "err", err)
	})
	if err != nil {
		fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}

	c, err := p.Contract()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	proc := transformer.NewProcessor(c, logger)
	if types, ok := p.CoerceTypes(); ok && len(types) > 0 {
		if proc.Coerce, err = transformer.ParseCoerceSpec(types); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}

	res, err := proc.Process(b)
	rep := report{Contract: c.Name, Read: res.Read, Cleaned: res.Cleaned, Dropped: res.Dropped()}

	code := 0
	var (
		ve *schema.ValidationError
		me *schema.MalformedInputError
	)
	switch {
	case err == nil:
		rep.Status = statusOK
		rep.Encodings = make(map[string][]string, len(res.Encodings))
		for col, enc := range res.Encodings {
			rep.Encodings[col] = enc.Labels
		}
	case errors.As(err, &ve):
		rep.Status = statusInvalid
		rep.Failures = ve.Failures
		code = 1
	case errors.As(err, &me):
		rep.Status = statusMalformed
		rep.Missing = me.Missing
		code = 1
	default:
		fmt.Fprintln(stderr, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	return code
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "csv"
	}
}

func readInput(ctx context.Context, path, kind string, opt config.Options, onErr func(int, error)) (records.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return records.Batch{}, err
	}
	defer f.Close()

	switch kind {
	case "csv":
		return csvparser.ReadBatch(ctx, f, opt, onErr)
	case "json":
		return jsonparser.ReadBatch(ctx, f, opt)
	default:
		return records.Batch{}, fmt.Errorf("unknown format %q (want csv|json)", kind)
	}
}
