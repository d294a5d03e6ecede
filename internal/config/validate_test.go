package config

import (
	"strings"
	"testing"
)

func validPipeline() Pipeline {
	p := Pipeline{
		Source:  Source{Kind: "file", File: FileSource{Path: "adult.csv"}},
		Storage: Storage{Kind: "postgres", DB: DBConfig{DSN: "postgres://localhost/census"}},
	}
	p.ApplyDefaults()
	return p
}

func findIssue(issues []Issue, path string) (Issue, bool) {
	for _, iss := range issues {
		if iss.Path == path {
			return iss, true
		}
	}
	return Issue{}, false
}

func TestValidatePipeline_Valid(t *testing.T) {
	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("issues=%v", issues)
	}
}

func TestValidatePipeline_StructTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Pipeline)
		path    string
		message string
	}{
		{"missing_dsn", func(p *Pipeline) { p.Storage.DB.DSN = "" }, "storage.db.dsn", "is required"},
		{"unknown_storage", func(p *Pipeline) { p.Storage.Kind = "oracle" }, "storage.kind", "must be one of"},
		{"bad_table", func(p *Pipeline) { p.Storage.DB.StagingTable = "raw data;" }, "storage.db.staging_table", "not a valid table name"},
		{"missing_path", func(p *Pipeline) { p.Source.File.Path = "" }, "source.file.path", "is required"},
		{"unknown_transform", func(p *Pipeline) { p.Transform = []Transform{{Kind: "pivot"}} }, "transform[0].kind", "must be one of"},
		{"negative_batch", func(p *Pipeline) { p.Runtime.BatchSize = -1 }, "runtime.batch_size", ">= 0"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := validPipeline()
			tc.mutate(&p)

			issues := ValidatePipeline(p)
			iss, ok := findIssue(issues, tc.path)
			if !ok {
				t.Fatalf("no issue at %q: %v", tc.path, issues)
			}
			if iss.Severity != SeverityError || !strings.Contains(iss.Message, tc.message) {
				t.Fatalf("issue=%v, want error containing %q", iss, tc.message)
			}
		})
	}
}

func TestValidatePipeline_Semantic(t *testing.T) {
	p := validPipeline()
	p.Storage.DB.WarehouseTable = p.Storage.DB.StagingTable
	p.Transform = []Transform{
		{Kind: TransformValidate, Options: Options{"contract": "nope"}},
		{Kind: TransformValidate},
		{Kind: TransformCoerce, Options: Options{"types": map[string]any{"age": "date"}}},
	}

	issues := ValidatePipeline(p)
	if !HasErrors(issues) {
		t.Fatalf("expected errors: %v", issues)
	}
	for _, path := range []string{
		"storage.db.warehouse_table",
		"transform[1]",
		"transform.validate.options.contract",
		"transform.coerce.options.types",
	} {
		if _, ok := findIssue(issues, path); !ok {
			t.Errorf("missing issue at %s: %v", path, issues)
		}
	}
}

func TestValidatePipeline_MSSQLBatchWarning(t *testing.T) {
	p := validPipeline()
	p.Storage.Kind = "mssql"
	p.Runtime.BatchSize = 5000

	issues := ValidatePipeline(p)
	iss, ok := findIssue(issues, "runtime.batch_size")
	if !ok || iss.Severity != SeverityWarning {
		t.Fatalf("issues=%v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("warning must not be an error: %v", issues)
	}
}
