// Package config holds the pipeline configuration file model: where the raw
// census extract comes from, how it is parsed, which database the staging,
// transformed and warehouse tables live in, and which rule table applies.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/Huy0211/DPA01-project/internal/schema"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultJob              = "census_etl"
	DefaultStagingTable     = "raw_data"
	DefaultTransformedTable = "transformed_data"
	DefaultWarehouseTable   = "data_warehouse"
	DefaultEncodingsTable   = "category_codes"
	DefaultBatchSize        = 1000
)

// Transform kinds understood by the transform step.
const (
	TransformCoerce   = "coerce"
	TransformValidate = "validate"
)

// Pipeline is one ETL job definition.
type Pipeline struct {
	Job       string        `json:"job" yaml:"job"`
	Source    Source        `json:"source" yaml:"source"`
	Parser    Parser        `json:"parser" yaml:"parser"`
	Transform []Transform   `json:"transform" yaml:"transform" validate:"dive"`
	Storage   Storage       `json:"storage" yaml:"storage"`
	Runtime   RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// Source locates the raw extract.
type Source struct {
	Kind string     `json:"kind" yaml:"kind" validate:"required,oneof=file"`
	File FileSource `json:"file" yaml:"file"`
}

// FileSource is a local CSV file.
type FileSource struct {
	Path string `json:"path" yaml:"path" validate:"required"`
}

// Parser selects the input format: csv or json.
type Parser struct {
	Kind    string  `json:"kind" yaml:"kind" validate:"required,oneof=csv json"`
	Options Options `json:"options" yaml:"options"`
}

// Transform is one entry of the transform list.
type Transform struct {
	Kind    string  `json:"kind" yaml:"kind" validate:"required,oneof=coerce validate"`
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the database backend.
type Storage struct {
	Kind string   `json:"kind" yaml:"kind" validate:"required,oneof=postgres sqlite mssql"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig names the connection and the four tables the pipeline owns.
type DBConfig struct {
	DSN              string `json:"dsn" yaml:"dsn" validate:"required"`
	StagingTable     string `json:"staging_table" yaml:"staging_table" validate:"required,ident"`
	TransformedTable string `json:"transformed_table" yaml:"transformed_table" validate:"required,ident"`
	WarehouseTable   string `json:"warehouse_table" yaml:"warehouse_table" validate:"required,ident"`
	EncodingsTable   string `json:"encodings_table" yaml:"encodings_table" validate:"required,ident"`
}

// RuntimeConfig tunes execution.
type RuntimeConfig struct {
	// BatchSize caps rows per INSERT statement.
	BatchSize int `json:"batch_size" yaml:"batch_size" validate:"gte=0"`
}

// ApplyDefaults fills unset fields and expands environment variables in the
// DSN and the source path.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.Source.Kind == "" {
		p.Source.Kind = "file"
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	db := &p.Storage.DB
	if db.StagingTable == "" {
		db.StagingTable = DefaultStagingTable
	}
	if db.TransformedTable == "" {
		db.TransformedTable = DefaultTransformedTable
	}
	if db.WarehouseTable == "" {
		db.WarehouseTable = DefaultWarehouseTable
	}
	if db.EncodingsTable == "" {
		db.EncodingsTable = DefaultEncodingsTable
	}
	if p.Runtime.BatchSize == 0 {
		p.Runtime.BatchSize = DefaultBatchSize
	}
	db.DSN = os.ExpandEnv(db.DSN)
	p.Source.File.Path = os.ExpandEnv(p.Source.File.Path)
}

// TransformOptions returns the options of the first transform of kind.
func (p Pipeline) TransformOptions(kind string) (Options, bool) {
	for _, t := range p.Transform {
		if t.Kind == kind {
			return t.Options, true
		}
	}
	return nil, false
}

// Contract resolves the rule table. Without a validate transform, or with
// options.contract set to "census", the built-in census contract is used. An
// object value is decoded as a full schema.Contract.
func (p Pipeline) Contract() (schema.Contract, error) {
	opts, _ := p.TransformOptions(TransformValidate)
	raw, ok := opts.Any("contract")
	if !ok {
		return schema.Census(), nil
	}
	switch t := raw.(type) {
	case string:
		if t == "" || t == schema.CensusContractName {
			return schema.Census(), nil
		}
		return schema.Contract{}, fmt.Errorf("config: unknown contract %q", t)
	case map[string]any:
		var c schema.Contract
		if err := decodeContract(t, &c); err != nil {
			return schema.Contract{}, fmt.Errorf("config: decode contract: %w", err)
		}
		if err := c.Check(); err != nil {
			return schema.Contract{}, fmt.Errorf("config: %w", err)
		}
		return c, nil
	default:
		return schema.Contract{}, fmt.Errorf("config: contract must be a name or an object, got %T", raw)
	}
}

// decodeContract maps a decoded JSON/YAML object onto a Contract using its json
// tags. Unknown keys are errors so a typo in a rule is not silently ignored.
func decodeContract(in map[string]any, out *schema.Contract) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// CoerceTypes returns the coerce transform's "types" map, if configured.
func (p Pipeline) CoerceTypes() (map[string]string, bool) {
	opts, ok := p.TransformOptions(TransformCoerce)
	if !ok {
		return nil, false
	}
	return opts.StringMap("types"), true
}

// Unmarshal decodes a pipeline document. Input starting with '{' is JSON;
// anything else is YAML.
func Unmarshal(data []byte, v any) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// Load reads, decodes and defaults the pipeline at path. The extension picks
// the decoder: .yaml and .yml use YAML, everything else JSON.
func Load(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var p Pipeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	p.ApplyDefaults()
	return p, nil
}
