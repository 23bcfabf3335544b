package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

//go:embed pipeline.schema.json
var pipelineSchema string

const schemaURL = "pipeline.schema.json"

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

// PipelineFile describes the startup pipeline
type PipelineFile struct {
	Split    string        `json:"split,omitempty"`
	Source   *SourceSpec   `json:"source,omitempty"`
	Filters  []FilterSpec  `json:"filters,omitempty"`
	Displays []DisplaySpec `json:"displays,omitempty"`
}

// SourceSpec overrides the environment source settings
type SourceSpec struct {
	Kind       string  `json:"kind"`
	Path       string  `json:"path,omitempty"`
	SampleRate float64 `json:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	Block      int     `json:"block,omitempty"`
	Seed       *int64  `json:"seed,omitempty"`
	Loop       *bool   `json:"loop,omitempty"`
	Axis       string  `json:"axis,omitempty"`
}

// FilterSpec is one chain entry
type FilterSpec struct {
	Kind   string                 `json:"kind"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// StringParams renders params the way the shell would pass them
func (f FilterSpec) StringParams() map[string]string {
	out := make(map[string]string, len(f.Params))
	for k, v := range f.Params {
		switch n := v.(type) {
		case float64:
			out[k] = strconv.FormatFloat(n, 'g', -1, 64)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// DisplaySpec is one display
type DisplaySpec struct {
	Kind   string   `json:"kind"`
	Title  string   `json:"title,omitempty"`
	Feed   string   `json:"feed,omitempty"`
	Window float64  `json:"window,omitempty"`
	YMin   *float64 `json:"ymin,omitempty"`
	YMax   *float64 `json:"ymax,omitempty"`
}

// DefaultPipeline is used when no file is given: no filters and the four
// standard displays split between raw and filtered
func DefaultPipeline() *PipelineFile {
	return &PipelineFile{
		Displays: []DisplaySpec{
			{Kind: "time", Title: "raw-time"},
			{Kind: "frequency", Title: "raw-frequency"},
			{Kind: "time", Title: "filtered-time"},
			{Kind: "frequency", Title: "filtered-frequency"},
		},
	}
}

// LoadPipelineFile reads, validates and decodes a YAML or TOML pipeline file
func LoadPipelineFile(path string) (*PipelineFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return ParsePipeline(raw, filepath.Ext(path))
}

// ParsePipeline decodes pipeline content; ext selects the format
func ParsePipeline(raw []byte, ext string) (*PipelineFile, error) {
	var doc interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", types.ErrInvalidConfig, err)
		}
	case ".toml":
		var table map[string]interface{}
		if err := toml.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("%w: parse toml: %v", types.ErrInvalidConfig, err)
		}
		doc = table
	default:
		return nil, fmt.Errorf("%w: unsupported pipeline file extension %q", types.ErrInvalidConfig, ext)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	// normalize to plain JSON values so the schema sees float64 numbers
	normalized, err := sonic.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: normalize pipeline: %v", types.ErrInvalidConfig, err)
	}
	var payload interface{}
	if err := sonic.Unmarshal(normalized, &payload); err != nil {
		return nil, fmt.Errorf("%w: normalize pipeline: %v", types.ErrInvalidConfig, err)
	}

	schema, err := pipelineValidator()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}

	var file PipelineFile
	if err := sonic.Unmarshal(normalized, &file); err != nil {
		return nil, fmt.Errorf("%w: decode pipeline: %v", types.ErrInvalidConfig, err)
	}
	return &file, nil
}

func pipelineValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(pipelineSchema)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// Apply merges the file's source and split settings over the environment config
func (p *PipelineFile) Apply(cfg *Config) {
	if p.Split != "" {
		cfg.Pipeline.SplitPolicy = p.Split
	}
	s := p.Source
	if s == nil {
		return
	}
	cfg.Source.Kind = s.Kind
	if s.Path != "" {
		cfg.Source.Path = s.Path
	}
	if s.SampleRate > 0 {
		cfg.Source.SampleRate = s.SampleRate
	}
	if s.Channels > 0 {
		cfg.Source.Channels = s.Channels
	}
	if s.Block > 0 {
		cfg.Source.Block = s.Block
	}
	if s.Seed != nil {
		cfg.Source.Seed = *s.Seed
	}
	if s.Loop != nil {
		cfg.Source.Loop = *s.Loop
	}
	if s.Axis != "" {
		cfg.Source.Axis = s.Axis
	}
}
