package templatesheet

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"gopkg.in/yaml.v3"
)

// OutputFormat is the container produced by an export.
type OutputFormat string

const (
	XLSX OutputFormat = "xlsx"
	CSV  OutputFormat = "csv"
)

// TemplateStyle selects optional extra sheets.
type TemplateStyle string

const (
	StyleStandard TemplateStyle = "standard"
	// StyleDetailed appends a Summary sheet to xlsx exports.
	StyleDetailed TemplateStyle = "detailed"
)

// ExportConfig controls one export. The zero value is not valid; start from
// DefaultConfig or ParseConfig.
type ExportConfig struct {
	OutputFormat  OutputFormat  `yaml:"outputFormat"`
	TemplateStyle TemplateStyle `yaml:"templateStyle"`
	// ExcludeConditionalFields drops form fields carrying displayWhen, editableWhen or
	// requiredWhen.
	ExcludeConditionalFields bool `yaml:"excludeConditionalFields"`
	// Filter is an expr boolean over record fields, e.g. `isRequired && fieldType != "Hidden"`.
	Filter string `yaml:"filter"`
	// LayoutPath names a layout workbook. The caller loads it into Layout.
	LayoutPath string `yaml:"layout"`
	Layout     []byte `yaml:"-"`

	Logger *log.Logger `yaml:"-"`
}

// DefaultConfig returns the standard xlsx export.
func DefaultConfig() ExportConfig {
	return ExportConfig{OutputFormat: XLSX, TemplateStyle: StyleStandard}
}

// ParseConfig decodes a YAML export config on top of the defaults. Unknown keys are
// rejected.
func ParseConfig(data []byte) (ExportConfig, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return ExportConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ExportConfig{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated knobs.
func (c ExportConfig) Validate() error {
	switch c.OutputFormat {
	case XLSX, CSV:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, c.OutputFormat)
	}
	switch c.TemplateStyle {
	case StyleStandard, StyleDetailed, "":
	default:
		return fmt.Errorf("unknown template style %q", c.TemplateStyle)
	}
	return nil
}

// ParseFormat parses an output format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case XLSX, CSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (c ExportConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}
