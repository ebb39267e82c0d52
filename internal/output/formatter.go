// Package output provides formatters for displaying the removal plan
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"
	"os"

	"github.com/ovaforge/ovaforge/internal/vsphere"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Plan describes what a removal would do: the observed VM state and the
// actions that --apply would execute.
type Plan struct {
	// Instance is the full VM name in the hypervisor.
	Instance string `json:"instance" yaml:"instance"`

	// Exists reports whether the VM was found.
	Exists bool `json:"exists" yaml:"exists"`

	// VM is the observed state; nil when the VM does not exist.
	VM *vsphere.VMInfo `json:"vm,omitempty" yaml:"vm,omitempty"`

	// Actions lists the destructive steps in execution order.
	Actions []string `json:"actions" yaml:"actions"`

	// Apply reports whether the actions will actually run.
	Apply bool `json:"apply" yaml:"apply"`
}

// Formatter formats a removal plan for output.
type Formatter interface {
	// FormatPlan renders a removal plan.
	FormatPlan(p *Plan) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders, Color: os.Getenv("NO_COLOR") == ""}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
