package output

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats the removal plan as YAML.
type YAMLFormatter struct{}

// FormatPlan renders the plan as a YAML document.
func (f *YAMLFormatter) FormatPlan(p *Plan) (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to YAML: %w", err)
	}
	return string(data), nil
}
