package output

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter formats the removal plan as JSON.
type JSONFormatter struct{}

// FormatPlan renders the plan as indented JSON.
func (f *JSONFormatter) FormatPlan(p *Plan) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
