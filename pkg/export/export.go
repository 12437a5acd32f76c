// Package export renders workflows and approval reports as YAML or JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts yaml, yml and json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml", "":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Report is the audit view of one workflow: the document itself, its status
// projection and the ordered steps.
type Report struct {
	ExportedAt time.Time            `json:"exportedAt" yaml:"exportedAt"`
	Workflow   models.Document      `json:"workflow"   yaml:"workflow"`
	Progress   models.GraphProgress `json:"progress"   yaml:"progress"`
	Steps      []models.Step        `json:"steps"      yaml:"steps"`
}

func NewReport(workflow *models.Workflow, exportedAt time.Time) Report {
	return Report{
		ExportedAt: exportedAt.UTC(),
		Workflow:   workflow.Snapshot(),
		Progress:   models.ProjectGraph(workflow.Graph()),
		Steps:      workflow.Graph().Steps(),
	}
}

// Write encodes v to w in the given format.
func Write(w io.Writer, format Format, v any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}

		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
