// Package spec defines the evolving structured specification a run consumes,
// its YAML/JSON loader, and the JSON Schema validator that gates every
// mutation of it.
package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Meta holds spec identity fields.
type Meta struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description,omitempty"`
}

// Problem is the problem statement the pack documents.
type Problem struct {
	Statement string `json:"statement" yaml:"statement"`
	Context   string `json:"context" yaml:"context,omitempty"`
}

// Constraints bound the generation run.
type Constraints struct {
	OfflineOK          bool `json:"offline_ok" yaml:"offline_ok"`
	BudgetTokens       int  `json:"budget_tokens" yaml:"budget_tokens"`
	MaxDurationMinutes int  `json:"max_duration_minutes" yaml:"max_duration_minutes"`
}

// SuccessMetrics lists acceptance criteria for the documented product.
type SuccessMetrics struct {
	Metrics []string `json:"metrics" yaml:"metrics"`
}

// DiagramScope selects which diagrams the Diagrammer produces.
type DiagramScope struct {
	IncludeSequence     bool `json:"include_sequence" yaml:"include_sequence"`
	IncludeLifecycle    bool `json:"include_lifecycle" yaml:"include_lifecycle"`
	IncludeArchitecture bool `json:"include_architecture" yaml:"include_architecture"`
}

// TestStrategy configures the QA architecture section of the test plan.
type TestStrategy struct {
	UnitTests        bool     `json:"unit_tests" yaml:"unit_tests"`
	IntegrationTests bool     `json:"integration_tests" yaml:"integration_tests"`
	E2ETests         bool     `json:"e2e_tests" yaml:"e2e_tests"`
	BDDJourneys      []string `json:"bdd_journeys" yaml:"bdd_journeys,omitempty"`
}

// Operations configures deployment-facing sections.
type Operations struct {
	CICD       bool `json:"ci_cd" yaml:"ci_cd"`
	Monitoring bool `json:"monitoring" yaml:"monitoring"`
	Logging    bool `json:"logging" yaml:"logging"`
}

// Export configures output packaging.
type Export struct {
	Formats []string `json:"formats" yaml:"formats"`
	Bundle  bool     `json:"bundle" yaml:"bundle"`
}

// SourceSpec is the structured specification a run transforms into a pack.
// The orchestrator owns the committed copy; agents may return an updated copy
// but never mutate the one they were handed.
type SourceSpec struct {
	Meta           Meta           `json:"meta" yaml:"meta"`
	Problem        Problem        `json:"problem" yaml:"problem"`
	Constraints    Constraints    `json:"constraints" yaml:"constraints"`
	SuccessMetrics SuccessMetrics `json:"success_metrics" yaml:"success_metrics"`
	Decisions      []string       `json:"decisions" yaml:"decisions,omitempty"`
	DiagramScope   DiagramScope   `json:"diagram_scope" yaml:"diagram_scope"`
	TestStrategy   TestStrategy   `json:"test_strategy" yaml:"test_strategy"`
	Operations     Operations     `json:"operations" yaml:"operations"`
	Export         Export         `json:"export" yaml:"export"`
}

// ensureSlices replaces nil list fields with empty slices so the spec
// serializes to JSON arrays, never null. The schema types these fields as
// arrays and nil would otherwise fail validation on a spec that simply
// omits them.
func (s *SourceSpec) ensureSlices() {
	if s.Decisions == nil {
		s.Decisions = []string{}
	}
	if s.SuccessMetrics.Metrics == nil {
		s.SuccessMetrics.Metrics = []string{}
	}
	if s.TestStrategy.BDDJourneys == nil {
		s.TestStrategy.BDDJourneys = []string{}
	}
	if s.Export.Formats == nil {
		s.Export.Formats = []string{}
	}
}

// ApplyDefaults fills unset numeric and list fields with their documented
// defaults. Called by Load before validation.
func (s *SourceSpec) ApplyDefaults() {
	s.ensureSlices()
	if s.Meta.Version == "" {
		s.Meta.Version = "0.1.0"
	}
	if s.Constraints.BudgetTokens == 0 {
		s.Constraints.BudgetTokens = 80000
	}
	if s.Constraints.MaxDurationMinutes == 0 {
		s.Constraints.MaxDurationMinutes = 30
	}
	if len(s.Export.Formats) == 0 {
		s.Export.Formats = []string{"markdown"}
	}
}

// Clone returns a deep copy. Agents work on clones so the orchestrator's
// committed spec is only ever replaced wholesale at a stage boundary.
func (s *SourceSpec) Clone() (*SourceSpec, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to clone spec: %w", err)
	}
	var out SourceSpec
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to clone spec: %w", err)
	}
	return &out, nil
}

// AsVars flattens the spec into the variable map handed to the template
// renderer. Keys follow the JSON field names.
func (s *SourceSpec) AsVars() (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to build template variables: %w", err)
	}
	var vars map[string]any
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil, fmt.Errorf("failed to build template variables: %w", err)
	}
	return vars, nil
}

// Load reads a spec from a YAML or JSON file, applies defaults, and returns
// it unvalidated; schema validation is a separate, explicit gate.
func Load(path string) (*SourceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}

	var s SourceSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse YAML spec: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse JSON spec: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported spec format %q (expected .yaml, .yml or .json)", filepath.Ext(path))
	}

	s.ApplyDefaults()
	return &s, nil
}
