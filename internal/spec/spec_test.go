package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpecFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeSpecFile(t, "spec.yaml", `
meta:
  name: checkout-service
  description: Payment checkout flow
problem:
  statement: Checkout abandonment is too high
success_metrics:
  metrics:
    - Abandonment < 20%
export:
  bundle: true
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "checkout-service", s.Meta.Name)
	assert.Equal(t, "Checkout abandonment is too high", s.Problem.Statement)
	assert.True(t, s.Export.Bundle)

	// Defaults applied by Load.
	assert.Equal(t, "0.1.0", s.Meta.Version)
	assert.Equal(t, 80000, s.Constraints.BudgetTokens)
	assert.Equal(t, 30, s.Constraints.MaxDurationMinutes)
	assert.Equal(t, []string{"markdown"}, s.Export.Formats)

	// Omitted list fields become empty slices, not nil.
	assert.NotNil(t, s.Decisions)
	assert.NotNil(t, s.TestStrategy.BDDJourneys)
}

func TestLoadJSON(t *testing.T) {
	path := writeSpecFile(t, "spec.json",
		`{"meta":{"name":"svc","version":"1.2.3"},"problem":{"statement":"s"}}`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "svc", s.Meta.Name)
	assert.Equal(t, "1.2.3", s.Meta.Version)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeSpecFile(t, "spec.toml", "name = 'x'")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeSpecFile(t, "spec.yaml", "meta: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	original := &SourceSpec{
		Meta:           Meta{Name: "svc"},
		Problem:        Problem{Statement: "stmt"},
		SuccessMetrics: SuccessMetrics{Metrics: []string{"m1"}},
	}

	clone, err := original.Clone()
	require.NoError(t, err)

	clone.Meta.Name = "other"
	clone.SuccessMetrics.Metrics[0] = "changed"

	assert.Equal(t, "svc", original.Meta.Name)
	assert.Equal(t, "m1", original.SuccessMetrics.Metrics[0])
}

func TestAsVarsUsesJSONFieldNames(t *testing.T) {
	s := &SourceSpec{
		Meta:    Meta{Name: "svc", Version: "0.1.0"},
		Problem: Problem{Statement: "stmt"},
	}

	vars, err := s.AsVars()
	require.NoError(t, err)

	meta, ok := vars["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "svc", meta["name"])

	_, ok = vars["success_metrics"]
	assert.True(t, ok)
}
