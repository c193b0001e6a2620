package inspect

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/internal/audit"
	"github.com/specforge/specforge/pkg/blackboard"
)

func testIndex(t *testing.T) *artifact.Index {
	t.Helper()
	idx := artifact.NewIndex("run-1", "packs-v1", "abc123")
	require.NoError(t, idx.Add(blackboard.ArtifactRef{
		Name: "prd.md", Purpose: "Product Requirements Document",
		Pack: blackboard.PackBalanced, Path: "prd.md",
		SHA256: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}))
	return idx
}

func TestOutputFormatValidate(t *testing.T) {
	assert.NoError(t, OutputFormatTable.Validate())
	assert.NoError(t, OutputFormatJSONL.Validate())
	assert.Error(t, OutputFormat("xml").Validate())
}

func TestFormatArtifactTable(t *testing.T) {
	var buf bytes.Buffer
	n := FormatArtifactTable(&buf, testIndex(t))

	assert.Equal(t, 1, n)
	out := buf.String()
	assert.Contains(t, out, "prd.md")
	assert.Contains(t, out, "0123456789ab", "digest is truncated for display")
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef")
	assert.Contains(t, out, "1 artifact in manifest")
}

func TestFormatArtifactTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	idx := artifact.NewIndex("run-9", "packs-v1", "abc123")
	n := FormatArtifactTable(&buf, idx)

	assert.Equal(t, 0, n)
	assert.Contains(t, buf.String(), "No artifacts in manifest for run 'run-9'")
}

func TestFormatArtifactJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatArtifactJSONL(&buf, testIndex(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var ref blackboard.ArtifactRef
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ref))
	assert.Equal(t, "prd.md", ref.Name)
	assert.Len(t, ref.SHA256, 64, "JSONL output carries the full digest")
}

func TestFormatEventTable(t *testing.T) {
	events := []audit.Event{
		{TimeISO: "2026-08-29T12:00:00Z", Level: "info", Stage: "write_prd", Event: "stage_ok", DurationMS: 12},
		{TimeISO: "2026-08-29T12:00:01Z", Level: "error", Stage: "research", Event: "stage_fail", DurationMS: 20004},
	}

	var buf bytes.Buffer
	n := FormatEventTable(&buf, events)

	assert.Equal(t, 2, n)
	out := buf.String()
	assert.Contains(t, out, "write_prd")
	assert.Contains(t, out, "stage_fail")
	assert.Contains(t, out, "2 events")
}

func TestFormatEventTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, FormatEventTable(&buf, nil))
	assert.Contains(t, buf.String(), "No audit events match")
}
