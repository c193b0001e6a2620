package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/research"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

func testRunContext(t *testing.T) blackboard.RunContext {
	t.Helper()
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)
	return rc
}

func testSpec() *spec.SourceSpec {
	s := &spec.SourceSpec{
		Meta: spec.Meta{Name: "checkout-service", Description: "Payment checkout flow"},
		Problem: spec.Problem{
			Statement: "Checkout abandonment is too high",
			Context:   "Mobile users drop at the payment step",
		},
		SuccessMetrics: spec.SuccessMetrics{Metrics: []string{"Abandonment < 20%", "p95 < 300ms"}},
		DiagramScope:   spec.DiagramScope{IncludeLifecycle: true, IncludeSequence: true},
	}
	s.ApplyDefaults()
	return s
}

func TestFramerFillsGaps(t *testing.T) {
	rc := testRunContext(t)
	s := &spec.SourceSpec{
		Meta:    spec.Meta{Name: "bare"},
		Problem: spec.Problem{Statement: "stmt"},
	}
	s.ApplyDefaults()

	out := Framer{}.Run(context.Background(), rc, s, blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, out.Status)
	require.NotNil(t, out.UpdatedSpec)

	assert.NotEmpty(t, out.UpdatedSpec.Meta.Description)
	assert.NotEmpty(t, out.UpdatedSpec.Problem.Context)
	assert.NotEmpty(t, out.UpdatedSpec.SuccessMetrics.Metrics)

	// The committed spec is untouched; only the returned copy changed.
	assert.Empty(t, s.Meta.Description)

	assert.Contains(t, out.Notes, "filled meta.description")
	assert.Contains(t, out.Notes, "filled problem.context")
	assert.Contains(t, out.Notes, "filled success_metrics.metrics")
}

func TestFramerLeavesCompleteSpecAlone(t *testing.T) {
	rc := testRunContext(t)
	s := testSpec()

	out := Framer{}.Run(context.Background(), rc, s, blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, out.Status)
	assert.Equal(t, s.Meta.Description, out.UpdatedSpec.Meta.Description)
	assert.Contains(t, out.Notes, "filled 0 field(s)")
}

type failingSource struct{}

func (failingSource) Search(ctx context.Context, query string, limit int) ([]research.Document, error) {
	return nil, errors.New("connection reset")
}

type recordingSource struct {
	queries []string
	docs    []research.Document
}

func (s *recordingSource) Search(ctx context.Context, query string, limit int) ([]research.Document, error) {
	s.queries = append(s.queries, query)
	return s.docs, nil
}

func TestLibrarianOfflineShortCircuits(t *testing.T) {
	rc := testRunContext(t)
	rc.Offline = true
	rc.Research = true

	src := &recordingSource{}
	out := Librarian{Source: src}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())

	require.Equal(t, blackboard.StatusOK, out.Status)
	assert.Empty(t, out.Artifacts)
	assert.Empty(t, src.queries, "offline runs must not touch the research source")
}

func TestLibrarianQueriesWhenEnabled(t *testing.T) {
	rc := testRunContext(t)
	rc.Offline = false
	rc.Research = true

	src := &recordingSource{docs: []research.Document{{Title: "doc", URL: "https://example.com"}}}
	out := Librarian{Source: src}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())

	require.Equal(t, blackboard.StatusOK, out.Status)
	require.Len(t, src.queries, 1)
	assert.Equal(t, "Checkout abandonment is too high", src.queries[0])
	assert.Contains(t, out.Notes, "retrieved 1 research document(s)")
}

func TestLibrarianFetchFailureIsRetryable(t *testing.T) {
	rc := testRunContext(t)
	rc.Offline = false
	rc.Research = true

	out := Librarian{Source: failingSource{}}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())
	assert.Equal(t, blackboard.StatusRetryableFailure, out.Status)
	assert.Error(t, out.Err)
}

func TestSlicerPublishesMVPSlice(t *testing.T) {
	rc := testRunContext(t)
	out := Slicer{}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())

	require.Equal(t, blackboard.StatusOK, out.Status)
	require.NotEmpty(t, out.Notes)
	assert.Contains(t, out.Notes[0], "Checkout abandonment is too high")
	assert.Contains(t, out.Notes[0], "Abandonment < 20%")
}

func TestPRDWriterWritesDocuments(t *testing.T) {
	rc := testRunContext(t)
	out := PRDWriter{Renderer: render.NewRenderer()}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())

	require.Equal(t, blackboard.StatusOK, out.Status, "err: %v", out.Err)
	require.Len(t, out.Artifacts, 2)
	assert.Equal(t, "prd.md", out.Artifacts[0].Name)
	assert.Equal(t, "test_plan.md", out.Artifacts[1].Name)

	content, err := os.ReadFile(filepath.Join(rc.OutputRoot, "prd.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "checkout-service")
	assert.NotContains(t, string(content), "\r\n", "written bytes must be normalized")
}

func TestPRDWriterDeepPackAddsContracts(t *testing.T) {
	rc := testRunContext(t)
	rc.Pack = blackboard.PackBoth

	out := PRDWriter{Renderer: render.NewRenderer()}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, out.Status, "err: %v", out.Err)
	require.Len(t, out.Artifacts, 3)
	assert.Equal(t, "contracts.json", out.Artifacts[2].Name)
	assert.Equal(t, blackboard.PackDeep, out.Artifacts[2].Pack)
}

func TestPRDWriterQuotedNameStaysValidJSON(t *testing.T) {
	rc := testRunContext(t)
	rc.Pack = blackboard.PackDeep

	s := testSpec()
	s.Meta.Name = `My "Smart" App`

	out := PRDWriter{Renderer: render.NewRenderer()}.Run(context.Background(), rc, s, blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, out.Status, "err: %v", out.Err)

	raw, err := os.ReadFile(filepath.Join(rc.OutputRoot, "contracts.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, `My "Smart" App`, doc["service"])
}

func TestPRDWriterIsIdempotent(t *testing.T) {
	rc := testRunContext(t)
	w := PRDWriter{Renderer: render.NewRenderer()}

	first := w.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, first.Status)
	second := w.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, second.Status)

	assert.Equal(t, first.Artifacts, second.Artifacts, "same spec must produce identical refs and hashes")
}

func TestDiagrammerHonorsScope(t *testing.T) {
	rc := testRunContext(t)
	s := testSpec()
	s.DiagramScope = spec.DiagramScope{IncludeLifecycle: true, IncludeSequence: false}

	out := Diagrammer{Renderer: render.NewRenderer()}.Run(context.Background(), rc, s, blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, out.Status, "err: %v", out.Err)
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, "diagrams/lifecycle.mmd", out.Artifacts[0].Path)
}

func TestQAArchitectEnhancesTestPlan(t *testing.T) {
	rc := testRunContext(t)
	s := testSpec()
	s.TestStrategy.BDDJourneys = []string{"guest checkout"}

	// The PRDWriter must have produced the plan first.
	w := PRDWriter{Renderer: render.NewRenderer()}
	require.Equal(t, blackboard.StatusOK, w.Run(context.Background(), rc, s, blackboard.NewBoard()).Status)

	out := QAArchitect{}.Run(context.Background(), rc, s, blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, out.Status, "err: %v", out.Err)
	assert.Empty(t, out.Artifacts, "enhancement rewrites an existing artifact")

	content, err := os.ReadFile(filepath.Join(rc.OutputRoot, "test_plan.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "## Test Matrix")
	assert.Contains(t, string(content), "### guest checkout")
}

func TestQAArchitectWithoutPlanIsFatal(t *testing.T) {
	rc := testRunContext(t)
	out := QAArchitect{}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())
	assert.Equal(t, blackboard.StatusFatalFailure, out.Status)
}

func TestRoadmapperReadsSliceFromBoard(t *testing.T) {
	rc := testRunContext(t)
	board := blackboard.NewBoard()
	require.NoError(t, board.Publish("slice_mvp", blackboard.Entry{Notes: []string{"Deliver the smallest flow."}}))

	out := Roadmapper{Renderer: render.NewRenderer()}.Run(context.Background(), rc, testSpec(), board)
	require.Equal(t, blackboard.StatusOK, out.Status, "err: %v", out.Err)
	require.Len(t, out.Artifacts, 1)

	content, err := os.ReadFile(filepath.Join(rc.OutputRoot, "roadmap.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Deliver the smallest flow.")
}

func TestRoadmapperWithoutSliceIsFatal(t *testing.T) {
	rc := testRunContext(t)
	out := Roadmapper{Renderer: render.NewRenderer()}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())
	assert.Equal(t, blackboard.StatusFatalFailure, out.Status)
}

func TestCriticPassesCleanBoard(t *testing.T) {
	rc := testRunContext(t)
	board := blackboard.NewBoard()

	ref, err := writeArtifact(rc, "prd.md", "PRD", blackboard.PackBalanced, []byte("# PRD\n"))
	require.NoError(t, err)
	require.NoError(t, board.Publish("write_prd", blackboard.Entry{Artifacts: []blackboard.ArtifactRef{ref}}))

	out := Critic{}.Run(context.Background(), rc, testSpec(), board)
	assert.Equal(t, blackboard.StatusOK, out.Status)
}

func TestCriticFlagsMissingArtifact(t *testing.T) {
	rc := testRunContext(t)
	board := blackboard.NewBoard()
	require.NoError(t, board.Publish("write_prd", blackboard.Entry{Artifacts: []blackboard.ArtifactRef{
		{Name: "ghost.md", Purpose: "missing", Pack: blackboard.PackBalanced, Path: "ghost.md", SHA256: "00"},
	}}))

	out := Critic{}.Run(context.Background(), rc, testSpec(), board)
	require.Equal(t, blackboard.StatusFatalFailure, out.Status)
	assert.Contains(t, out.Err.Error(), "ghost.md")
}

func TestPackagerBundleDisabled(t *testing.T) {
	rc := testRunContext(t)
	out := Packager{}.Run(context.Background(), rc, testSpec(), blackboard.NewBoard())
	require.Equal(t, blackboard.StatusOK, out.Status)
	assert.Empty(t, out.Artifacts)
}

func TestPackagerBundlesDeterministically(t *testing.T) {
	rc := testRunContext(t)
	s := testSpec()
	s.Export.Bundle = true

	board := blackboard.NewBoard()
	refA, err := writeArtifact(rc, "prd.md", "PRD", blackboard.PackBalanced, []byte("# PRD\n"))
	require.NoError(t, err)
	refB, err := writeArtifact(rc, "roadmap.md", "Roadmap", blackboard.PackBalanced, []byte("# Roadmap\n"))
	require.NoError(t, err)
	require.NoError(t, board.Publish("write_prd", blackboard.Entry{Artifacts: []blackboard.ArtifactRef{refA, refB}}))

	first := Packager{}.Run(context.Background(), rc, s, board)
	require.Equal(t, blackboard.StatusOK, first.Status, "err: %v", first.Err)
	require.Len(t, first.Artifacts, 1)
	assert.Equal(t, BundleName, first.Artifacts[0].Name)

	second := Packager{}.Run(context.Background(), rc, s, board)
	require.Equal(t, blackboard.StatusOK, second.Status)
	assert.Equal(t, first.Artifacts[0].SHA256, second.Artifacts[0].SHA256,
		"bundle bytes must be identical across reruns")
}

func TestWriteArtifactConfinedToOutputRoot(t *testing.T) {
	rc := testRunContext(t)

	_, err := writeArtifact(rc, "../escape.md", "bad", blackboard.PackBalanced, []byte("x"))
	assert.Error(t, err)

	_, err = writeArtifact(rc, "/etc/passwd", "bad", blackboard.PackBalanced, []byte("x"))
	assert.Error(t, err)
}
