package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/agent"
	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/internal/audit"
	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/research"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

func validSpec() *spec.SourceSpec {
	s := &spec.SourceSpec{
		Meta: spec.Meta{Name: "checkout-service", Description: "Payment checkout flow"},
		Problem: spec.Problem{
			Statement: "Checkout abandonment is too high",
			Context:   "Mobile users drop at the payment step",
		},
		SuccessMetrics: spec.SuccessMetrics{Metrics: []string{"Abandonment < 20%"}},
		DiagramScope:   spec.DiagramScope{IncludeLifecycle: true, IncludeSequence: true},
		TestStrategy:   spec.TestStrategy{UnitTests: true, BDDJourneys: []string{"guest checkout"}},
		Export:         spec.Export{Bundle: true},
	}
	s.ApplyDefaults()
	return s
}

func newTestEngine(t *testing.T, rc blackboard.RunContext, source research.Source) (*Engine, *audit.Log) {
	t.Helper()
	validator, err := spec.NewValidator()
	require.NoError(t, err)

	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"), rc.RunID)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	e := NewEngine(rc, validator, render.NewRenderer(), source, log)
	e.SetSleep(func(time.Duration) {})
	return e, log
}

func TestRunFullPipelineOffline(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)

	e, _ := newTestEngine(t, rc, nil)
	result, err := e.Run(context.Background(), validSpec())
	require.NoError(t, err)

	// Research is skipped offline; the eight remaining agent stages each
	// consume one step.
	assert.Equal(t, 8, result.Invocations)
	assert.Equal(t, len(pipeline)-1, result.StagesRun)
	assert.True(t, result.Index.Sealed())

	for _, name := range []string{"prd.md", "test_plan.md", "roadmap.md", "diagrams/lifecycle.mmd", "diagrams/sequence.mmd", "bundle.zip", artifact.ManifestName} {
		_, statErr := os.Stat(filepath.Join(rc.OutputRoot, name))
		assert.NoError(t, statErr, "expected %s in output root", name)
	}

	assert.Empty(t, result.Index.Verify(rc.OutputRoot), "manifest hashes must match the bytes on disk")
}

func TestRunRehashesEnhancedTestPlan(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)

	e, _ := newTestEngine(t, rc, nil)
	result, err := e.Run(context.Background(), validSpec())
	require.NoError(t, err)

	// The QA stage rewrites test_plan.md after it was first published, so
	// the manifest must carry the hash of the final bytes.
	var planHash string
	for _, ref := range result.Index.Artifacts {
		if ref.Name == "test_plan.md" {
			planHash = ref.SHA256
		}
	}
	require.NotEmpty(t, planHash)

	diskHash, err := artifact.HashFile(filepath.Join(rc.OutputRoot, "test_plan.md"))
	require.NoError(t, err)
	assert.Equal(t, diskHash, planHash)
}

func TestRunInvalidSpecFailsValidation(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)

	s := validSpec()
	s.Meta.Name = ""

	e, _ := newTestEngine(t, rc, nil)
	_, err = e.Run(context.Background(), s)

	var runError *RunError
	require.ErrorAs(t, err, &runError)
	assert.Equal(t, KindValidationError, runError.Kind)
	assert.Equal(t, StageValidateSpec, runError.Stage)
	assert.Equal(t, 2, runError.ExitCode())

	_, statErr := os.Stat(filepath.Join(rc.OutputRoot, artifact.ManifestName))
	assert.True(t, os.IsNotExist(statErr), "failed runs must not write a manifest")
}

// flakySource fails a fixed number of searches before succeeding.
type flakySource struct {
	failures int
	calls    int
}

func (s *flakySource) Search(ctx context.Context, query string, limit int) ([]research.Document, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection reset")
	}
	return []research.Document{{Title: "doc", URL: "https://example.com"}}, nil
}

func TestResearchRetriesThenSucceeds(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)
	rc.Offline = false
	rc.Research = true

	source := &flakySource{failures: 2}
	e, _ := newTestEngine(t, rc, source)

	var delays []time.Duration
	e.SetSleep(func(d time.Duration) { delays = append(delays, d) })

	result, err := e.Run(context.Background(), validSpec())
	require.NoError(t, err)

	assert.Equal(t, 3, source.calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
	// Eight agent stages plus three research attempts.
	assert.Equal(t, 11, result.Invocations)
}

func TestResearchRetriesExhausted(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)
	rc.Offline = false
	rc.Research = true

	source := &flakySource{failures: 10}
	e, _ := newTestEngine(t, rc, source)

	_, err = e.Run(context.Background(), validSpec())

	var runError *RunError
	require.ErrorAs(t, err, &runError)
	assert.Equal(t, KindGenerationError, runError.Kind)
	assert.Equal(t, StageResearch, runError.Stage)
	assert.Equal(t, 3, runError.ExitCode())
	assert.Equal(t, 1+maxStageRetries, source.calls)
}

func TestBudgetExceeded(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)
	rc.StepBudget = 3

	e, _ := newTestEngine(t, rc, nil)
	_, err = e.Run(context.Background(), validSpec())

	var runError *RunError
	require.ErrorAs(t, err, &runError)
	assert.Equal(t, KindBudgetExceeded, runError.Kind)
	assert.Equal(t, 5, runError.ExitCode())

	_, statErr := os.Stat(filepath.Join(rc.OutputRoot, artifact.ManifestName))
	assert.True(t, os.IsNotExist(statErr))
}

// blockingAgent waits for its context to be cancelled.
type blockingAgent struct{}

func (blockingAgent) Name() string { return "blocking" }

func (blockingAgent) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) agent.Output {
	<-ctx.Done()
	return agent.Output{Status: blackboard.StatusFatalFailure, Err: ctx.Err()}
}

func TestStepTimeout(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)
	rc.StepTimeout = 20 * time.Millisecond

	e, _ := newTestEngine(t, rc, nil)
	e.agents[StageSliceMVP] = blockingAgent{}

	_, err = e.Run(context.Background(), validSpec())

	var runError *RunError
	require.ErrorAs(t, err, &runError)
	assert.Equal(t, KindStepTimeout, runError.Kind)
	assert.Equal(t, StageSliceMVP, runError.Stage)
	assert.Equal(t, 5, runError.ExitCode())
}

// slowThenFastAgent blocks until timeout for a fixed number of calls, then
// succeeds immediately.
type slowThenFastAgent struct {
	slowCalls int
	calls     int
}

func (a *slowThenFastAgent) Name() string { return "slow-then-fast" }

func (a *slowThenFastAgent) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) agent.Output {
	a.calls++
	if a.calls <= a.slowCalls {
		<-ctx.Done()
		return agent.Output{Status: blackboard.StatusFatalFailure, Err: ctx.Err()}
	}
	return agent.Output{Status: blackboard.StatusOK, Notes: []string{"research complete"}}
}

func TestResearchTimeoutIsRetried(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)
	rc.Offline = false
	rc.Research = true
	rc.StepTimeout = 20 * time.Millisecond

	e, _ := newTestEngine(t, rc, nil)
	ag := &slowThenFastAgent{slowCalls: 1}
	e.agents[StageResearch] = ag

	result, err := e.Run(context.Background(), validSpec())
	require.NoError(t, err)

	assert.Equal(t, 2, ag.calls)
	// Eight agent stages plus two research attempts.
	assert.Equal(t, 10, result.Invocations)
}

func TestResearchTimeoutExhaustsRetries(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)
	rc.Offline = false
	rc.Research = true
	rc.StepTimeout = 20 * time.Millisecond

	e, _ := newTestEngine(t, rc, nil)
	ag := &slowThenFastAgent{slowCalls: 10}
	e.agents[StageResearch] = ag

	_, err = e.Run(context.Background(), validSpec())

	var runError *RunError
	require.ErrorAs(t, err, &runError)
	assert.Equal(t, KindStepTimeout, runError.Kind)
	assert.Equal(t, StageResearch, runError.Stage)
	assert.Equal(t, 5, runError.ExitCode())
	assert.Equal(t, 1+maxStageRetries, ag.calls)
}

// collidingAgent publishes under its own stage key before returning, so the
// engine's commit collides.
type collidingAgent struct{}

func (collidingAgent) Name() string { return "colliding" }

func (collidingAgent) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) agent.Output {
	_ = board.Publish(string(StageSliceMVP), blackboard.Entry{Notes: []string{"premature"}})
	return agent.Output{Status: blackboard.StatusOK, Notes: []string{"done"}}
}

func TestDuplicatePublishIsCompositionError(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)

	e, _ := newTestEngine(t, rc, nil)
	e.agents[StageSliceMVP] = collidingAgent{}

	_, err = e.Run(context.Background(), validSpec())

	var runError *RunError
	require.ErrorAs(t, err, &runError)
	assert.Equal(t, KindCompositionError, runError.Kind)

	var keyErr *blackboard.ErrKeyExists
	assert.ErrorAs(t, err, &keyErr)
}

func TestCancelledContextAbortsRun(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := newTestEngine(t, rc, nil)
	_, err = e.Run(ctx, validSpec())

	var runError *RunError
	require.ErrorAs(t, err, &runError)
	assert.Equal(t, KindStepTimeout, runError.Kind)
	assert.Equal(t, 5, runError.ExitCode())
}

func TestRerunDiffersOnlyInGeneratedAt(t *testing.T) {
	runOnce := func(root string) *artifact.Index {
		rc, err := blackboard.NewRunContext(root)
		require.NoError(t, err)
		rc.RunID = "0191b9a0-0000-7000-8000-000000000000" // fixed across reruns

		e, _ := newTestEngine(t, rc, nil)
		result, err := e.Run(context.Background(), validSpec())
		require.NoError(t, err)
		return result.Index
	}

	first := runOnce(t.TempDir())
	second := runOnce(t.TempDir())

	assert.Equal(t, first.Artifacts, second.Artifacts, "artifact refs and hashes must be rerun-stable")
	assert.Equal(t, first.TemplateSet, second.TemplateSet)
	assert.Equal(t, first.RunID, second.RunID)
}

func TestAuditTrailCoversEveryStage(t *testing.T) {
	rc, err := blackboard.NewRunContext(t.TempDir())
	require.NoError(t, err)

	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	validator, err := spec.NewValidator()
	require.NoError(t, err)
	log, err := audit.Open(auditPath, rc.RunID)
	require.NoError(t, err)

	e := NewEngine(rc, validator, render.NewRenderer(), nil, log)
	e.SetSleep(func(time.Duration) {})
	_, err = e.Run(context.Background(), validSpec())
	require.NoError(t, err)
	require.NoError(t, log.Close())

	events, err := audit.Read(auditPath)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, ev := range events {
		seen[ev.Stage+"/"+ev.Event] = true
	}
	assert.True(t, seen["collect_inputs/run_start"])
	assert.True(t, seen["research/stage_skip"], "offline runs record the skipped research stage")
	assert.True(t, seen["write_prd/stage_ok"])
	assert.True(t, seen["audit/run_summary"])
	assert.True(t, seen["terminal/run_complete"])

	// stage_start events must follow the pipeline order exactly, with the
	// matching stage_ok before the next stage begins.
	var started, finished []Stage
	for _, ev := range events {
		switch ev.Event {
		case "stage_start":
			require.Equal(t, len(started), len(finished), "stage %s started before the previous stage finished", ev.Stage)
			started = append(started, Stage(ev.Stage))
		case "stage_ok":
			finished = append(finished, Stage(ev.Stage))
		}
	}
	var want []Stage
	for _, st := range pipeline {
		if st == StageResearch {
			continue
		}
		want = append(want, st)
	}
	assert.Equal(t, want, started)
	assert.Equal(t, want, finished)
}
