package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/specforge/specforge/internal/agent"
	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/internal/audit"
	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/research"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// Engine walks the pipeline stage by stage, invoking each stage's agent
// under the step timeout, committing successful outputs to the blackboard,
// and assembling the artifact index. One Engine instance runs one pipeline;
// it is not safe for concurrent Run calls.
type Engine struct {
	rc        blackboard.RunContext
	validator *spec.Validator
	agents    map[Stage]agent.Agent
	log       *audit.Log
	store     *render.Store
	now       func() time.Time
	sleep     func(time.Duration)
}

// NewEngine builds an engine for one run. The source may be nil for offline
// runs; rendering agents share the given renderer.
func NewEngine(rc blackboard.RunContext, validator *spec.Validator, renderer render.Renderer, source research.Source, log *audit.Log) *Engine {
	return &Engine{
		rc:        rc,
		validator: validator,
		agents: map[Stage]agent.Agent{
			StageFillGaps:    agent.Framer{},
			StageResearch:    agent.Librarian{Source: source},
			StageSliceMVP:    agent.Slicer{},
			StageWritePRD:    agent.PRDWriter{Renderer: renderer},
			StageGenDiagrams: agent.Diagrammer{Renderer: renderer},
			StageTestPlan:    agent.QAArchitect{},
			StageRoadmap:     agent.Roadmapper{Renderer: renderer},
			StageRedTeam:     agent.Critic{},
			StagePackage:     agent.Packager{},
		},
		log:   log,
		store: render.NewStore(),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// SetClock overrides the engine's time source for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetSleep overrides the retry delay function for tests.
func (e *Engine) SetSleep(sleep func(time.Duration)) {
	e.sleep = sleep
}

// Result summarizes a completed run.
type Result struct {
	RunID        string
	Index        *artifact.Index
	Board        *blackboard.Board
	ManifestPath string
	StagesRun    int
	Invocations  int
	Duration     time.Duration
}

// Run executes the full pipeline against the given spec. On failure the
// partial output directory is left in place but no manifest is written, so
// the run can never be mistaken for a sealed one.
func (e *Engine) Run(ctx context.Context, s *spec.SourceSpec) (*Result, error) {
	start := e.now()
	board := blackboard.NewBoard()
	idx := artifact.NewIndex(e.rc.RunID, e.store.TemplateSet(), e.store.TemplateCommit())

	working := s
	invocations := 0
	stagesRun := 0
	manifestPath := ""

	e.log.Info(string(StageCollectInputs), "run_start", 0, map[string]any{
		"offline":         e.rc.Offline,
		"research":        e.rc.Research,
		"pack":            string(e.rc.Pack),
		"step_budget":     e.rc.StepBudget,
		"step_timeout_ms": e.rc.StepTimeout.Milliseconds(),
	})

	for _, st := range pipeline {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(start, runErr(KindStepTimeout, st, err))
		}
		if st == StageResearch && !e.rc.ResearchEnabled() {
			e.log.Info(string(st), "stage_skip", 0, map[string]any{"reason": "research disabled"})
			continue
		}

		stagesRun++
		stageStart := e.now()
		e.log.Info(string(st), "stage_start", 0, nil)

		var err error
		if st.internal() {
			err = e.runInternal(st, working, board, idx, stagesRun, start)
		} else {
			working, err = e.runAgent(ctx, st, working, board, &invocations)
		}
		if err == nil && st == StagePackage {
			manifestPath, err = e.sealManifest(board, idx)
		}
		if err != nil {
			e.log.Error(string(st), "stage_fail", e.now().Sub(stageStart), map[string]any{"error": err.Error()})
			return nil, e.fail(start, err)
		}
		e.log.Info(string(st), "stage_ok", e.now().Sub(stageStart), nil)
	}

	duration := e.now().Sub(start)
	e.log.Info(string(StageTerminal), "run_complete", duration, map[string]any{
		"stages":      stagesRun,
		"invocations": invocations,
		"artifacts":   len(idx.Artifacts),
	})

	return &Result{
		RunID:        e.rc.RunID,
		Index:        idx,
		Board:        board,
		ManifestPath: manifestPath,
		StagesRun:    stagesRun,
		Invocations:  invocations,
		Duration:     duration,
	}, nil
}

// fail records the terminal failure event and passes the error through.
func (e *Engine) fail(start time.Time, err error) error {
	e.log.Error(string(StageTerminal), "run_failed", e.now().Sub(start), map[string]any{"error": err.Error()})
	return err
}

// runInternal executes the stages the orchestrator handles itself.
func (e *Engine) runInternal(st Stage, working *spec.SourceSpec, board *blackboard.Board, idx *artifact.Index, stagesRun int, start time.Time) error {
	switch st {
	case StageCollectInputs:
		if err := e.rc.Validate(); err != nil {
			return runErr(KindValidationError, st, err)
		}
		if err := os.MkdirAll(e.rc.OutputRoot, 0o755); err != nil {
			return runErr(KindGenerationError, st, fmt.Errorf("failed to create output root: %w", err))
		}
		return nil

	case StageValidateSpec:
		result, err := e.validator.Validate(working)
		if err != nil {
			return runErr(KindGenerationError, st, err)
		}
		if verr := result.Err(); verr != nil {
			return runErr(KindValidationError, st, verr)
		}
		return nil

	case StageRenderPacks:
		// Artifacts may have been rewritten in place since they were
		// published, so every file is re-hashed from disk here. Hashing is
		// retried as a whole; the index is only touched once it succeeds.
		var refs []blackboard.ArtifactRef
		if err := e.withRetry(st, func() error {
			var hashErr error
			refs, hashErr = rehash(e.rc.OutputRoot, board)
			return hashErr
		}); err != nil {
			return err
		}
		for _, ref := range refs {
			if err := idx.Add(ref); err != nil {
				return runErr(KindRenderError, st, err)
			}
		}
		return nil

	case StageAudit:
		e.log.Info(string(st), "run_summary", e.now().Sub(start), map[string]any{
			"stages":    stagesRun,
			"artifacts": len(idx.Artifacts),
			"sealed":    idx.Sealed(),
		})
		return nil

	default:
		return runErr(KindCompositionError, st, fmt.Errorf("stage %s has no internal handler", st))
	}
}

// rehash returns the board's artifact references with hashes recomputed from
// the bytes on disk.
func rehash(outputRoot string, board *blackboard.Board) ([]blackboard.ArtifactRef, error) {
	refs := board.Artifacts()
	for i, ref := range refs {
		sum, err := artifact.HashFile(filepath.Join(outputRoot, ref.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", ref.Path, err)
		}
		refs[i].SHA256 = sum
	}
	return refs, nil
}

// sealManifest adds the packager's output to the index, seals it, and writes
// the manifest. This is the only place the index is sealed; a failed run
// never reaches it.
func (e *Engine) sealManifest(board *blackboard.Board, idx *artifact.Index) (string, error) {
	if entry, found := board.Get(string(StagePackage)); found {
		for _, ref := range entry.Artifacts {
			if err := idx.Add(ref); err != nil {
				return "", runErr(KindGenerationError, StagePackage, err)
			}
		}
	}
	if err := idx.Seal(e.now()); err != nil {
		return "", runErr(KindGenerationError, StagePackage, err)
	}
	path, err := idx.Write(e.rc.OutputRoot)
	if err != nil {
		return "", runErr(KindGenerationError, StagePackage, err)
	}
	return path, nil
}

// runAgent invokes the stage's agent under budget, timeout, and retry
// policy, then commits a successful output to the board. It returns the
// possibly updated working spec.
func (e *Engine) runAgent(ctx context.Context, st Stage, working *spec.SourceSpec, board *blackboard.Board, invocations *int) (*spec.SourceSpec, error) {
	ag, bound := e.agents[st]
	if !bound {
		return working, runErr(KindCompositionError, st, fmt.Errorf("no agent bound to stage"))
	}

	bo := newBackoff()
	for attempt := 0; ; attempt++ {
		// Every attempt, retries included, consumes one step.
		*invocations++
		if *invocations > e.rc.StepBudget {
			return working, runErr(KindBudgetExceeded, st, fmt.Errorf("step budget %d exhausted", e.rc.StepBudget))
		}

		out, rerr := e.invoke(ctx, st, ag, working, board)
		if rerr != nil {
			// A stage timeout on a retryable stage gets the same retry
			// treatment as a retryable failure, unless the run itself was
			// cancelled.
			if rerr.Kind == KindStepTimeout && st.retryable() && attempt < maxStageRetries && ctx.Err() == nil {
				delay := bo.NextBackOff()
				e.log.Info(string(st), "stage_retry", 0, map[string]any{
					"attempt":  attempt + 1,
					"delay_ms": delay.Milliseconds(),
					"error":    rerr.Error(),
				})
				e.sleep(delay)
				continue
			}
			return working, rerr
		}

		switch out.Status {
		case blackboard.StatusOK:
			return e.commit(st, out, working, board)

		case blackboard.StatusRetryableFailure:
			if st.retryable() && attempt < maxStageRetries {
				delay := bo.NextBackOff()
				e.log.Info(string(st), "stage_retry", 0, map[string]any{
					"attempt":  attempt + 1,
					"delay_ms": delay.Milliseconds(),
					"error":    fmt.Sprint(out.Err),
				})
				e.sleep(delay)
				continue
			}
			return working, runErr(st.failureKind(), st, out.Err)

		default:
			return working, runErr(st.failureKind(), st, out.Err)
		}
	}
}

// invoke runs one agent attempt under the step timeout.
func (e *Engine) invoke(ctx context.Context, st Stage, ag agent.Agent, working *spec.SourceSpec, board *blackboard.Board) (agent.Output, *RunError) {
	stageCtx, cancel := context.WithTimeout(ctx, e.rc.StepTimeout)
	defer cancel()

	done := make(chan agent.Output, 1)
	go func() {
		done <- ag.Run(stageCtx, e.rc, working, board)
	}()

	select {
	case out := <-done:
		return out, nil
	case <-stageCtx.Done():
		return agent.Output{}, runErr(KindStepTimeout, st, fmt.Errorf("agent %s: %w", ag.Name(), stageCtx.Err()))
	}
}

// commit publishes a successful output under the stage key and, when the
// agent amended the spec, re-validates before adopting it.
func (e *Engine) commit(st Stage, out agent.Output, working *spec.SourceSpec, board *blackboard.Board) (*spec.SourceSpec, error) {
	entry := blackboard.Entry{Notes: out.Notes, Artifacts: out.Artifacts}
	if err := board.Publish(string(st), entry); err != nil {
		return working, runErr(KindCompositionError, st, err)
	}

	if out.UpdatedSpec != nil {
		result, err := e.validator.Validate(out.UpdatedSpec)
		if err != nil {
			return working, runErr(KindGenerationError, st, err)
		}
		if verr := result.Err(); verr != nil {
			return working, runErr(KindValidationError, st, fmt.Errorf("spec invalid after %s amendment: %w", st, verr))
		}
		working = out.UpdatedSpec
	}
	return working, nil
}

// withRetry applies the stage retry policy to an internal operation.
func (e *Engine) withRetry(st Stage, fn func() error) error {
	bo := newBackoff()
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if st.retryable() && attempt < maxStageRetries {
			delay := bo.NextBackOff()
			e.log.Info(string(st), "stage_retry", 0, map[string]any{
				"attempt":  attempt + 1,
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			})
			e.sleep(delay)
			continue
		}
		return runErr(st.failureKind(), st, err)
	}
}

// newBackoff builds the delay schedule for stage retries. Randomization is
// disabled so reruns retry on the same schedule.
func newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}
