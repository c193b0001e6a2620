package blackboard

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status reports how an agent invocation ended. It is a data field on the
// result, not an error hierarchy: the orchestrator's retry policy keys off it.
type Status string

const (
	// StatusOK indicates the agent completed and its output may be committed.
	StatusOK Status = "ok"

	// StatusRetryableFailure indicates a plausibly transient condition
	// (flaky fetch, render race). Only the orchestrator decides whether the
	// stage is actually retried.
	StatusRetryableFailure Status = "retryable_failure"

	// StatusFatalFailure indicates a deterministic defect. The run aborts.
	StatusFatalFailure Status = "fatal_failure"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusOK, StatusRetryableFailure, StatusFatalFailure:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// ArtifactRef describes one generated file. The hash is computed over the
// file's final normalized bytes - never over in-memory pre-normalization
// content - which is what makes the manifest a trustworthy integrity check.
type ArtifactRef struct {
	Name    string `json:"name"`    // File name, e.g. "prd.md"
	Purpose string `json:"purpose"` // Human-readable purpose, e.g. "Product Requirements Document"
	Pack    Pack   `json:"pack"`    // Which pack this artifact belongs to
	Path    string `json:"path"`    // Path relative to the run's output root
	SHA256  string `json:"sha256"`  // Hex digest of the normalized file bytes
}

// Validate checks if the ArtifactRef has valid field values.
func (a *ArtifactRef) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	if a.Path == "" {
		return fmt.Errorf("artifact %q: path cannot be empty", a.Name)
	}
	if err := a.Pack.Validate(); err != nil {
		return fmt.Errorf("artifact %q: %w", a.Name, err)
	}
	if len(a.SHA256) != 64 {
		return fmt.Errorf("artifact %q: sha256 must be a 64-char hex digest, got %d chars", a.Name, len(a.SHA256))
	}
	return nil
}

// Pack names a bundle of artifact purposes.
type Pack string

const (
	// PackBalanced is the business-facing documentation pack.
	PackBalanced Pack = "balanced"

	// PackDeep is the engineering-facing documentation pack.
	PackDeep Pack = "deep"

	// PackBoth selects both packs in one run.
	PackBoth Pack = "both"
)

// Validate checks if the Pack is a valid enum value.
func (p Pack) Validate() error {
	switch p {
	case PackBalanced, PackDeep, PackBoth:
		return nil
	default:
		return fmt.Errorf("unknown pack: %q", p)
	}
}

// AudienceMode sets the target audience complexity level.
type AudienceMode string

const (
	AudienceBrief    AudienceMode = "brief"
	AudienceBalanced AudienceMode = "balanced"
	AudienceDeep     AudienceMode = "deep"
)

// Validate checks if the AudienceMode is a valid enum value.
func (m AudienceMode) Validate() error {
	switch m {
	case AudienceBrief, AudienceBalanced, AudienceDeep:
		return nil
	default:
		return fmt.Errorf("unknown audience mode: %q", m)
	}
}

// DevelopmentFlow sets the development methodology reflected in the roadmap.
type DevelopmentFlow string

const (
	FlowAgile     DevelopmentFlow = "agile"
	FlowKanban    DevelopmentFlow = "kanban"
	FlowDualTrack DevelopmentFlow = "dual_track"
	FlowWaterfall DevelopmentFlow = "waterfall"
)

// Validate checks if the DevelopmentFlow is a valid enum value.
func (f DevelopmentFlow) Validate() error {
	switch f {
	case FlowAgile, FlowKanban, FlowDualTrack, FlowWaterfall:
		return nil
	default:
		return fmt.Errorf("unknown development flow: %q", f)
	}
}

// TestDepth sets the testing strategy depth.
type TestDepth string

const (
	TestDepthLight      TestDepth = "light"
	TestDepthPyramid    TestDepth = "pyramid"
	TestDepthFullMatrix TestDepth = "full_matrix"
)

// Validate checks if the TestDepth is a valid enum value.
func (d TestDepth) Validate() error {
	switch d {
	case TestDepthLight, TestDepthPyramid, TestDepthFullMatrix:
		return nil
	default:
		return fmt.Errorf("unknown test depth: %q", d)
	}
}

// Dials are the named configuration knobs carried by a RunContext.
type Dials struct {
	AudienceMode    AudienceMode    `json:"audience_mode" yaml:"audience_mode"`
	DevelopmentFlow DevelopmentFlow `json:"development_flow" yaml:"development_flow"`
	TestDepth       TestDepth       `json:"test_depth" yaml:"test_depth"`
}

// DefaultDials returns the dial settings used when the caller specifies none.
func DefaultDials() Dials {
	return Dials{
		AudienceMode:    AudienceBalanced,
		DevelopmentFlow: FlowAgile,
		TestDepth:       TestDepthPyramid,
	}
}

// Validate checks every dial is a valid enum value.
func (d Dials) Validate() error {
	if err := d.AudienceMode.Validate(); err != nil {
		return err
	}
	if err := d.DevelopmentFlow.Validate(); err != nil {
		return err
	}
	return d.TestDepth.Validate()
}

// Default budgets and ceilings for the pipeline.
const (
	// DefaultStepBudget is the authoritative per-pipeline ceiling on agent
	// invocations, including retry attempts.
	DefaultStepBudget = 12

	// DefaultRunBudget is a coarser ceiling for callers that batch multiple
	// pack generations in one process. The pipeline itself never applies it.
	DefaultRunBudget = 50

	// DefaultStepTimeout is the wall-clock ceiling for a single stage.
	DefaultStepTimeout = 20 * time.Second
)

// RunContext is the immutable per-run configuration. It is created once at
// run start and shared read-only with every agent invocation; agents must not
// mutate it.
type RunContext struct {
	RunID       string        `json:"run_id"`       // UUIDv7 - sortable by creation time
	Offline     bool          `json:"offline"`      // When true the Research stage is skipped entirely
	Research    bool          `json:"research"`     // Explicit research opt-in; only meaningful when Offline is false
	Pack        Pack          `json:"pack"`         // Which pack(s) to generate
	Dials       Dials         `json:"dials"`        // Named configuration knobs
	OutputRoot  string        `json:"output_root"`  // Target directory for all artifacts
	StepBudget  int           `json:"step_budget"`  // Ceiling on agent invocations
	StepTimeout time.Duration `json:"step_timeout"` // Wall-clock ceiling per stage
}

// NewRunContext creates a RunContext with a fresh time-ordered run ID and
// default budgets. Callers adjust fields before the run starts; after that
// the context is treated as frozen.
func NewRunContext(outputRoot string) (RunContext, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return RunContext{}, fmt.Errorf("failed to generate run ID: %w", err)
	}
	return RunContext{
		RunID:       id.String(),
		Offline:     true,
		Pack:        PackBalanced,
		Dials:       DefaultDials(),
		OutputRoot:  outputRoot,
		StepBudget:  DefaultStepBudget,
		StepTimeout: DefaultStepTimeout,
	}, nil
}

// Validate checks if the RunContext has valid field values.
func (rc *RunContext) Validate() error {
	if _, err := uuid.Parse(rc.RunID); err != nil {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}
	if rc.OutputRoot == "" {
		return fmt.Errorf("output root cannot be empty")
	}
	if rc.StepBudget < 1 {
		return fmt.Errorf("step budget must be >= 1, got %d", rc.StepBudget)
	}
	if rc.StepTimeout <= 0 {
		return fmt.Errorf("step timeout must be positive, got %v", rc.StepTimeout)
	}
	if err := rc.Pack.Validate(); err != nil {
		return err
	}
	return rc.Dials.Validate()
}

// ResearchEnabled reports whether the Research stage should actually invoke
// the Librarian. Either gate alone - offline mode or a missing opt-in -
// suffices to skip.
func (rc *RunContext) ResearchEnabled() bool {
	return !rc.Offline && rc.Research
}
