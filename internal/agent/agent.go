// Package agent defines the execution contract for one unit of pipeline work
// and the concrete agents that implement it. An agent receives the immutable
// run context, the committed spec, and the shared board; it returns a single
// immutable output the orchestrator commits atomically at the stage boundary.
package agent

import (
	"context"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// Output is the result of one agent invocation. Immutable once returned.
// Status is the retryable/fatal distinction as data; Err carries the cause
// when the status is a failure.
type Output struct {
	Notes       []string
	Artifacts   []blackboard.ArtifactRef
	UpdatedSpec *spec.SourceSpec
	Status      blackboard.Status
	Err         error
}

// Agent is the capability abstraction: one implementation per pipeline
// position, selected by the orchestrator's stage table, never by runtime type
// inspection.
//
// Contract obligations:
//   - must not mutate the RunContext or the spec it was handed
//   - must not read or write files outside the run's output root
//   - must produce a result with offline=true and no network access
//   - file writes must be idempotent: same spec, same bytes, same paths
type Agent interface {
	Name() string
	Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output
}

func ok(notes []string, artifacts ...blackboard.ArtifactRef) Output {
	return Output{Notes: notes, Artifacts: artifacts, Status: blackboard.StatusOK}
}

func fatal(err error) Output {
	return Output{Status: blackboard.StatusFatalFailure, Err: err}
}

func retryable(err error) Output {
	return Output{Status: blackboard.StatusRetryableFailure, Err: err}
}
