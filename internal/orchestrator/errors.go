package orchestrator

import "fmt"

// Kind classifies a run failure for exit-code mapping and audit logging.
type Kind string

const (
	// KindValidationError covers a spec that fails schema validation,
	// either on input or after a gap-filling commit.
	KindValidationError Kind = "validation_error"

	// KindBudgetExceeded covers a run that needs more agent invocations
	// than its step budget allows.
	KindBudgetExceeded Kind = "budget_exceeded"

	// KindStepTimeout covers a stage attempt that outlived the step
	// timeout, and run cancellation.
	KindStepTimeout Kind = "step_timeout"

	// KindGenerationError covers agent failures outside rendering.
	KindGenerationError Kind = "generation_error"

	// KindRenderError covers template rendering and pack consolidation
	// failures.
	KindRenderError Kind = "render_error"

	// KindCompositionError covers pipeline wiring defects, such as two
	// stages publishing under the same blackboard key.
	KindCompositionError Kind = "composition_error"
)

// RunError is the single error type a failed run returns. It records the
// stage that failed so operators can find the matching audit events.
type RunError struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s at stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ExitCode maps the failure kind to the process exit code contract:
// 2 validation, 3 generation, 4 render, 5 budget or timeout.
func (e *RunError) ExitCode() int {
	switch e.Kind {
	case KindValidationError:
		return 2
	case KindBudgetExceeded, KindStepTimeout:
		return 5
	case KindRenderError:
		return 4
	default:
		return 3
	}
}

func runErr(kind Kind, stage Stage, err error) *RunError {
	return &RunError{Kind: kind, Stage: stage, Err: err}
}
