package orchestrator

// Stage identifies one step of the generation pipeline. Stage values double
// as blackboard keys and audit log stage names.
type Stage string

const (
	StageCollectInputs Stage = "collect_inputs"
	StageValidateSpec  Stage = "validate_spec"
	StageFillGaps      Stage = "fill_gaps"
	StageResearch      Stage = "research"
	StageSliceMVP      Stage = "slice_mvp"
	StageWritePRD      Stage = "write_prd"
	StageGenDiagrams   Stage = "gen_diagrams"
	StageTestPlan      Stage = "test_plan"
	StageRoadmap       Stage = "roadmap"
	StageRedTeam       Stage = "red_team"
	StageRenderPacks   Stage = "render_packs"
	StagePackage       Stage = "package"
	StageAudit         Stage = "audit"

	// StageTerminal marks the completed run in the audit log. No work runs
	// under it.
	StageTerminal Stage = "terminal"
)

// pipeline is the fixed stage order. Every run walks this list front to
// back; there is no branching and no reordering.
var pipeline = []Stage{
	StageCollectInputs,
	StageValidateSpec,
	StageFillGaps,
	StageResearch,
	StageSliceMVP,
	StageWritePRD,
	StageGenDiagrams,
	StageTestPlan,
	StageRoadmap,
	StageRedTeam,
	StageRenderPacks,
	StagePackage,
	StageAudit,
}

// maxStageRetries is the number of extra attempts a retryable stage gets
// after its first failure.
const maxStageRetries = 2

// retryableStages are the only stages whose retryable failures are actually
// retried. Research touches the network and render_packs touches the
// filesystem wholesale; everything else is deterministic, so a failure there
// would only repeat.
var retryableStages = map[Stage]bool{
	StageResearch:    true,
	StageRenderPacks: true,
}

// internalStages run inside the orchestrator itself rather than through an
// agent, so they never consume step budget.
var internalStages = map[Stage]bool{
	StageCollectInputs: true,
	StageValidateSpec:  true,
	StageRenderPacks:   true,
	StageAudit:         true,
}

// renderStages fail with a render error rather than a generation error, so
// their failures surface under the render exit code.
var renderStages = map[Stage]bool{
	StageWritePRD:    true,
	StageGenDiagrams: true,
	StageRoadmap:     true,
	StageRenderPacks: true,
}

func (st Stage) retryable() bool {
	return retryableStages[st]
}

func (st Stage) internal() bool {
	return internalStages[st]
}

// failureKind maps a stage to the error kind its non-retryable failures
// carry.
func (st Stage) failureKind() Kind {
	if renderStages[st] {
		return KindRenderError
	}
	return KindGenerationError
}
