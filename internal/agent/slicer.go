package agent

import (
	"context"
	"fmt"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// Slicer derives the MVP slice: the smallest deliverable that proves the
// leading success metric. Its output is notes only; the Roadmapper reads the
// slice off the board.
type Slicer struct{}

func (Slicer) Name() string { return "slicer" }

func (Slicer) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	slice := fmt.Sprintf("Deliver the smallest end-to-end flow that addresses: %s", s.Problem.Statement)
	if len(s.SuccessMetrics.Metrics) > 0 {
		slice = fmt.Sprintf("%s Proven by: %s.", slice, s.SuccessMetrics.Metrics[0])
	}

	notes := []string{slice}
	if len(s.SuccessMetrics.Metrics) > 1 {
		notes = append(notes, fmt.Sprintf("%d further metric(s) deferred past the MVP slice", len(s.SuccessMetrics.Metrics)-1))
	}
	return ok(notes)
}
