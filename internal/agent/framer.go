package agent

import (
	"context"
	"fmt"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// Framer fills the gaps a minimal spec leaves open so every later template
// variable resolves. The filled fields are recorded in its notes for review.
type Framer struct{}

func (Framer) Name() string { return "framer" }

func (Framer) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	updated, err := s.Clone()
	if err != nil {
		return fatal(err)
	}

	var filled []string
	if updated.Meta.Description == "" {
		updated.Meta.Description = fmt.Sprintf("Specification pack for %s - description pending manual review", updated.Meta.Name)
		filled = append(filled, "meta.description")
	}
	if updated.Problem.Context == "" {
		updated.Problem.Context = "Context pending manual review"
		filled = append(filled, "problem.context")
	}
	if len(updated.SuccessMetrics.Metrics) == 0 {
		updated.SuccessMetrics.Metrics = []string{
			"User satisfaction > 80%",
			"Performance meets SLA",
		}
		filled = append(filled, "success_metrics.metrics")
	}

	notes := []string{fmt.Sprintf("filled %d field(s)", len(filled))}
	for _, field := range filled {
		notes = append(notes, "filled "+field)
	}

	out := ok(notes)
	out.UpdatedSpec = updated
	return out
}
