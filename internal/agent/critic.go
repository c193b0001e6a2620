package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// Critic red-teams the run so far: every artifact published on the board must
// exist on disk and be non-empty. A missing or empty artifact is a
// deterministic defect in an earlier stage.
type Critic struct{}

func (Critic) Name() string { return "critic" }

func (Critic) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	refs := board.Artifacts()

	var issues []string
	for _, ref := range refs {
		info, err := os.Stat(filepath.Join(rc.OutputRoot, ref.Path))
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: missing on disk", ref.Path))
			continue
		}
		if info.Size() == 0 {
			issues = append(issues, fmt.Sprintf("%s: empty file", ref.Path))
		}
	}

	if len(issues) > 0 {
		return fatal(fmt.Errorf("review found %d defect(s): %v", len(issues), issues))
	}
	return ok([]string{fmt.Sprintf("reviewed %d artifact(s), no defects", len(refs))})
}
