package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// QAArchitect deepens the PRDWriter's test plan in place: a test matrix
// derived from the strategy and Given/When/Then criteria for each BDD
// journey. It emits no new artifacts; the file it rewrote is re-hashed when
// the manifest is assembled.
type QAArchitect struct{}

func (QAArchitect) Name() string { return "qa_architect" }

func (q QAArchitect) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	planPath := filepath.Join(rc.OutputRoot, "test_plan.md")
	existing, err := os.ReadFile(planPath)
	if err != nil {
		// The plan is written two stages earlier; its absence is a wiring bug.
		return fatal(fmt.Errorf("test plan not found before QA stage: %w", err))
	}

	enhanced := string(existing) + "\n" + q.matrix(s) + q.acceptanceCriteria(s)
	ref, err := writeArtifact(rc, "test_plan.md", "Test Plan and Strategy", blackboard.PackBalanced, []byte(enhanced))
	if err != nil {
		return fatal(err)
	}
	_ = ref // Not re-published: the PRDWriter already owns this artifact on the board.

	return ok([]string{
		"appended test matrix",
		fmt.Sprintf("appended acceptance criteria for %d journey(s)", len(s.TestStrategy.BDDJourneys)),
	})
}

func (QAArchitect) matrix(s *spec.SourceSpec) string {
	var b strings.Builder
	b.WriteString("## Test Matrix\n\n")
	b.WriteString("| Test Type | In Scope | Priority |\n")
	b.WriteString("|-----------|----------|----------|\n")
	fmt.Fprintf(&b, "| Unit | %v | High |\n", s.TestStrategy.UnitTests)
	fmt.Fprintf(&b, "| Integration | %v | Medium |\n", s.TestStrategy.IntegrationTests)
	fmt.Fprintf(&b, "| End-to-end | %v | Medium |\n", s.TestStrategy.E2ETests)
	return b.String()
}

func (QAArchitect) acceptanceCriteria(s *spec.SourceSpec) string {
	if len(s.TestStrategy.BDDJourneys) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Journey Acceptance Criteria\n")
	for _, journey := range s.TestStrategy.BDDJourneys {
		fmt.Fprintf(&b, "\n### %s\n\n", journey)
		fmt.Fprintf(&b, "- Given the system is ready for %s\n", journey)
		fmt.Fprintf(&b, "- When the user performs %s\n", journey)
		fmt.Fprintf(&b, "- Then the expected %s outcome is delivered\n", journey)
	}
	return b.String()
}
