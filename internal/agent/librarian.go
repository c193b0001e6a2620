package agent

import (
	"context"
	"fmt"

	"github.com/specforge/specforge/internal/research"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// maxResearchDocs bounds one research query.
const maxResearchDocs = 10

// Librarian fetches research content for the problem under generation. It is
// the one agent whose function inherently requires network access, so it
// checks the offline guard itself and short-circuits to an empty, successful
// output rather than erroring.
type Librarian struct {
	Source research.Source
}

func (Librarian) Name() string { return "librarian" }

func (l Librarian) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	if !rc.ResearchEnabled() {
		return ok([]string{"research skipped: offline or not requested"})
	}

	source := l.Source
	if source == nil {
		source = research.EmptySource{}
	}

	docs, err := source.Search(ctx, s.Problem.Statement, maxResearchDocs)
	if err != nil {
		// A failed fetch is plausibly transient.
		return retryable(fmt.Errorf("research query failed: %w", err))
	}

	notes := []string{fmt.Sprintf("retrieved %d research document(s)", len(docs))}
	for _, doc := range docs {
		notes = append(notes, fmt.Sprintf("source: %s (%s)", doc.Title, doc.URL))
	}
	return ok(notes)
}
