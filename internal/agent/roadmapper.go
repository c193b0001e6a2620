package agent

import (
	"context"
	"fmt"

	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// Roadmapper renders the roadmap. It reads the MVP slice the Slicer
// published on the board; running without that entry is a pipeline wiring
// bug.
type Roadmapper struct {
	Renderer render.Renderer
}

func (Roadmapper) Name() string { return "roadmapper" }

func (r Roadmapper) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	sliceEntry, found := board.Get("slice_mvp")
	if !found || len(sliceEntry.Notes) == 0 {
		return fatal(fmt.Errorf("no MVP slice on the board: SliceMVP must run before Roadmap"))
	}

	vars, err := templateVars(rc, s, map[string]any{"mvp_slice": sliceEntry.Notes[0]})
	if err != nil {
		return fatal(err)
	}

	content, err := r.Renderer.Render("balanced/roadmap.md.tmpl", vars)
	if err != nil {
		return fatal(err)
	}
	ref, err := writeArtifact(rc, "roadmap.md", "Project Roadmap", blackboard.PackBalanced, content)
	if err != nil {
		return fatal(err)
	}

	return ok([]string{"rendered balanced/roadmap.md.tmpl"}, ref)
}
