package agent

import (
	"context"

	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// PRDWriter renders the PRD and the initial test plan. A template failure is
// a deterministic content defect and therefore fatal, never retried.
type PRDWriter struct {
	Renderer render.Renderer
}

func (PRDWriter) Name() string { return "prd_writer" }

func (w PRDWriter) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	vars, err := templateVars(rc, s, nil)
	if err != nil {
		return fatal(err)
	}

	type doc struct {
		templateID string
		relPath    string
		purpose    string
		pack       blackboard.Pack
	}
	docs := []doc{
		{templateID: "balanced/prd.md.tmpl", relPath: "prd.md", purpose: "Product Requirements Document", pack: blackboard.PackBalanced},
		{templateID: "balanced/test_plan.md.tmpl", relPath: "test_plan.md", purpose: "Test Plan and Strategy", pack: blackboard.PackBalanced},
	}
	if rc.Pack == blackboard.PackDeep || rc.Pack == blackboard.PackBoth {
		docs = append(docs, doc{templateID: "deep/contracts.json.tmpl", relPath: "contracts.json", purpose: "Interface Contracts", pack: blackboard.PackDeep})
	}

	var refs []blackboard.ArtifactRef
	var notes []string
	for _, d := range docs {
		content, err := w.Renderer.Render(d.templateID, vars)
		if err != nil {
			return fatal(err)
		}
		ref, err := writeArtifact(rc, d.relPath, d.purpose, d.pack, content)
		if err != nil {
			return fatal(err)
		}
		refs = append(refs, ref)
		notes = append(notes, "rendered "+d.templateID)
	}

	return ok(notes, refs...)
}
