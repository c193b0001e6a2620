package agent

import (
	"context"

	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// Diagrammer renders the Mermaid diagrams the spec's diagram scope requests.
type Diagrammer struct {
	Renderer render.Renderer
}

func (Diagrammer) Name() string { return "diagrammer" }

func (d Diagrammer) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	vars, err := templateVars(rc, s, nil)
	if err != nil {
		return fatal(err)
	}

	type diagram struct {
		include    bool
		templateID string
		relPath    string
		purpose    string
	}
	diagrams := []diagram{
		{include: s.DiagramScope.IncludeLifecycle, templateID: "balanced/diagrams/lifecycle.mmd.tmpl", relPath: "diagrams/lifecycle.mmd", purpose: "System Lifecycle Diagram"},
		{include: s.DiagramScope.IncludeSequence, templateID: "balanced/diagrams/sequence.mmd.tmpl", relPath: "diagrams/sequence.mmd", purpose: "Generation Sequence Diagram"},
	}

	var refs []blackboard.ArtifactRef
	var notes []string
	for _, dg := range diagrams {
		if !dg.include {
			continue
		}
		content, err := d.Renderer.Render(dg.templateID, vars)
		if err != nil {
			return fatal(err)
		}
		ref, err := writeArtifact(rc, dg.relPath, dg.purpose, blackboard.PackBalanced, content)
		if err != nil {
			return fatal(err)
		}
		refs = append(refs, ref)
		notes = append(notes, "rendered "+dg.templateID)
	}

	if len(refs) == 0 {
		notes = append(notes, "diagram scope excludes all diagrams")
	}
	return ok(notes, refs...)
}
