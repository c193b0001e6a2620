package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/internal/determinism"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// writeArtifact normalizes content, writes it under the run's output root,
// and returns the artifact reference with the hash of the final normalized
// bytes. The relative path is confined to the output root; escaping it is a
// contract violation, not an I/O error.
func writeArtifact(rc blackboard.RunContext, relPath, purpose string, pack blackboard.Pack, content []byte) (blackboard.ArtifactRef, error) {
	cleaned := filepath.Clean(relPath)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return blackboard.ArtifactRef{}, fmt.Errorf("artifact path %q escapes the output root", relPath)
	}

	normalized, err := determinism.Normalize(cleaned, content)
	if err != nil {
		return blackboard.ArtifactRef{}, err
	}

	full := filepath.Join(rc.OutputRoot, cleaned)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return blackboard.ArtifactRef{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(full, normalized, 0o644); err != nil {
		return blackboard.ArtifactRef{}, fmt.Errorf("failed to write %s: %w", cleaned, err)
	}

	return blackboard.ArtifactRef{
		Name:    filepath.Base(cleaned),
		Purpose: purpose,
		Pack:    pack,
		Path:    filepath.ToSlash(cleaned),
		SHA256:  artifact.HashBytes(normalized),
	}, nil
}

// templateVars builds the variable map content agents hand to the renderer:
// the spec's fields plus run-level values the templates reference.
func templateVars(rc blackboard.RunContext, s *spec.SourceSpec, extra map[string]any) (map[string]any, error) {
	vars, err := s.AsVars()
	if err != nil {
		return nil, err
	}
	vars["run_id"] = rc.RunID
	vars["pack_type"] = string(rc.Pack)
	vars["audience_mode"] = string(rc.Dials.AudienceMode)
	vars["development_flow"] = string(rc.Dials.DevelopmentFlow)
	vars["test_depth"] = string(rc.Dials.TestDepth)
	for k, v := range extra {
		vars[k] = v
	}
	return vars, nil
}
