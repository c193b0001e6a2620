package resolver

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/pkg/blackboard"
)

// ResolveArtifact finds one artifact in a manifest by name or path.
// An exact match on either wins outright; otherwise the key is treated as a
// prefix and must match exactly one entry.
//
// Returns *NotFoundError when nothing matches and *AmbiguousError when a
// prefix matches more than one entry.
func ResolveArtifact(idx *artifact.Index, key string) (blackboard.ArtifactRef, error) {
	if key == "" {
		return blackboard.ArtifactRef{}, fmt.Errorf("artifact name cannot be empty")
	}

	for _, ref := range idx.Artifacts {
		if ref.Name == key || ref.Path == key {
			return ref, nil
		}
	}

	var matches []blackboard.ArtifactRef
	for _, ref := range idx.Artifacts {
		if strings.HasPrefix(ref.Name, key) || strings.HasPrefix(ref.Path, key) {
			matches = append(matches, ref)
		}
	}

	switch len(matches) {
	case 0:
		return blackboard.ArtifactRef{}, &NotFoundError{Key: key}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, ref := range matches {
			names[i] = ref.Path
		}
		return blackboard.ArtifactRef{}, &AmbiguousError{Key: key, Matches: names}
	}
}

// NotFoundError indicates no manifest entry matched the key.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no artifact matching %q in the manifest", e.Key)
}

// AmbiguousError indicates a prefix matched more than one manifest entry.
type AmbiguousError struct {
	Key     string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("artifact %q is ambiguous: matches %s", e.Key, strings.Join(e.Matches, ", "))
}
