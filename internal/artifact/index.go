// Package artifact accumulates artifact metadata during a run and seals it
// into the manifest, the externally-checkable integrity record of everything
// the run produced.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/specforge/specforge/internal/determinism"
	"github.com/specforge/specforge/pkg/blackboard"
)

// ManifestName is the file the sealed index is persisted as, under the run's
// output root.
const ManifestName = "artifact_index.json"

// ErrSealed is returned when an artifact is appended after the index was
// sealed at the Package stage. That is a composition error in pipeline
// wiring, always fatal.
type ErrSealed struct {
	Name string
}

func (e *ErrSealed) Error() string {
	return fmt.Sprintf("manifest already sealed: cannot add artifact %q", e.Name)
}

// Index accumulates artifact references during a run. The orchestrator
// appends each reference as it is confirmed written, seals the index exactly
// once at the Package stage, then persists it.
type Index struct {
	RunID          string                   `json:"run_id"`
	GeneratedAt    string                   `json:"generated_at"`
	TemplateSet    string                   `json:"template_set"`
	TemplateCommit string                   `json:"template_commit"`
	Artifacts      []blackboard.ArtifactRef `json:"artifacts"`

	sealed bool
}

// NewIndex creates an empty, unsealed index for a run.
func NewIndex(runID, templateSet, templateCommit string) *Index {
	return &Index{
		RunID:          runID,
		TemplateSet:    templateSet,
		TemplateCommit: templateCommit,
		Artifacts:      []blackboard.ArtifactRef{},
	}
}

// Add appends a confirmed-written artifact reference. Returns *ErrSealed if
// the index was already sealed, or a validation error for a malformed ref.
func (ix *Index) Add(ref blackboard.ArtifactRef) error {
	if ix.sealed {
		return &ErrSealed{Name: ref.Name}
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("rejecting artifact: %w", err)
	}
	ix.Artifacts = append(ix.Artifacts, ref)
	return nil
}

// Seal freezes the index and stamps generated_at - the one field sanctioned
// to differ between byte-identical reruns. Sealing twice is a composition
// error.
func (ix *Index) Seal(now time.Time) error {
	if ix.sealed {
		return fmt.Errorf("manifest already sealed")
	}
	ix.sealed = true
	ix.GeneratedAt = determinism.UTCStamp(now)
	return nil
}

// Sealed reports whether the index has been sealed.
func (ix *Index) Sealed() bool {
	return ix.sealed
}

// Write persists the sealed manifest under outputRoot as canonical JSON.
// Writing an unsealed index is refused.
func (ix *Index) Write(outputRoot string) (string, error) {
	if !ix.sealed {
		return "", fmt.Errorf("refusing to persist unsealed manifest")
	}
	data, err := determinism.MarshalCanonical(ix)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(outputRoot, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// HashBytes returns the hex sha256 digest of already-normalized bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile normalizes a file's current bytes and returns their digest. This
// is the recomputation half of the manifest's verification contract.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	normalized, err := determinism.Normalize(path, data)
	if err != nil {
		return "", err
	}
	return HashBytes(normalized), nil
}

// Mismatch reports one artifact whose current bytes no longer match the
// manifest.
type Mismatch struct {
	Path     string
	Expected string
	Actual   string // empty if the file is missing or unreadable
	Err      error
}

// Verify recomputes the digest of every listed artifact's current bytes
// against the stored hash. An empty slice means the manifest holds.
func (ix *Index) Verify(outputRoot string) []Mismatch {
	var mismatches []Mismatch
	for _, ref := range ix.Artifacts {
		path := filepath.Join(outputRoot, ref.Path)
		actual, err := HashFile(path)
		if err != nil {
			mismatches = append(mismatches, Mismatch{Path: ref.Path, Expected: ref.SHA256, Err: err})
			continue
		}
		if actual != ref.SHA256 {
			mismatches = append(mismatches, Mismatch{Path: ref.Path, Expected: ref.SHA256, Actual: actual})
		}
	}
	return mismatches
}

// Load reads a persisted manifest back from outputRoot.
func Load(outputRoot string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(outputRoot, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var ix Index
	if err := unmarshalIndex(data, &ix); err != nil {
		return nil, err
	}
	ix.sealed = true
	return &ix, nil
}
