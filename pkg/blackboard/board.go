package blackboard

import (
	"fmt"
	"sort"
)

// Entry is the value an agent publishes under its stage key: free-form notes
// plus references to the artifacts it wrote.
type Entry struct {
	Notes     []string      `json:"notes"`
	Artifacts []ArtifactRef `json:"artifacts"`
}

// ErrKeyExists is returned when a stage attempts to publish under a key that
// already holds an entry. A collision is a bug in pipeline composition, not a
// runtime condition to recover from, so the orchestrator treats it as fatal.
type ErrKeyExists struct {
	Key string
}

func (e *ErrKeyExists) Error() string {
	return fmt.Sprintf("blackboard key %q already published", e.Key)
}

// Board is the run-scoped write-once arena for inter-agent exchange. Keys are
// stage identifiers; entries are never deleted or overwritten during a run.
//
// The Board is owned by the orchestrator's single thread of control, so it
// deliberately carries no locking: sequencing alone provides the consistency
// guarantee.
type Board struct {
	entries map[string]Entry
	order   []string // publish order, for deterministic iteration
}

// NewBoard creates an empty board for one run.
func NewBoard() *Board {
	return &Board{entries: make(map[string]Entry)}
}

// Publish records an entry under the given stage key. Returns *ErrKeyExists
// if the key was already published.
//
// Write-once lives here rather than in the orchestrator's commit path so the
// rule holds for every writer, including an agent that publishes directly.
// The orchestrator still owns the outcome: it maps the collision to a fatal
// composition failure.
func (b *Board) Publish(key string, entry Entry) error {
	if _, exists := b.entries[key]; exists {
		return &ErrKeyExists{Key: key}
	}
	b.entries[key] = entry
	b.order = append(b.order, key)
	return nil
}

// Get returns the entry for a stage key and whether it exists.
func (b *Board) Get(key string) (Entry, bool) {
	entry, ok := b.entries[key]
	return entry, ok
}

// Keys returns the published stage keys in publish order.
func (b *Board) Keys() []string {
	keys := make([]string, len(b.order))
	copy(keys, b.order)
	return keys
}

// Len returns the number of published entries.
func (b *Board) Len() int {
	return len(b.entries)
}

// Artifacts returns every published artifact reference in publish order.
// Within one entry, artifacts keep the order the agent emitted them.
func (b *Board) Artifacts() []ArtifactRef {
	var refs []ArtifactRef
	for _, key := range b.order {
		refs = append(refs, b.entries[key].Artifacts...)
	}
	return refs
}

// ArtifactsByPack returns published artifacts filtered to one pack, sorted by
// path for stable output.
func (b *Board) ArtifactsByPack(pack Pack) []ArtifactRef {
	var refs []ArtifactRef
	for _, ref := range b.Artifacts() {
		if ref.Pack == pack {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs
}
