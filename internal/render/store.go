package render

import (
	_ "embed"
	"strings"
)

// templateCommit identifies the template source revision baked into the
// binary. Overridden at build time:
//
//	go build -ldflags "-X github.com/specforge/specforge/internal/render.templateCommit=$(git rev-parse --short HEAD)"
var templateCommit = "unversioned"

//go:embed templates/VERSION
var templateSetVersion string

// Store exposes the template set metadata recorded in every manifest.
type Store struct{}

// NewStore returns the metadata store for the embedded template set.
func NewStore() *Store {
	return &Store{}
}

// TemplateSet returns the embedded set's version label, e.g. "packs-v1".
func (s *Store) TemplateSet() string {
	return strings.TrimSpace(templateSetVersion)
}

// TemplateCommit returns the source revision the templates were built from.
func (s *Store) TemplateCommit() string {
	return templateCommit
}
