package research

import (
	"context"
	"fmt"
)

// Document is one research finding with its provenance.
type Document struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	RetrievedAt string `json:"retrieved_at"`
}

// Source retrieves research documents for a query. Implementations may use
// the network; the Librarian never invokes a Source when the run is offline.
type Source interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

// EmptySource returns no documents. It stands in for the external research
// subsystem when none is wired, keeping the Research stage a structural no-op
// without special-casing the pipeline.
type EmptySource struct{}

// Search always returns an empty result set.
func (EmptySource) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	return nil, nil
}

// CachedSource wraps a Source with read-through caching at the docs level.
type CachedSource struct {
	Inner Source
	Cache *Cache
}

// Search serves from the cache when possible, otherwise queries the inner
// source and caches the result under the docs-level TTL.
func (s *CachedSource) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	identifier := fmt.Sprintf("%s|%d", query, limit)

	var cached []Document
	hit, err := s.Cache.Get(ctx, LevelDocs, identifier, &cached)
	if err != nil {
		return nil, err
	}
	if hit {
		return cached, nil
	}

	docs, err := s.Inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Put(ctx, LevelDocs, identifier, docs); err != nil {
		return nil, err
	}
	return docs, nil
}
