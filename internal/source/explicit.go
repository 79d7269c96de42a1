// Package source implements the three similarity signals the fusion engine
// queries: the curated explicit-link graph and the semantic and genre
// ANN lookups. All variants are read-only over the immutable dataset.
package source

import (
	"context"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/domain/repository"
)

// ExplicitSource serves the curated "similar books" graph straight from the
// canonical catalog's adjacency sets. The graph is directed and may hold
// cycles or asymmetric edges; no traversal happens here, only a lookup.
type ExplicitSource struct {
	catalog repository.CatalogReader
}

func NewExplicitSource(catalog repository.CatalogReader) *ExplicitSource {
	return &ExplicitSource{catalog: catalog}
}

func (s *ExplicitSource) Kind() models.Source {
	return models.SourceExplicit
}

// Applicable reports whether the book carries any curated links. An empty
// link set means no explicit signal exists, which is the common case.
func (s *ExplicitSource) Applicable(book *models.CanonicalBook) bool {
	return book != nil && len(book.ExplicitLinks) > 0
}

// Query returns the linked ids in stored order up to k, intersected with the
// canonical catalog. There is no ranking beyond the original order, so every
// score is zero and rank carries the position.
func (s *ExplicitSource) Query(_ context.Context, bookID int64, k int) ([]models.NeighborResult, error) {
	book, ok := s.catalog.Book(bookID)
	if !ok {
		return nil, nil
	}

	results := make([]models.NeighborResult, 0, len(book.ExplicitLinks))
	for _, linked := range book.ExplicitLinks {
		if linked == bookID {
			continue
		}
		if _, known := s.catalog.Book(linked); !known {
			continue
		}
		results = append(results, models.NeighborResult{
			SourceBookID: bookID,
			CandidateID:  linked,
			Rank:         len(results) + 1,
		})
		if k > 0 && len(results) >= k {
			break
		}
	}
	return results, nil
}
