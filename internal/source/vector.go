package source

import (
	"context"
	"fmt"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/domain/repository"
)

// VectorSource is a content-based similarity source backed by an ANN index.
// The semantic and genre variants differ only in which embedding space they
// query and which capability flag gates them.
type VectorSource struct {
	kind  models.Source
	space models.Space

	embeddings repository.EmbeddingProvider
	index      repository.VectorIndex
}

// NewSemanticSource queries the description-embedding space. Available only
// for books that have a description.
func NewSemanticSource(embeddings repository.EmbeddingProvider, index repository.VectorIndex) *VectorSource {
	return &VectorSource{
		kind:       models.SourceSemantic,
		space:      models.SpaceSemantic,
		embeddings: embeddings,
		index:      index,
	}
}

// NewGenreSource queries the genre-tag space. Genre coverage is
// near-universal, which makes this the fallback tier of the fusion engine.
func NewGenreSource(embeddings repository.EmbeddingProvider, index repository.VectorIndex) *VectorSource {
	return &VectorSource{
		kind:       models.SourceGenre,
		space:      models.SpaceGenre,
		embeddings: embeddings,
		index:      index,
	}
}

func (s *VectorSource) Kind() models.Source {
	return s.kind
}

func (s *VectorSource) Applicable(book *models.CanonicalBook) bool {
	if book == nil {
		return false
	}
	if s.space == models.SpaceSemantic {
		return book.HasDescription
	}
	return book.HasGenreVector
}

// Query looks up the book's own vector and retrieves its top-k neighbors by
// descending similarity, excluding the book itself.
func (s *VectorSource) Query(_ context.Context, bookID int64, k int) ([]models.NeighborResult, error) {
	vec, ok := s.embeddings.Vector(bookID, s.space)
	if !ok {
		return nil, nil
	}

	// One extra slot so a self hit does not shrink the result.
	hits, err := s.index.Query(vec, k+1)
	if err != nil {
		return nil, fmt.Errorf("%s source: %w", s.kind, err)
	}

	results := make([]models.NeighborResult, 0, k)
	for _, hit := range hits {
		if hit.BookID == bookID {
			continue
		}
		results = append(results, models.NeighborResult{
			SourceBookID: bookID,
			CandidateID:  hit.BookID,
			Score:        hit.Score,
			Rank:         len(results) + 1,
		})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}
