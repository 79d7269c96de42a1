package repository

import (
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

// EmbeddingProvider returns the pre-built vector a canonical book owns in a
// named embedding space, or ok=false when the book has none there. Vectors
// are immutable for the lifetime of the dataset version.
type EmbeddingProvider interface {
	Vector(bookID int64, space models.Space) ([]float32, bool)
}
