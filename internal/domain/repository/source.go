package repository

import (
	"context"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

// SimilaritySource is the uniform contract every similarity signal
// implements. Applicable reports whether the source carries any signal for
// the book at all; it is distinct from Query returning an empty list, and the
// fusion engine uses it to tell "no signal available" from "signal available
// but empty".
type SimilaritySource interface {
	Kind() models.Source
	Applicable(book *models.CanonicalBook) bool
	Query(ctx context.Context, bookID int64, k int) ([]models.NeighborResult, error)
}
