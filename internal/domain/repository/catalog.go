package repository

import (
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

// CatalogReader is the read-only view of the canonical catalog a dataset
// version serves from. Implementations are loaded once at startup and never
// mutated, so they are safe for concurrent use without locking.
type CatalogReader interface {
	// Book returns the canonical record for id, or ok=false if the id is
	// not part of the catalog.
	Book(id int64) (*models.CanonicalBook, bool)

	// IDs returns every canonical id in ascending order.
	IDs() []int64

	// Size returns the number of canonical records.
	Size() int
}
