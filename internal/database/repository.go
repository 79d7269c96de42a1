package database

import (
	"context"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

// RawCatalogRepository reads the pipeline input: the pre-canonical catalog
// and its per-space embedding sets, both keyed by raw id.
type RawCatalogRepository interface {
	ListRawBooks(ctx context.Context) ([]models.RawBook, error)
	ListRawEmbeddings(ctx context.Context, space models.Space) (map[int64][]float32, error)
}

// CanonicalCatalogRepository persists and reads the build output: the
// canonical catalog and embeddings remapped to canonical ids. Replace
// operations swap the whole table; the catalog version is immutable, never
// patched row by row.
type CanonicalCatalogRepository interface {
	ReplaceCanonicalBooks(ctx context.Context, books []*models.CanonicalBook) error
	ListCanonicalBooks(ctx context.Context) ([]*models.CanonicalBook, error)

	ReplaceCanonicalEmbeddings(ctx context.Context, space models.Space, vectors map[int64][]float32) error
	ListCanonicalEmbeddings(ctx context.Context, space models.Space) (map[int64][]float32, error)
}
