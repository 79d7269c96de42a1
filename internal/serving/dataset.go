// Package serving owns the dataset version a running process answers from:
// the canonical catalog, the embedding sets, both ANN indices and the
// components wired over them. A Dataset is immutable; updating to a new
// dataset version means loading a complete new Dataset and atomically
// swapping the active reference.
package serving

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bookmatch/bookmatch-api/internal/ann"
	"github.com/bookmatch/bookmatch-api/internal/catalog"
	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/database"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/fusion"
	"github.com/bookmatch/bookmatch-api/internal/search"
	"github.com/bookmatch/bookmatch-api/internal/source"
	"github.com/google/uuid"
)

// Embeddings is the in-process embedding provider of one dataset version.
type Embeddings struct {
	spaces map[models.Space]map[int64][]float32
}

func NewEmbeddings(spaces map[models.Space]map[int64][]float32) *Embeddings {
	if spaces == nil {
		spaces = make(map[models.Space]map[int64][]float32)
	}
	return &Embeddings{spaces: spaces}
}

func (e *Embeddings) Vector(bookID int64, space models.Space) ([]float32, bool) {
	vec, ok := e.spaces[space][bookID]
	return vec, ok
}

// Dataset is one fully loaded, immutable dataset version.
type Dataset struct {
	Version  string
	LoadedAt time.Time

	Catalog    *catalog.Memory
	Embeddings *Embeddings
	Engine     *fusion.Engine
	Titles     *search.TitleSearch
}

// LoadDataset assembles a Dataset from the persisted artifacts: the
// canonical catalog and embeddings in the artifact database and the index
// blobs under cfg.IndexDir. A missing or corrupt artifact for a space that
// has vectors is fatal; a space with no vectors at all yields a not-ready
// index, which the source layer reports as inapplicable per book.
func LoadDataset(ctx context.Context, store database.CanonicalCatalogRepository, cfg *config.Config) (*Dataset, error) {
	books, err := store.ListCanonicalBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load canonical catalog: %w", err)
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("canonical catalog is empty: run the index build first")
	}
	cat := catalog.NewMemory(books)

	spaces := make(map[models.Space]map[int64][]float32, 2)
	indices := make(map[models.Space]*ann.Index, 2)
	for _, space := range []models.Space{models.SpaceSemantic, models.SpaceGenre} {
		vectors, err := store.ListCanonicalEmbeddings(ctx, space)
		if err != nil {
			return nil, fmt.Errorf("load %q embeddings: %w", space, err)
		}
		spaces[space] = vectors

		idx, err := loadIndex(cfg.IndexDir, space, len(vectors))
		if err != nil {
			return nil, err
		}
		indices[space] = idx
	}

	embeddings := NewEmbeddings(spaces)
	engine := fusion.NewEngine(cat,
		source.NewExplicitSource(cat),
		source.NewSemanticSource(embeddings, indices[models.SpaceSemantic]),
		source.NewGenreSource(embeddings, indices[models.SpaceGenre]),
	)
	titles := search.NewTitleSearch(cat, cfg.FuzzyMinSimilarity, cfg.SearchMaxResults)

	ds := &Dataset{
		Version:    uuid.NewString(),
		LoadedAt:   time.Now().UTC(),
		Catalog:    cat,
		Embeddings: embeddings,
		Engine:     engine,
		Titles:     titles,
	}
	log.Printf("[Dataset] Loaded version %s: %d books", ds.Version, cat.Size())
	return ds, nil
}

// IndexPath is where the blob of a space's ANN index lives.
func IndexPath(indexDir string, space models.Space) string {
	return filepath.Join(indexDir, string(space)+".ann")
}

func loadIndex(indexDir string, space models.Space, vectorCount int) (*ann.Index, error) {
	path := IndexPath(indexDir, space)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && vectorCount == 0 {
			log.Printf("[Dataset] No %q vectors and no index blob, space disabled", space)
			return nil, nil
		}
		return nil, fmt.Errorf("open %q index blob %s: %w", space, path, err)
	}
	defer func() { _ = f.Close() }()

	idx, err := ann.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %q index blob %s: %w", space, path, err)
	}
	if idx.Size() != vectorCount {
		log.Printf("[Dataset] Warning: %q index holds %d vectors, embedding table holds %d",
			space, idx.Size(), vectorCount)
	}
	return idx, nil
}
