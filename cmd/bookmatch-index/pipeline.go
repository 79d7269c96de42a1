package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/bookmatch/bookmatch-api/internal/ann"
	"github.com/bookmatch/bookmatch-api/internal/catalog"
	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/database"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/serving"
	"golang.org/x/sync/errgroup"
)

// Store is the artifact access the build needs: raw input on one side,
// canonical output on the other.
type Store interface {
	database.RawCatalogRepository
	database.CanonicalCatalogRepository
}

// Run executes the offline build: resolve raw books into the canonical
// catalog, remap embeddings from raw ids to canonical ids, persist both, and
// write one ANN index blob per embedding space. The whole build is
// deterministic over identical input.
func Run(ctx context.Context, cfg *config.Config, store Store) error {
	raw, err := store.ListRawBooks(ctx)
	if err != nil {
		return fmt.Errorf("list raw books: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("raw catalog is empty")
	}
	log.Printf("[Build] Loaded %d raw books", len(raw))

	resolution, err := catalog.Resolve(raw)
	if err != nil {
		return fmt.Errorf("resolve canonical identities: %w", err)
	}
	log.Printf("[Build] Resolved %d raw books into %d canonical books", len(raw), len(resolution.Books))

	if err := store.ReplaceCanonicalBooks(ctx, resolution.Books); err != nil {
		return fmt.Errorf("persist canonical catalog: %w", err)
	}

	rawByID := make(map[int64]models.RawBook, len(raw))
	for _, b := range raw {
		rawByID[b.RawID] = b
	}

	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return fmt.Errorf("create index dir %s: %w", cfg.IndexDir, err)
	}

	params := ann.Params{
		M:              cfg.HNSWM,
		EfConstruction: cfg.HNSWEfConstruction,
		EfSearch:       cfg.HNSWEfSearch,
	}

	// Each space remaps and builds independently.
	g, gctx := errgroup.WithContext(ctx)
	for _, space := range []models.Space{models.SpaceSemantic, models.SpaceGenre} {
		g.Go(func() error {
			rawVectors, err := store.ListRawEmbeddings(gctx, space)
			if err != nil {
				return fmt.Errorf("list raw %q embeddings: %w", space, err)
			}

			vectors := remapEmbeddings(space, rawVectors, resolution.Remap, rawByID)
			if err := store.ReplaceCanonicalEmbeddings(gctx, space, vectors); err != nil {
				return fmt.Errorf("persist canonical %q embeddings: %w", space, err)
			}

			idx, err := ann.Build(space, vectors, params)
			if err != nil {
				return fmt.Errorf("build %q index: %w", space, err)
			}
			if idx.Size() == 0 {
				log.Printf("[Build] Space %q has no vectors, no index blob written", space)
				return nil
			}
			return persistIndex(idx, serving.IndexPath(cfg.IndexDir, space))
		})
	}
	return g.Wait()
}

// remapEmbeddings rekeys raw-id vectors to canonical ids. When several merged
// raw books carry a vector, the one from the highest-popularity member wins,
// matching how the canonical representative is chosen. Ties fall to the
// lowest raw id.
func remapEmbeddings(space models.Space, rawVectors map[int64][]float32, remap map[int64]int64, rawByID map[int64]models.RawBook) map[int64][]float32 {
	type donor struct {
		rawID      int64
		popularity float64
	}
	chosen := make(map[int64]donor, len(rawVectors))
	vectors := make(map[int64][]float32, len(rawVectors))

	ids := make([]int64, 0, len(rawVectors))
	for rawID := range rawVectors {
		ids = append(ids, rawID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	dropped := 0
	for _, rawID := range ids {
		canonicalID, ok := remap[rawID]
		if !ok {
			dropped++
			continue
		}
		pop := rawByID[rawID].Popularity
		if prev, ok := chosen[canonicalID]; ok && prev.popularity >= pop {
			continue
		}
		chosen[canonicalID] = donor{rawID: rawID, popularity: pop}
		vectors[canonicalID] = rawVectors[rawID]
	}

	if dropped > 0 {
		log.Printf("[Build] Dropped %d %q vectors keyed by unknown raw ids", dropped, space)
	}
	log.Printf("[Build] Remapped %d raw %q vectors onto %d canonical books", len(rawVectors), space, len(vectors))
	return vectors
}

func persistIndex(idx *ann.Index, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index blob %s: %w", path, err)
	}
	if err := idx.Persist(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write index blob %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index blob %s: %w", path, err)
	}
	log.Printf("[Build] Wrote index blob %s (%d vectors)", path, idx.Size())
	return nil
}
