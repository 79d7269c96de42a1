// Package fusion merges the heterogeneous similarity sources into a single
// ranked, deduplicated, source-attributed recommendation list.
package fusion

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/domain/repository"
	"golang.org/x/sync/errgroup"
)

// tierOrder is the fixed precedence of the fusion tiers. It is never
// reordered: curated links beat semantic neighbors beat genre neighbors.
var tierOrder = []models.Source{
	models.SourceExplicit,
	models.SourceSemantic,
	models.SourceGenre,
}

// Engine fuses per-source neighbor lists under the tiered precedence policy.
// It holds only immutable state and is safe for concurrent use.
type Engine struct {
	catalog repository.CatalogReader
	sources map[models.Source]repository.SimilaritySource
}

// NewEngine wires the engine to the canonical catalog and the available
// similarity sources. Passing fewer than three sources is allowed; absent
// kinds simply never contribute.
func NewEngine(catalog repository.CatalogReader, sources ...repository.SimilaritySource) *Engine {
	byKind := make(map[models.Source]repository.SimilaritySource, len(sources))
	for _, s := range sources {
		byKind[s.Kind()] = s
	}
	return &Engine{catalog: catalog, sources: byKind}
}

// Recommend produces up to n fused recommendations for bookID. Sources are
// queried in parallel, then accumulated tier by tier: all explicit links
// first, semantic neighbors fill the remainder, genre neighbors fill what is
// still short. A candidate surfacing in several sources is kept once, at the
// lowest contributing tier, with every producing source attributed.
//
// Errors: ErrUnknownBook for an id outside the catalog, ErrNoSignalAvailable
// when no source is applicable at all. A failing source degrades gracefully
// except for ErrIndexNotReady, which is a fatal configuration error.
func (e *Engine) Recommend(ctx context.Context, bookID int64, n int) ([]models.FusedRecommendation, error) {
	book, ok := e.catalog.Book(bookID)
	if !ok {
		return nil, repository.ErrUnknownBook
	}
	if n <= 0 {
		return nil, nil
	}

	applicable := make([]repository.SimilaritySource, 0, len(tierOrder))
	for _, kind := range tierOrder {
		if src, found := e.sources[kind]; found && src.Applicable(book) {
			applicable = append(applicable, src)
		}
	}
	if len(applicable) == 0 {
		return nil, repository.ErrNoSignalAvailable
	}

	// Sources are commutative and side-effect free, so dispatch them all at
	// once. One extra slot per source keeps the fill loop fed after the
	// queried book itself is skipped.
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	bySource := make(map[models.Source][]models.NeighborResult, len(applicable))

	for _, src := range applicable {
		g.Go(func() error {
			results, err := src.Query(gctx, bookID, n+1)
			if err != nil {
				if errors.Is(err, repository.ErrIndexNotReady) {
					return err
				}
				log.Printf("[Fusion] Warning: %s source failed, degrading gracefully: %v", src.Kind(), err)
				return nil
			}
			mu.Lock()
			bySource[src.Kind()] = results
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.accumulate(bookID, n, bySource), nil
}

// accumulate runs the tier fill over the gathered per-source results.
func (e *Engine) accumulate(bookID int64, n int, bySource map[models.Source][]models.NeighborResult) []models.FusedRecommendation {
	// Attribution is the union of every source that surfaced a candidate,
	// including tiers beyond the one that determines its position.
	attribution := make(map[int64][]models.Source)
	for _, kind := range tierOrder {
		for _, r := range bySource[kind] {
			attribution[r.CandidateID] = append(attribution[r.CandidateID], kind)
		}
	}

	chosen := make(map[int64]bool, n)
	fused := make([]models.FusedRecommendation, 0, n)

	for _, kind := range tierOrder {
		if len(fused) >= n {
			break
		}
		for _, r := range e.orderWithinTier(bySource[kind]) {
			if len(fused) >= n {
				break
			}
			if r.CandidateID == bookID || chosen[r.CandidateID] {
				continue
			}
			if _, known := e.catalog.Book(r.CandidateID); !known {
				continue
			}
			chosen[r.CandidateID] = true

			// tierOrder iteration already appended sources in tier order,
			// so the first entry carries the lowest tier.
			srcs := attribution[r.CandidateID]
			fused = append(fused, models.FusedRecommendation{
				CandidateID: r.CandidateID,
				Sources:     srcs,
				Tier:        srcs[0].Tier(),
				DisplayRank: len(fused) + 1,
			})
		}
	}
	return fused
}

// orderWithinTier makes tier output total-ordered: score descending, then the
// source's intrinsic rank, then candidate popularity descending, and finally
// ascending candidate id so equal-score output is byte-identical across runs.
func (e *Engine) orderWithinTier(results []models.NeighborResult) []models.NeighborResult {
	ordered := make([]models.NeighborResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		pa, pb := e.popularity(a.CandidateID), e.popularity(b.CandidateID)
		if pa != pb {
			return pa > pb
		}
		return a.CandidateID < b.CandidateID
	})
	return ordered
}

func (e *Engine) popularity(bookID int64) float64 {
	if book, ok := e.catalog.Book(bookID); ok {
		return book.Popularity
	}
	return 0
}
