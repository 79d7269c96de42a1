package main

import (
	"context"
	"os"
	"testing"

	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/serving"
)

type fakeStore struct {
	raw    []models.RawBook
	rawVec map[models.Space]map[int64][]float32

	books  []*models.CanonicalBook
	canVec map[models.Space]map[int64][]float32
}

func (s *fakeStore) ListRawBooks(ctx context.Context) ([]models.RawBook, error) {
	return s.raw, nil
}

func (s *fakeStore) ListRawEmbeddings(ctx context.Context, space models.Space) (map[int64][]float32, error) {
	return s.rawVec[space], nil
}

func (s *fakeStore) ReplaceCanonicalBooks(ctx context.Context, books []*models.CanonicalBook) error {
	s.books = books
	return nil
}

func (s *fakeStore) ListCanonicalBooks(ctx context.Context) ([]*models.CanonicalBook, error) {
	return s.books, nil
}

func (s *fakeStore) ReplaceCanonicalEmbeddings(ctx context.Context, space models.Space, vectors map[int64][]float32) error {
	if s.canVec == nil {
		s.canVec = make(map[models.Space]map[int64][]float32)
	}
	s.canVec[space] = vectors
	return nil
}

func (s *fakeStore) ListCanonicalEmbeddings(ctx context.Context, space models.Space) (map[int64][]float32, error) {
	return s.canVec[space], nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		IndexDir:           t.TempDir(),
		DefaultResultCount: 10,
		MaxResultCount:     50,
		FuzzyMinSimilarity: 0.5,
		SearchMaxResults:   10,
	}
}

func TestRun(t *testing.T) {
	// Raw ids 10 and 11 are the same logical book; 11 is more popular and
	// carries the vector that should survive the merge.
	store := &fakeStore{
		raw: []models.RawBook{
			{RawID: 10, Title: "Dune", Author: "Frank Herbert", Popularity: 100, RawLinks: []int64{12}, HasDescription: true},
			{RawID: 11, Title: "Dune (Deluxe Edition)", Author: "Frank Herbert", Popularity: 900, HasDescription: true},
			{RawID: 12, Title: "Hyperion", Author: "Dan Simmons", Popularity: 500, HasDescription: true},
		},
		rawVec: map[models.Space]map[int64][]float32{
			models.SpaceSemantic: {
				10: {0.5, 0.5, 0, 0},
				11: {1, 0, 0, 0},
				12: {0.9, 0.1, 0, 0},
			},
		},
	}
	cfg := testConfig(t)

	if err := Run(context.Background(), cfg, store); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.books) != 2 {
		t.Fatalf("canonical books = %d, want 2", len(store.books))
	}

	semantic := store.canVec[models.SpaceSemantic]
	if len(semantic) != 2 {
		t.Fatalf("semantic vectors = %d, want 2", len(semantic))
	}
	// The merged book keeps the higher-popularity member's vector.
	var duneID int64
	for _, b := range store.books {
		if b.Author == "Frank Herbert" {
			duneID = b.ID
		}
	}
	if got := semantic[duneID]; len(got) == 0 || got[0] != 1 {
		t.Errorf("merged vector = %v, want the raw id 11 vector", got)
	}

	if _, err := os.Stat(serving.IndexPath(cfg.IndexDir, models.SpaceSemantic)); err != nil {
		t.Errorf("expected semantic index blob: %v", err)
	}
	if _, err := os.Stat(serving.IndexPath(cfg.IndexDir, models.SpaceGenre)); !os.IsNotExist(err) {
		t.Errorf("expected no genre blob for an empty space, got %v", err)
	}

	// The build output has to load back into a servable dataset.
	ds, err := serving.LoadDataset(context.Background(), store, cfg)
	if err != nil {
		t.Fatalf("LoadDataset over build output: %v", err)
	}
	if ds.Catalog.Size() != 2 {
		t.Errorf("loaded catalog size = %d, want 2", ds.Catalog.Size())
	}
}

func TestRunEmptyRawCatalog(t *testing.T) {
	store := &fakeStore{}
	if err := Run(context.Background(), testConfig(t), store); err == nil {
		t.Fatal("expected an error for an empty raw catalog")
	}
}

func TestRemapEmbeddingsDropsUnknownRawIDs(t *testing.T) {
	vectors := remapEmbeddings(models.SpaceGenre,
		map[int64][]float32{10: {1, 0}, 99: {0, 1}},
		map[int64]int64{10: 1},
		map[int64]models.RawBook{10: {RawID: 10}},
	)
	if len(vectors) != 1 {
		t.Fatalf("vectors = %v, want only canonical id 1", vectors)
	}
	if got := vectors[1]; got[0] != 1 {
		t.Errorf("vector for id 1 = %v", got)
	}
}

func TestRemapEmbeddingsTieFallsToLowestRawID(t *testing.T) {
	vectors := remapEmbeddings(models.SpaceSemantic,
		map[int64][]float32{10: {1, 0}, 11: {0, 1}},
		map[int64]int64{10: 1, 11: 1},
		map[int64]models.RawBook{
			10: {RawID: 10, Popularity: 5},
			11: {RawID: 11, Popularity: 5},
		},
	)
	if got := vectors[1]; got[0] != 1 {
		t.Errorf("tie vector = %v, want raw id 10's", got)
	}
}
