package serving

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/bookmatch/bookmatch-api/internal/ann"
	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

type fakeStore struct {
	books   []*models.CanonicalBook
	vectors map[models.Space]map[int64][]float32
	err     error
}

func (s *fakeStore) ReplaceCanonicalBooks(ctx context.Context, books []*models.CanonicalBook) error {
	s.books = books
	return nil
}

func (s *fakeStore) ListCanonicalBooks(ctx context.Context) ([]*models.CanonicalBook, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.books, nil
}

func (s *fakeStore) ReplaceCanonicalEmbeddings(ctx context.Context, space models.Space, vectors map[int64][]float32) error {
	if s.vectors == nil {
		s.vectors = make(map[models.Space]map[int64][]float32)
	}
	s.vectors[space] = vectors
	return nil
}

func (s *fakeStore) ListCanonicalEmbeddings(ctx context.Context, space models.Space) (map[int64][]float32, error) {
	return s.vectors[space], nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		APIPort:            8080,
		ArtifactDBPath:     "unused",
		IndexDir:           t.TempDir(),
		DefaultResultCount: 10,
		MaxResultCount:     50,
		FuzzyMinSimilarity: 0.5,
		SearchMaxResults:   10,
		ShutdownTimeout:    0,
	}
	return cfg
}

func testBooks() []*models.CanonicalBook {
	return []*models.CanonicalBook{
		{ID: 1, MergeKey: "dune|frank herbert", DisplayTitle: "Dune", Author: "Frank Herbert", Popularity: 900, ExplicitLinks: []int64{2}, HasDescription: true},
		{ID: 2, MergeKey: "hyperion|dan simmons", DisplayTitle: "Hyperion", Author: "Dan Simmons", Popularity: 500, HasDescription: true},
		{ID: 3, MergeKey: "the alchemist|paulo coelho", DisplayTitle: "The Alchemist", Author: "Paulo Coelho", Popularity: 700},
	}
}

func writeIndex(t *testing.T, dir string, space models.Space, vectors map[int64][]float32) {
	t.Helper()
	idx, err := ann.Build(space, vectors, ann.Params{})
	if err != nil {
		t.Fatalf("Build(%q): %v", space, err)
	}
	f, err := os.Create(IndexPath(dir, space))
	if err != nil {
		t.Fatalf("create blob: %v", err)
	}
	defer f.Close()
	if err := idx.Persist(f); err != nil {
		t.Fatalf("Persist(%q): %v", space, err)
	}
}

func TestLoadDataset(t *testing.T) {
	cfg := testConfig(t)
	semantic := map[int64][]float32{
		1: {1, 0, 0, 0},
		2: {0.9, 0.1, 0, 0},
	}
	store := &fakeStore{
		books: testBooks(),
		vectors: map[models.Space]map[int64][]float32{
			models.SpaceSemantic: semantic,
		},
	}
	writeIndex(t, cfg.IndexDir, models.SpaceSemantic, semantic)

	ds, err := LoadDataset(context.Background(), store, cfg)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Version == "" {
		t.Error("expected a non-empty dataset version")
	}
	if ds.Catalog.Size() != 3 {
		t.Errorf("catalog size = %d, want 3", ds.Catalog.Size())
	}
	if _, ok := ds.Embeddings.Vector(1, models.SpaceSemantic); !ok {
		t.Error("expected semantic vector for book 1")
	}
	if _, ok := ds.Embeddings.Vector(1, models.SpaceGenre); ok {
		t.Error("did not expect a genre vector for book 1")
	}

	// End to end through the wired engine: explicit link plus semantic
	// neighborhood both reachable from the loaded dataset.
	recs, err := ds.Engine.Recommend(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) == 0 || recs[0].CandidateID != 2 {
		t.Fatalf("recs = %+v, want book 2 first", recs)
	}

	hits := ds.Titles.Search("the alcemist", 5)
	if len(hits) == 0 || hits[0].BookID != 3 {
		t.Fatalf("title hits = %+v, want book 3 first", hits)
	}
}

func TestLoadDatasetEmptyCatalogFails(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{}

	_, err := LoadDataset(context.Background(), store, cfg)
	if err == nil {
		t.Fatal("expected an error for an empty canonical catalog")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("err = %v, want mention of empty catalog", err)
	}
}

func TestLoadDatasetMissingBlobWithVectorsFails(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{
		books: testBooks(),
		vectors: map[models.Space]map[int64][]float32{
			models.SpaceSemantic: {1: {1, 0, 0, 0}},
		},
	}

	// Vectors exist but no blob was written to IndexDir.
	_, err := LoadDataset(context.Background(), store, cfg)
	if err == nil {
		t.Fatal("expected an error when the index blob is missing")
	}
}

func TestLoadDatasetNoVectorsOnlyDisablesSpace(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{books: testBooks()}

	ds, err := LoadDataset(context.Background(), store, cfg)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}

	// Book 1 still has explicit links, so fusion serves it without either
	// vector space.
	recs, err := ds.Engine.Recommend(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 || recs[0].CandidateID != 2 {
		t.Fatalf("recs = %+v, want only book 2", recs)
	}
}

func TestManagerSwapsAtomically(t *testing.T) {
	versions := []*Dataset{
		{Version: "v1"},
		{Version: "v2"},
	}
	calls := 0
	load := func(ctx context.Context) (*Dataset, error) {
		ds := versions[calls]
		calls++
		return ds, nil
	}

	m, err := NewManager(context.Background(), load)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := m.Current().Version; got != "v1" {
		t.Fatalf("Current = %s, want v1", got)
	}

	held := m.Current()
	if _, err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := m.Current().Version; got != "v2" {
		t.Errorf("Current after reload = %s, want v2", got)
	}
	// A reference taken before the swap still points at the old version.
	if held.Version != "v1" {
		t.Errorf("held reference = %s, want v1", held.Version)
	}
}

func TestManagerFailedReloadKeepsCurrent(t *testing.T) {
	boom := errors.New("artifact store offline")
	calls := 0
	load := func(ctx context.Context) (*Dataset, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return &Dataset{Version: "v1"}, nil
	}

	m, err := NewManager(context.Background(), load)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Reload(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Reload err = %v, want %v", err, boom)
	}
	if got := m.Current().Version; got != "v1" {
		t.Errorf("Current after failed reload = %s, want v1", got)
	}
}

func TestManagerInitialLoadFailure(t *testing.T) {
	boom := errors.New("no artifacts")
	_, err := NewManager(context.Background(), func(ctx context.Context) (*Dataset, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("NewManager err = %v, want %v", err, boom)
	}
}
