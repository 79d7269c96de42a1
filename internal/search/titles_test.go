package search

import (
	"testing"

	"github.com/bookmatch/bookmatch-api/internal/catalog"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

func searchCatalog() *catalog.Memory {
	return catalog.NewMemory([]*models.CanonicalBook{
		{ID: 1, DisplayTitle: "The Alchemist", Popularity: 500},
		{ID: 2, DisplayTitle: "The Archivist", Popularity: 100},
		{ID: 3, DisplayTitle: "Dune", Popularity: 400},
		{ID: 4, DisplayTitle: "Dune Messiah", Popularity: 200},
		{ID: 5, DisplayTitle: "A Wizard of Earthsea", Popularity: 300},
	})
}

func TestSearch_MisspelledQuery(t *testing.T) {
	s := NewTitleSearch(searchCatalog(), 0.5, 10)

	got := s.Search("the alcemist", 5)
	if len(got) == 0 {
		t.Fatal("Expected fuzzy matches for a misspelled title")
	}
	if got[0].DisplayTitle != "The Alchemist" {
		t.Errorf("Expected The Alchemist as top candidate, got %q", got[0].DisplayTitle)
	}
	if got[0].Score < 0.5 {
		t.Errorf("Top candidate must clear the configured threshold, got %f", got[0].Score)
	}
}

func TestSearch_ExactTokens(t *testing.T) {
	s := NewTitleSearch(searchCatalog(), 0.5, 10)

	got := s.Search("dune", 5)
	if len(got) < 2 {
		t.Fatalf("Expected both Dune titles, got %v", got)
	}
	// Exact-stage hits rank by popularity.
	if got[0].BookID != 3 {
		t.Errorf("Expected the more popular Dune first, got book %d", got[0].BookID)
	}
}

func TestSearch_CaseAndPunctuation(t *testing.T) {
	s := NewTitleSearch(searchCatalog(), 0.5, 10)

	got := s.Search("  THE ALCHEMIST! ", 5)
	if len(got) == 0 || got[0].BookID != 1 {
		t.Errorf("Case and punctuation must not matter, got %v", got)
	}
}

func TestSearch_NothingClearsThreshold(t *testing.T) {
	s := NewTitleSearch(searchCatalog(), 0.9, 10)

	got := s.Search("zzzzqqqq", 5)
	if got == nil {
		t.Fatal("Expected empty list, not nil")
	}
	if len(got) != 0 {
		t.Errorf("Expected no candidates below threshold, got %v", got)
	}
}

func TestSearch_CapsResults(t *testing.T) {
	s := NewTitleSearch(searchCatalog(), 0.0, 10)

	got := s.Search("the", 2)
	if len(got) > 2 {
		t.Errorf("Expected at most 2 candidates, got %d", len(got))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := NewTitleSearch(searchCatalog(), 0.5, 10)

	if got := s.Search("   !!! ", 5); len(got) != 0 {
		t.Errorf("Expected no candidates for an empty normalized query, got %v", got)
	}
}
