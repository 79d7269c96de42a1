// Package search resolves free-text title queries to canonical book
// candidates. It runs two stages: an exact token match first, then a fuzzy
// similarity scan for misspelled queries.
package search

import (
	"log"
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/bookmatch/bookmatch-api/internal/catalog"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/domain/repository"
	"github.com/wizenheimer/comet"
)

type titleEntry struct {
	bookID     int64
	display    string
	normalized string
	popularity float64
}

// TitleSearch maps a query string to ranked canonical book candidates. Built
// once per dataset version; read-only afterwards.
type TitleSearch struct {
	bm25     *comet.BM25SearchIndex
	toBook   map[uint32]int64
	entries  []titleEntry
	byBookID map[int64]*titleEntry

	minSimilarity float64
	maxResults    int
}

// NewTitleSearch indexes every catalog title. minSimilarity gates the fuzzy
// stage only: exact token hits are trusted regardless of string distance.
func NewTitleSearch(cat repository.CatalogReader, minSimilarity float64, maxResults int) *TitleSearch {
	if maxResults <= 0 {
		maxResults = 10
	}

	s := &TitleSearch{
		bm25:          comet.NewBM25SearchIndex(),
		toBook:        make(map[uint32]int64, cat.Size()),
		entries:       make([]titleEntry, 0, cat.Size()),
		byBookID:      make(map[int64]*titleEntry, cat.Size()),
		minSimilarity: minSimilarity,
		maxResults:    maxResults,
	}

	for i, id := range cat.IDs() {
		book, ok := cat.Book(id)
		if !ok {
			continue
		}
		normalized := catalog.NormalizeTitle(book.DisplayTitle)
		if normalized == "" {
			continue
		}
		docID := uint32(i + 1)
		s.bm25.Add(docID, normalized)
		s.toBook[docID] = id
		s.entries = append(s.entries, titleEntry{
			bookID:     id,
			display:    book.DisplayTitle,
			normalized: normalized,
			popularity: book.Popularity,
		})
	}
	for i := range s.entries {
		s.byBookID[s.entries[i].bookID] = &s.entries[i]
	}

	log.Printf("[Search] Indexed %d titles", len(s.entries))
	return s
}

// Search returns up to max candidates for the query, or an empty list when
// nothing clears the configured similarity threshold. Never an error: an
// unmatchable query is a normal outcome.
func (s *TitleSearch) Search(query string, max int) []models.SearchCandidate {
	if max <= 0 || max > s.maxResults {
		max = s.maxResults
	}
	normalized := catalog.NormalizeTitle(query)
	if normalized == "" || len(s.entries) == 0 {
		return []models.SearchCandidate{}
	}

	if hits := s.exactStage(normalized, max); len(hits) > 0 {
		return hits
	}
	return s.fuzzyStage(normalized, max)
}

// exactStage matches whole tokens through the BM25 index. Candidates are
// ordered by popularity, but the reported score is the normalized string
// similarity so both stages answer on one scale.
func (s *TitleSearch) exactStage(normalized string, max int) []models.SearchCandidate {
	results, err := s.bm25.NewSearch().
		WithQuery(normalized).
		WithK(max).
		Execute()
	if err != nil || len(results) == 0 {
		return nil
	}

	dice := metrics.NewSorensenDice()
	candidates := make([]models.SearchCandidate, 0, len(results))
	for _, r := range results {
		bookID, ok := s.toBook[r.GetId()]
		if !ok {
			continue
		}
		entry := s.byBookID[bookID]
		candidates = append(candidates, models.SearchCandidate{
			BookID:       bookID,
			DisplayTitle: entry.display,
			Score:        strutil.Similarity(normalized, entry.normalized, dice),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := s.byBookID[candidates[i].BookID].popularity, s.byBookID[candidates[j].BookID].popularity
		if pi != pj {
			return pi > pj
		}
		return candidates[i].BookID < candidates[j].BookID
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// fuzzyStage scans every title with a bigram Sorensen-Dice similarity, keeps
// what clears the threshold, and ranks by similarity with popularity and id
// as tie-breaks.
func (s *TitleSearch) fuzzyStage(normalized string, max int) []models.SearchCandidate {
	dice := metrics.NewSorensenDice()

	type scored struct {
		entry *titleEntry
		score float64
	}
	matches := make([]scored, 0, max)
	for i := range s.entries {
		entry := &s.entries[i]
		score := strutil.Similarity(normalized, entry.normalized, dice)
		if score < s.minSimilarity {
			continue
		}
		matches = append(matches, scored{entry: entry, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		if matches[i].entry.popularity != matches[j].entry.popularity {
			return matches[i].entry.popularity > matches[j].entry.popularity
		}
		return matches[i].entry.bookID < matches[j].entry.bookID
	})
	if len(matches) > max {
		matches = matches[:max]
	}

	candidates := make([]models.SearchCandidate, len(matches))
	for i, m := range matches {
		candidates[i] = models.SearchCandidate{
			BookID:       m.entry.bookID,
			DisplayTitle: m.entry.display,
			Score:        m.score,
		}
	}
	return candidates
}
