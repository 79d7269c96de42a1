// Package catalog builds the canonical catalog: it merges duplicate raw
// records into one record per logical book and produces the id remap table
// every downstream component uses to translate raw identifiers.
package catalog

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

// AmbiguousMergeError reports a merge key that collapsed records with
// provably different authors while popularity offers no tie-break. It is
// surfaced to the operator for manual review, never silently resolved.
type AmbiguousMergeError struct {
	Key    string
	RawIDs []int64
}

func (e *AmbiguousMergeError) Error() string {
	return fmt.Sprintf("ambiguous merge for key %q: raw ids %v have different authors and equal popularity", e.Key, e.RawIDs)
}

// Resolution is the output of canonical identity resolution: the canonical
// catalog in ascending id order plus the raw-to-canonical remap table.
type Resolution struct {
	Books []*models.CanonicalBook
	Remap map[int64]int64
}

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases a title and strips edition and subtitle markers:
// parenthesized groups, anything after a colon, and remaining punctuation.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	if idx := strings.Index(t, ":"); idx >= 0 {
		t = t[:idx]
	}
	t = parentheticalRe.ReplaceAllString(t, " ")
	t = nonAlnumRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(t, " "))
}

// NormalizeAuthor lowercases an author name and strips punctuation.
func NormalizeAuthor(author string) string {
	a := strings.ToLower(author)
	a = nonAlnumRe.ReplaceAllString(a, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(a, " "))
}

// MergeKey is the identity under which duplicate raw records collapse.
func MergeKey(title, author string) string {
	return NormalizeTitle(title) + "|" + NormalizeAuthor(author)
}

// Resolve merges the raw catalog into the canonical catalog. Raw records
// sharing a merge key become one canonical book: their link sets are unioned
// after remapping, the most popular record supplies the display fields, and
// self references plus links to unknown raw ids are dropped. Canonical ids
// are assigned densely in ascending order of each group's smallest raw id,
// so the same input always yields the same output.
func Resolve(raw []models.RawBook) (*Resolution, error) {
	groups := make(map[string][]models.RawBook)
	for _, rb := range raw {
		key := MergeKey(rb.Title, rb.Author)
		groups[key] = append(groups[key], rb)
	}

	// Deterministic group order: ascending smallest raw id.
	type keyedGroup struct {
		key      string
		minRawID int64
		members  []models.RawBook
	}
	ordered := make([]keyedGroup, 0, len(groups))
	for key, members := range groups {
		minID := members[0].RawID
		for _, m := range members[1:] {
			if m.RawID < minID {
				minID = m.RawID
			}
		}
		ordered = append(ordered, keyedGroup{key: key, minRawID: minID, members: members})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].minRawID < ordered[j].minRawID })

	remap := make(map[int64]int64, len(raw))
	reps := make([]models.RawBook, 0, len(ordered))
	for i, g := range ordered {
		canonicalID := int64(i + 1)

		rep, err := selectRepresentative(g.key, g.members)
		if err != nil {
			return nil, err
		}
		reps = append(reps, rep)

		for _, m := range g.members {
			remap[m.RawID] = canonicalID
		}
	}

	books := make([]*models.CanonicalBook, 0, len(ordered))
	for i, g := range ordered {
		canonicalID := int64(i + 1)
		rep := reps[i]

		linkSet := make(map[int64]struct{})
		hasDescription := false
		hasGenre := false
		for _, m := range g.members {
			hasDescription = hasDescription || m.HasDescription
			hasGenre = hasGenre || m.HasGenreVector
			for _, rawLink := range m.RawLinks {
				target, ok := remap[rawLink]
				if !ok || target == canonicalID {
					continue
				}
				linkSet[target] = struct{}{}
			}
		}
		links := make([]int64, 0, len(linkSet))
		for id := range linkSet {
			links = append(links, id)
		}
		sort.Slice(links, func(a, b int) bool { return links[a] < links[b] })

		books = append(books, &models.CanonicalBook{
			ID:             canonicalID,
			MergeKey:       g.key,
			DisplayTitle:   rep.Title,
			Author:         rep.Author,
			Popularity:     rep.Popularity,
			ExplicitLinks:  links,
			HasDescription: hasDescription,
			HasGenreVector: hasGenre,
		})
	}

	log.Printf("[Catalog] Resolved %d raw records into %d canonical books", len(raw), len(books))
	return &Resolution{Books: books, Remap: remap}, nil
}

// selectRepresentative picks the member with the highest popularity. Only
// when that maximum is shared by members whose raw author strings actually
// differ has normalization destroyed the distinguishing information with no
// tie-break left, and the merge is ambiguous. A strict popularity winner
// resolves the group no matter where it sits in the input.
func selectRepresentative(key string, members []models.RawBook) (models.RawBook, error) {
	maxPop := members[0].Popularity
	for _, m := range members[1:] {
		if m.Popularity > maxPop {
			maxPop = m.Popularity
		}
	}

	winners := make([]models.RawBook, 0, 1)
	for _, m := range members {
		if m.Popularity == maxPop {
			winners = append(winners, m)
		}
	}

	rep := winners[0]
	for _, m := range winners[1:] {
		if !strings.EqualFold(strings.TrimSpace(m.Author), strings.TrimSpace(rep.Author)) {
			ids := make([]int64, 0, len(winners))
			for _, w := range winners {
				ids = append(ids, w.RawID)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			return models.RawBook{}, &AmbiguousMergeError{Key: key, RawIDs: ids}
		}
		if m.RawID < rep.RawID {
			rep = m
		}
	}
	return rep, nil
}
