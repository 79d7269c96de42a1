package models

// Source identifies one of the similarity signals feeding the fusion engine.
type Source string

const (
	SourceExplicit Source = "EXPLICIT"
	SourceSemantic Source = "SEMANTIC"
	SourceGenre    Source = "GENRE"
)

// Tier returns the fusion precedence of the source. Lower means higher
// precedence and the ordering is fixed: explicit links beat semantic
// neighbors, semantic neighbors beat genre neighbors.
func (s Source) Tier() int {
	switch s {
	case SourceExplicit:
		return 1
	case SourceSemantic:
		return 2
	case SourceGenre:
		return 3
	}
	return 0
}

// Space names an embedding space owned by the dataset version.
type Space string

const (
	SpaceSemantic Space = "semantic"
	SpaceGenre    Space = "genre"
)

// RawBook is a catalog record as it arrives from the offline extraction
// pipeline, before duplicate entries are merged. RawLinks reference raw ids.
type RawBook struct {
	RawID          int64
	Title          string
	Author         string
	Popularity     float64
	RawLinks       []int64
	HasDescription bool
	HasGenreVector bool
}

// CanonicalBook is the single record kept for a logical book after identity
// resolution. It is immutable once the dataset version is built.
type CanonicalBook struct {
	ID             int64
	MergeKey       string
	DisplayTitle   string
	Author         string
	Popularity     float64
	ExplicitLinks  []int64
	HasDescription bool
	HasGenreVector bool
}

// NeighborResult is one candidate returned by a similarity source. Score is
// on the source's own scale and must not be compared across sources; Rank is
// 1-based within the source's ordering.
type NeighborResult struct {
	SourceBookID int64
	CandidateID  int64
	Score        float64
	Rank         int
}

// FusedRecommendation is one entry of a fusion response. Sources lists every
// signal that surfaced the candidate, sorted by tier; Tier is the lowest tier
// among them and DisplayRank is the 1-based position in the response.
type FusedRecommendation struct {
	CandidateID int64    `json:"candidate_id"`
	Sources     []Source `json:"sources"`
	Tier        int      `json:"tier"`
	DisplayRank int      `json:"display_rank"`
}

// SearchCandidate is one fuzzy title search hit offered to the user as a
// possible query anchor.
type SearchCandidate struct {
	BookID       int64   `json:"book_id"`
	DisplayTitle string  `json:"display_title"`
	Score        float64 `json:"score"`
}
