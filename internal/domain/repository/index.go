package repository

// IndexHit is one approximate-nearest-neighbor match, scored on the index's
// similarity scale with higher meaning closer.
type IndexHit struct {
	BookID int64
	Score  float64
}

// VectorIndex is the query side of a built ANN index. Indexes are immutable
// once built; a catalog update means a full rebuild, never an insertion.
type VectorIndex interface {
	// Query returns up to k hits ordered by descending score. Querying an
	// index that was never built or loaded returns ErrIndexNotReady.
	Query(vec []float32, k int) ([]IndexHit, error)

	// Dimensions returns the vector width the index was built for.
	Dimensions() int

	// Size returns the number of vectors in the index.
	Size() int
}
