// Package ann wraps the comet vector index behind the build / query /
// persist / load contract the similarity sources rely on. One Index instance
// owns one embedding space and is immutable once built.
package ann

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/domain/repository"
	"github.com/wizenheimer/comet"
)

// Params tunes the underlying HNSW graph. Zero values fall back to comet's
// defaults.
type Params struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// Index is an approximate nearest neighbor index over one embedding space.
// Safe for concurrent queries; never mutated after Build or Load returns.
type Index struct {
	space  models.Space
	dims   int
	hnsw   *comet.HNSWIndex
	toBook map[uint32]int64
}

// Build constructs an index from the full vector set of a space. Vectors are
// inserted in ascending book id order so a rebuild over identical input
// yields an identical graph. An empty vector set produces a not-ready index:
// queries against it fail with ErrIndexNotReady.
func Build(space models.Space, vectors map[int64][]float32, params Params) (*Index, error) {
	if len(vectors) == 0 {
		log.Printf("[ANN] No vectors for space %q, index left not ready", space)
		return &Index{space: space}, nil
	}

	ids := make([]int64, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	dims := len(vectors[ids[0]])
	m, efConstruction, efSearch := comet.DefaultHNSWConfig()
	if params.M > 0 {
		m = params.M
	}
	if params.EfConstruction > 0 {
		efConstruction = params.EfConstruction
	}
	if params.EfSearch > 0 {
		efSearch = params.EfSearch
	}

	hnsw, err := comet.NewHNSWIndex(dims, comet.Cosine, m, efConstruction, efSearch)
	if err != nil {
		return nil, fmt.Errorf("create hnsw index for space %q: %w", space, err)
	}

	toBook := make(map[uint32]int64, len(ids))
	for i, id := range ids {
		vec := vectors[id]
		if len(vec) != dims {
			return nil, fmt.Errorf("space %q: book %d has dimension %d, index expects %d", space, id, len(vec), dims)
		}
		// Node ids are assigned sequentially so canonical ids of any size
		// survive the uint32 node id space.
		nodeID := uint32(i + 1)
		node := comet.NewVectorNodeWithID(nodeID, vec)
		if err := hnsw.Add(*node); err != nil {
			return nil, fmt.Errorf("add book %d to space %q: %w", id, space, err)
		}
		toBook[nodeID] = id
	}

	log.Printf("[ANN] Built %q index: %d vectors, %d dims", space, len(ids), dims)
	return &Index{space: space, dims: dims, hnsw: hnsw, toBook: toBook}, nil
}

// Query returns up to k hits ordered by descending similarity. Equal scores
// are broken by ascending book id so query output is deterministic.
func (x *Index) Query(vec []float32, k int) ([]repository.IndexHit, error) {
	if x == nil || x.hnsw == nil {
		return nil, repository.ErrIndexNotReady
	}
	if len(vec) != x.dims {
		return nil, fmt.Errorf("space %q: query has dimension %d, index expects %d", x.space, len(vec), x.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := x.hnsw.NewSearch().
		WithQuery(vec).
		WithK(k).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("space %q query: %w", x.space, err)
	}

	hits := make([]repository.IndexHit, 0, len(results))
	for _, r := range results {
		bookID, ok := x.toBook[r.GetId()]
		if !ok {
			continue
		}
		// comet reports cosine distance (lower = closer); everything
		// downstream ranks by similarity, so convert at this boundary.
		hits = append(hits, repository.IndexHit{BookID: bookID, Score: 1 - float64(r.GetScore())})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].BookID < hits[j].BookID
	})
	return hits, nil
}

// Dimensions returns the vector width the index was built for.
func (x *Index) Dimensions() int {
	if x == nil {
		return 0
	}
	return x.dims
}

// Size returns the number of vectors in the index.
func (x *Index) Size() int {
	if x == nil {
		return 0
	}
	return len(x.toBook)
}

// Space returns the embedding space this index serves.
func (x *Index) Space() models.Space {
	if x == nil {
		return ""
	}
	return x.space
}

// envelope is the persisted form: index metadata plus the serialized comet
// graph. The id map has to travel with the graph because comet assigns its
// own node ids.
type envelope struct {
	Space  models.Space
	Dims   int
	ToBook map[uint32]int64
	Blob   []byte
}

// Persist writes the index as an opaque blob.
func (x *Index) Persist(w io.Writer) error {
	if x == nil || x.hnsw == nil {
		return repository.ErrIndexNotReady
	}

	var blob bytes.Buffer
	if _, err := x.hnsw.WriteTo(&blob); err != nil {
		return fmt.Errorf("serialize %q index: %w", x.space, err)
	}

	env := envelope{Space: x.space, Dims: x.dims, ToBook: x.toBook, Blob: blob.Bytes()}
	if err := gob.NewEncoder(w).Encode(&env); err != nil {
		return fmt.Errorf("encode %q index envelope: %w", x.space, err)
	}
	return nil
}

// Load reads a blob written by Persist. A corrupt or truncated blob is a
// startup-fatal error, not something to retry.
func Load(r io.Reader) (*Index, error) {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode index envelope: %w", err)
	}

	m, efConstruction, efSearch := comet.DefaultHNSWConfig()
	hnsw, err := comet.NewHNSWIndex(env.Dims, comet.Cosine, m, efConstruction, efSearch)
	if err != nil {
		return nil, fmt.Errorf("create hnsw index for space %q: %w", env.Space, err)
	}
	if _, err := hnsw.ReadFrom(bytes.NewReader(env.Blob)); err != nil {
		return nil, fmt.Errorf("deserialize %q index: %w", env.Space, err)
	}

	log.Printf("[ANN] Loaded %q index: %d vectors, %d dims", env.Space, len(env.ToBook), env.Dims)
	return &Index{space: env.Space, dims: env.Dims, hnsw: hnsw, toBook: env.ToBook}, nil
}
