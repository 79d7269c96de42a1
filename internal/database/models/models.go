package models

import (
	"encoding/json"
	"fmt"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/uptrace/bun"
)

// RawBook is a catalog row as delivered by the offline extraction pipeline,
// before identity resolution. Link lists and vectors travel as JSON columns
// so the extraction side stays schema-free.
type RawBook struct {
	bun.BaseModel `bun:"table:raw_books,alias:rb"`

	RawID            int64   `bun:"raw_id,pk"`
	Title            string  `bun:",notnull"`
	Author           string  `bun:",nullzero"`
	Popularity       float64 `bun:",notnull,default:0"`
	SimilarBooksJSON string  `bun:"similar_books_json,nullzero"`
	HasDescription   bool    `bun:",notnull,default:false"`
	HasGenreVector   bool    `bun:",notnull,default:false"`
}

// ToDomain decodes the JSON link column into a domain record.
func (r *RawBook) ToDomain() (models.RawBook, error) {
	links, err := decodeIDList(r.SimilarBooksJSON)
	if err != nil {
		return models.RawBook{}, fmt.Errorf("raw book %d: %w", r.RawID, err)
	}
	return models.RawBook{
		RawID:          r.RawID,
		Title:          r.Title,
		Author:         r.Author,
		Popularity:     r.Popularity,
		RawLinks:       links,
		HasDescription: r.HasDescription,
		HasGenreVector: r.HasGenreVector,
	}, nil
}

// CanonicalBook is a row of the canonical catalog written by the offline
// build and read once at serving startup.
type CanonicalBook struct {
	bun.BaseModel `bun:"table:canonical_books,alias:cb"`

	ID                int64   `bun:",pk"`
	MergeKey          string  `bun:"merge_key,unique,notnull"`
	DisplayTitle      string  `bun:",notnull"`
	Author            string  `bun:",nullzero"`
	Popularity        float64 `bun:",notnull,default:0"`
	ExplicitLinksJSON string  `bun:"explicit_links_json,nullzero"`
	HasDescription    bool    `bun:",notnull,default:false"`
	HasGenreVector    bool    `bun:",notnull,default:false"`
}

// FromDomain converts a resolved canonical record to its row form.
func FromDomain(b *models.CanonicalBook) (*CanonicalBook, error) {
	links, err := encodeIDList(b.ExplicitLinks)
	if err != nil {
		return nil, fmt.Errorf("canonical book %d: %w", b.ID, err)
	}
	return &CanonicalBook{
		ID:                b.ID,
		MergeKey:          b.MergeKey,
		DisplayTitle:      b.DisplayTitle,
		Author:            b.Author,
		Popularity:        b.Popularity,
		ExplicitLinksJSON: links,
		HasDescription:    b.HasDescription,
		HasGenreVector:    b.HasGenreVector,
	}, nil
}

// ToDomain decodes the row back into the immutable serving record.
func (c *CanonicalBook) ToDomain() (*models.CanonicalBook, error) {
	links, err := decodeIDList(c.ExplicitLinksJSON)
	if err != nil {
		return nil, fmt.Errorf("canonical book %d: %w", c.ID, err)
	}
	return &models.CanonicalBook{
		ID:             c.ID,
		MergeKey:       c.MergeKey,
		DisplayTitle:   c.DisplayTitle,
		Author:         c.Author,
		Popularity:     c.Popularity,
		ExplicitLinks:  links,
		HasDescription: c.HasDescription,
		HasGenreVector: c.HasGenreVector,
	}, nil
}

// Embedding is one vector of one embedding space, keyed by canonical id.
// The raw-id keyed pipeline input lives in RawEmbedding.
type Embedding struct {
	bun.BaseModel `bun:"table:canonical_embeddings,alias:ce"`

	BookID     int64  `bun:"book_id,pk"`
	Space      string `bun:",pk"`
	VectorJSON string `bun:"vector_json,notnull"`
}

// Vector decodes the JSON-encoded float vector.
func (e *Embedding) Vector() ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(e.VectorJSON), &vec); err != nil {
		return nil, fmt.Errorf("embedding %d/%s: %w", e.BookID, e.Space, err)
	}
	return vec, nil
}

// NewEmbedding encodes a vector into row form.
func NewEmbedding(bookID int64, space models.Space, vec []float32) (*Embedding, error) {
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("embedding %d/%s: %w", bookID, space, err)
	}
	return &Embedding{BookID: bookID, Space: string(space), VectorJSON: string(data)}, nil
}

// RawEmbedding is the raw-id keyed variant of Embedding.
type RawEmbedding struct {
	bun.BaseModel `bun:"table:raw_embeddings,alias:re"`

	BookID     int64  `bun:"book_id,pk"`
	Space      string `bun:",pk"`
	VectorJSON string `bun:"vector_json,notnull"`
}

// Vector decodes the JSON-encoded float vector.
func (e *RawEmbedding) Vector() ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(e.VectorJSON), &vec); err != nil {
		return nil, fmt.Errorf("raw embedding %d/%s: %w", e.BookID, e.Space, err)
	}
	return vec, nil
}

func decodeIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	return ids, nil
}

func encodeIDList(ids []int64) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode id list: %w", err)
	}
	return string(data), nil
}
