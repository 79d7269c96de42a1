package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/bookmatch/bookmatch-api/internal/database"
	dbmodels "github.com/bookmatch/bookmatch-api/internal/database/models"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// BunStore implements the catalog repositories over a single sqlite artifact
// database holding both the raw input tables and the canonical build output.
type BunStore struct {
	db *bun.DB
}

var (
	_ database.RawCatalogRepository       = (*BunStore)(nil)
	_ database.CanonicalCatalogRepository = (*BunStore)(nil)
)

func NewBunStore(db *sql.DB, dialect schema.Dialect) (*BunStore, error) {
	bunDB := bun.NewDB(db, dialect)

	store := &BunStore{db: bunDB}

	// Create tables if they don't exist
	ctx := context.Background()
	for _, model := range []any{
		(*dbmodels.RawBook)(nil),
		(*dbmodels.RawEmbedding)(nil),
		(*dbmodels.CanonicalBook)(nil),
		(*dbmodels.Embedding)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	return store, nil
}

// RawCatalogRepository implementation

func (s *BunStore) ListRawBooks(ctx context.Context) ([]models.RawBook, error) {
	var rows []dbmodels.RawBook
	if err := s.db.NewSelect().Model(&rows).Order("raw_id ASC").Scan(ctx); err != nil {
		return nil, err
	}

	books := make([]models.RawBook, 0, len(rows))
	for i := range rows {
		book, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func (s *BunStore) ListRawEmbeddings(ctx context.Context, space models.Space) (map[int64][]float32, error) {
	var rows []dbmodels.RawEmbedding
	if err := s.db.NewSelect().Model(&rows).Where("space = ?", string(space)).Scan(ctx); err != nil {
		return nil, err
	}

	vectors := make(map[int64][]float32, len(rows))
	for i := range rows {
		vec, err := rows[i].Vector()
		if err != nil {
			return nil, err
		}
		vectors[rows[i].BookID] = vec
	}
	return vectors, nil
}

// InsertRawBooks seeds the pipeline input tables. Used by fixtures and the
// importer, not by the serving path.
func (s *BunStore) InsertRawBooks(ctx context.Context, books []*dbmodels.RawBook) error {
	if len(books) == 0 {
		return nil
	}
	if _, err := s.db.NewInsert().Model(&books).Exec(ctx); err != nil {
		return err
	}
	return nil
}

// InsertRawEmbeddings seeds raw vectors for one space.
func (s *BunStore) InsertRawEmbeddings(ctx context.Context, rows []*dbmodels.RawEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return err
	}
	return nil
}

// CanonicalCatalogRepository implementation

func (s *BunStore) ReplaceCanonicalBooks(ctx context.Context, books []*models.CanonicalBook) error {
	rows := make([]*dbmodels.CanonicalBook, 0, len(books))
	for _, b := range books {
		row, err := dbmodels.FromDomain(b)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*dbmodels.CanonicalBook)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func (s *BunStore) ListCanonicalBooks(ctx context.Context) ([]*models.CanonicalBook, error) {
	var rows []dbmodels.CanonicalBook
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}

	books := make([]*models.CanonicalBook, 0, len(rows))
	for i := range rows {
		book, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func (s *BunStore) ReplaceCanonicalEmbeddings(ctx context.Context, space models.Space, vectors map[int64][]float32) error {
	ids := make([]int64, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]*dbmodels.Embedding, 0, len(ids))
	for _, id := range ids {
		row, err := dbmodels.NewEmbedding(id, space, vectors[id])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*dbmodels.Embedding)(nil)).Where("space = ?", string(space)).Exec(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func (s *BunStore) ListCanonicalEmbeddings(ctx context.Context, space models.Space) (map[int64][]float32, error) {
	var rows []dbmodels.Embedding
	if err := s.db.NewSelect().Model(&rows).Where("space = ?", string(space)).Scan(ctx); err != nil {
		return nil, err
	}

	vectors := make(map[int64][]float32, len(rows))
	for i := range rows {
		vec, err := rows[i].Vector()
		if err != nil {
			return nil, err
		}
		vectors[rows[i].BookID] = vec
	}
	return vectors, nil
}
