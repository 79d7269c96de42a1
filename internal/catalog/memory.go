package catalog

import (
	"sort"

	"github.com/bookmatch/bookmatch-api/internal/domain/models"
)

// Memory is the in-process canonical catalog reader a dataset version serves
// from. It is immutable after construction and therefore safe to share
// across concurrent requests.
type Memory struct {
	books map[int64]*models.CanonicalBook
	ids   []int64
}

// NewMemory indexes the given canonical books by id.
func NewMemory(books []*models.CanonicalBook) *Memory {
	m := &Memory{
		books: make(map[int64]*models.CanonicalBook, len(books)),
		ids:   make([]int64, 0, len(books)),
	}
	for _, b := range books {
		m.books[b.ID] = b
		m.ids = append(m.ids, b.ID)
	}
	sort.Slice(m.ids, func(i, j int) bool { return m.ids[i] < m.ids[j] })
	return m
}

func (m *Memory) Book(id int64) (*models.CanonicalBook, bool) {
	b, ok := m.books[id]
	return b, ok
}

func (m *Memory) IDs() []int64 {
	return m.ids
}

func (m *Memory) Size() int {
	return len(m.ids)
}
