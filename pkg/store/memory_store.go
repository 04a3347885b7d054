package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"pdflibrary/pkg/domain"
)

// MemoryStore keeps the catalog in-process. Used for tests and throwaway
// runs; mirrors the SQL backend's behavior, including ASCII
// case-insensitive substring matching.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	books  map[int64]domain.Book
	hashes map[string]int64 // content hash -> book ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		books:  make(map[int64]domain.Book),
		hashes: make(map[string]int64),
	}
}

// AddBook inserts a row, assigning the next ID. IDs are never reused.
func (m *MemoryStore) AddBook(b domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.hashes[b.ContentHash]; exists {
		return domain.Book{}, ErrDuplicateContent
	}
	b.ID = m.nextID
	m.nextID++
	if b.AddedAt.IsZero() {
		b.AddedAt = time.Now().UTC()
	}
	m.books[b.ID] = b
	m.hashes[b.ContentHash] = b.ID
	return b, nil
}

// GetBook returns a row by ID.
func (m *MemoryStore) GetBook(id int64) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// SearchBooks filters by title/author substring and optional category,
// newest first.
func (m *MemoryStore) SearchBooks(filter, category string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(filter)
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		if !strings.Contains(strings.ToLower(b.Title), needle) &&
			!strings.Contains(strings.ToLower(b.Author), needle) {
			continue
		}
		if category != "" && category != domain.AllCategories && b.Category != category {
			continue
		}
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].AddedAt.Equal(res[j].AddedAt) {
			return res[i].AddedAt.After(res[j].AddedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

// DistinctCategories lists the non-empty categories in use, ascending.
func (m *MemoryStore) DistinctCategories() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, b := range m.books {
		if b.Category != "" {
			seen[b.Category] = struct{}{}
		}
	}
	res := make([]string, 0, len(seen))
	for c := range seen {
		res = append(res, c)
	}
	sort.Strings(res)
	return res, nil
}

// UpdateBook overwrites the mutable fields. Unknown IDs are a silent no-op.
func (m *MemoryStore) UpdateBook(id int64, upd domain.BookUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil
	}
	b.Title = upd.Title
	b.Author = upd.Author
	b.Year = upd.Year
	b.Category = upd.Category
	b.Language = upd.Language
	b.Notes = upd.Notes
	m.books[id] = b
	return nil
}

// DeleteBook removes a row and returns the removed record.
func (m *MemoryStore) DeleteBook(id int64) (domain.Book, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, false, nil
	}
	delete(m.books, id)
	delete(m.hashes, b.ContentHash)
	return b, true, nil
}

// Stats computes aggregate counters.
func (m *MemoryStore) Stats() (domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := domain.Stats{TotalBooks: int64(len(m.books))}
	authors := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, b := range m.books {
		stats.TotalPages += int64(b.PageCount)
		if b.Author != "" {
			authors[b.Author] = struct{}{}
		}
		if b.Category != "" {
			categories[b.Category] = struct{}{}
		}
	}
	stats.DistinctAuthors = int64(len(authors))
	stats.DistinctCategories = int64(len(categories))
	return stats, nil
}

// CountByCategory groups books per category, most books first.
func (m *MemoryStore) CountByCategory() ([]domain.CategoryCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, b := range m.books {
		if b.Category != "" {
			counts[b.Category]++
		}
	}
	res := make([]domain.CategoryCount, 0, len(counts))
	for c, n := range counts {
		res = append(res, domain.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].Category < res[j].Category
	})
	return res, nil
}

// CountByYear groups books per publication year, newest year first.
func (m *MemoryStore) CountByYear() ([]domain.YearCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[int]int64)
	for _, b := range m.books {
		if b.Year != 0 {
			counts[b.Year]++
		}
	}
	res := make([]domain.YearCount, 0, len(counts))
	for y, n := range counts {
		res = append(res, domain.YearCount{Year: y, Count: n})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Year > res[j].Year })
	return res, nil
}
