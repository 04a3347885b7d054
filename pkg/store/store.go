package store

import (
	"errors"

	"pdflibrary/pkg/domain"
)

// ErrDuplicateContent is returned when an insert carries a content hash that
// is already present in the catalog.
var ErrDuplicateContent = errors.New("book content already exists")

// Store defines persistence operations for the book catalog.
type Store interface {
	// AddBook inserts a new row and returns it with the assigned ID.
	// Returns ErrDuplicateContent when the content hash is already cataloged.
	AddBook(domain.Book) (domain.Book, error)

	// GetBook returns the row with the given ID, or false when absent.
	GetBook(id int64) (domain.Book, bool, error)

	// SearchBooks returns rows whose title or author contains filter as a
	// substring, optionally restricted to an exact category. An empty filter
	// matches everything; an empty category (or domain.AllCategories) skips
	// the category restriction. Results are ordered newest first.
	SearchBooks(filter, category string) ([]domain.Book, error)

	// DistinctCategories returns the non-empty categories in use, ascending.
	DistinctCategories() ([]string, error)

	// UpdateBook overwrites the mutable fields of the row with the given ID.
	// Unknown IDs are a silent no-op.
	UpdateBook(id int64, upd domain.BookUpdate) error

	// DeleteBook removes the row and returns it so callers can clean up the
	// backing blob. The bool reports whether the row existed.
	DeleteBook(id int64) (domain.Book, bool, error)

	// Stats returns aggregate counters over the whole catalog.
	Stats() (domain.Stats, error)

	// CountByCategory returns per-category book counts, most books first.
	CountByCategory() ([]domain.CategoryCount, error)

	// CountByYear returns per-publication-year book counts, newest year first.
	CountByYear() ([]domain.YearCount, error)
}
