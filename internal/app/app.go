// Package app implements the catalog's application service: every operation
// the HTTP layer exposes maps onto one method here.
package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"pdflibrary/internal/googlebooks"
	"pdflibrary/internal/pdfmeta"
	"pdflibrary/pkg/domain"
	"pdflibrary/pkg/storage"
	"pdflibrary/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	// Store overrides the database-backed catalog store (used by tests).
	Store store.Store
	// Blobs overrides the file store (used by tests).
	Blobs storage.BlobStore
	// DatabaseURL is the catalog DSN when Store is nil.
	DatabaseURL string
	// StorageDir is the local blob directory when Blobs is nil.
	StorageDir string
	// Lookup is the external search client; nil disables external lookup.
	Lookup *googlebooks.Client
}

// App wires the catalog store, the blob store and the external lookup.
type App struct {
	store  store.Store
	blobs  storage.BlobStore
	lookup *googlebooks.Client
}

// New constructs the application with database-backed metadata storage and
// content-addressed file storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		gs, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init catalog store: %w", err)
		}
		dataStore = gs
	}
	blobs := cfg.Blobs
	if blobs == nil {
		if cfg.StorageDir == "" {
			return nil, fmt.Errorf("storage directory required")
		}
		blobs = storage.NewDiskStore(cfg.StorageDir)
	}
	return &App{store: dataStore, blobs: blobs, lookup: cfg.Lookup}, nil
}

// UploadParams carries the user-supplied metadata accompanying an upload.
// Empty Title and Author fall back to the PDF's embedded metadata, then to
// the filename stem for the title.
type UploadParams struct {
	Filename string
	Title    string
	Author   string
	Year     int
	Category string
	Language string
	Notes    string
}

// UploadBook catalogs a new PDF: hashes the content, extracts metadata,
// inserts the row and persists the blob. Duplicate content is rejected with
// store.ErrDuplicateContent. If the blob write fails the freshly inserted
// row is deleted again so the catalog never references a blob that was
// never written.
func (a *App) UploadBook(ctx context.Context, params UploadParams, data []byte) (domain.Book, error) {
	if len(data) == 0 {
		return domain.Book{}, ErrFileRequired
	}
	hash := storage.ContentHash(data)
	meta := pdfmeta.Extract(data)

	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = meta.Title
	}
	if title == "" {
		title = titleFromFilename(params.Filename)
	}
	if title == "" {
		return domain.Book{}, ErrTitleRequired
	}
	author := strings.TrimSpace(params.Author)
	if author == "" {
		author = meta.Author
	}

	book := domain.Book{
		Title:            title,
		Author:           author,
		Year:             params.Year,
		Category:         strings.TrimSpace(params.Category),
		Language:         strings.TrimSpace(params.Language),
		Notes:            params.Notes,
		PageCount:        meta.PageCount,
		SizeKB:           int64(len(data) / 1024),
		ContentHash:      hash,
		OriginalFilename: filepath.Base(params.Filename),
		AddedAt:          time.Now().UTC(),
	}
	saved, err := a.store.AddBook(book)
	if err != nil {
		return domain.Book{}, err
	}
	if err := a.blobs.Put(ctx, hash, bytes.NewReader(data), int64(len(data))); err != nil {
		if _, _, delErr := a.store.DeleteBook(saved.ID); delErr != nil {
			slog.Error("rollback after failed blob write", "id", saved.ID, "err", delErr)
		}
		return domain.Book{}, fmt.Errorf("save file: %w", err)
	}
	return saved, nil
}

// SearchBooks returns catalog rows matching the title/author substring
// filter and optional category, newest first.
func (a *App) SearchBooks(filter, category string) ([]domain.Book, error) {
	return a.store.SearchBooks(filter, category)
}

// GetBook retrieves a single row.
func (a *App) GetBook(id int64) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

// UpdateBook overwrites the mutable fields of a row. An unknown ID is a
// silent no-op, matching the store contract.
func (a *App) UpdateBook(id int64, upd domain.BookUpdate) error {
	if strings.TrimSpace(upd.Title) == "" {
		return ErrTitleRequired
	}
	return a.store.UpdateBook(id, upd)
}

// DeleteBook removes the row and, when the row existed, its backing blob.
func (a *App) DeleteBook(ctx context.Context, id int64) error {
	book, existed, err := a.store.DeleteBook(id)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	if err := a.blobs.Delete(ctx, book.ContentHash); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// DownloadBook returns the stored PDF bytes and the original filename for
// download naming. A row whose blob is gone yields storage.ErrBlobNotFound.
func (a *App) DownloadBook(ctx context.Context, id int64) ([]byte, string, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrNotFound
	}
	data, err := a.blobs.Get(ctx, book.ContentHash)
	if err != nil {
		return nil, "", err
	}
	return data, book.OriginalFilename, nil
}

// Categories lists the distinct categories currently in use.
func (a *App) Categories() ([]string, error) {
	return a.store.DistinctCategories()
}

// Statistics is the payload of the statistics view: aggregates plus the
// per-category and per-year group counts backing its charts.
type Statistics struct {
	domain.Stats
	ByCategory []domain.CategoryCount `json:"byCategory"`
	ByYear     []domain.YearCount     `json:"byYear"`
}

// Stats computes the statistics view.
func (a *App) Stats() (Statistics, error) {
	stats, err := a.store.Stats()
	if err != nil {
		return Statistics{}, err
	}
	byCategory, err := a.store.CountByCategory()
	if err != nil {
		return Statistics{}, err
	}
	byYear, err := a.store.CountByYear()
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{Stats: stats, ByCategory: byCategory, ByYear: byYear}, nil
}

// LookupExternal queries the external book search API.
func (a *App) LookupExternal(ctx context.Context, query string, maxResults int) ([]googlebooks.Volume, error) {
	if a.lookup == nil {
		return nil, fmt.Errorf("external lookup not configured")
	}
	return a.lookup.Search(ctx, query, maxResults)
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(title)
	if title == "." || title == string(filepath.Separator) {
		return ""
	}
	return title
}
