package store

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pdflibrary/pkg/domain"
)

// GormStore implements Store using GORM over SQLite or Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and runs auto-migrations. A DSN starting
// with postgres:// (or postgresql://) selects the Postgres driver; anything
// else is treated as a SQLite database path.
func NewGormStore(dsn string) (*GormStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database DSN required")
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		Logger: gormLog,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgresDSN(dsn) {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if !isPostgresDSN(dsn) {
		// SQLite supports a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	if err := db.AutoMigrate(&BookModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AddBook inserts a new catalog row, rejecting duplicate content hashes.
func (s *GormStore) AddBook(b domain.Book) (domain.Book, error) {
	var count int64
	if err := s.db.Model(&BookModel{}).Where("content_hash = ?", b.ContentHash).Count(&count).Error; err != nil {
		return domain.Book{}, err
	}
	if count > 0 {
		return domain.Book{}, ErrDuplicateContent
	}
	model := bookToModel(b)
	model.ID = 0
	if model.AddedAt.IsZero() {
		model.AddedAt = time.Now().UTC()
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return bookFromModel(model), nil
}

// GetBook returns a row by ID.
func (s *GormStore) GetBook(id int64) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// SearchBooks filters by title/author substring and optional exact category,
// newest first.
func (s *GormStore) SearchBooks(filter, category string) ([]domain.Book, error) {
	pattern := "%" + filter + "%"
	tx := s.db.Where("title LIKE ? OR author LIKE ?", pattern, pattern)
	if category != "" && category != domain.AllCategories {
		tx = tx.Where("category = ?", category)
	}
	var models []BookModel
	if err := tx.Order("added_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// DistinctCategories lists the categories in use, ascending.
func (s *GormStore) DistinctCategories() ([]string, error) {
	var categories []string
	err := s.db.Model(&BookModel{}).
		Where("category <> ''").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// UpdateBook overwrites the mutable fields of a row. Unknown IDs are a
// silent no-op.
func (s *GormStore) UpdateBook(id int64, upd domain.BookUpdate) error {
	return s.db.Model(&BookModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":    upd.Title,
			"author":   upd.Author,
			"year":     upd.Year,
			"category": upd.Category,
			"language": upd.Language,
			"notes":    upd.Notes,
		}).Error
}

// DeleteBook removes a row and returns the removed record.
func (s *GormStore) DeleteBook(id int64) (domain.Book, bool, error) {
	book, ok, err := s.GetBook(id)
	if err != nil || !ok {
		return domain.Book{}, false, err
	}
	if err := s.db.Delete(&BookModel{}, "id = ?", id).Error; err != nil {
		return domain.Book{}, false, err
	}
	return book, true, nil
}

// Stats computes the aggregate counters for the statistics view.
func (s *GormStore) Stats() (domain.Stats, error) {
	var stats domain.Stats
	if err := s.db.Model(&BookModel{}).Count(&stats.TotalBooks).Error; err != nil {
		return domain.Stats{}, err
	}
	if err := s.db.Model(&BookModel{}).
		Select("COALESCE(SUM(page_count), 0)").
		Scan(&stats.TotalPages).Error; err != nil {
		return domain.Stats{}, err
	}
	if err := s.db.Model(&BookModel{}).
		Where("author <> ''").
		Distinct("author").
		Count(&stats.DistinctAuthors).Error; err != nil {
		return domain.Stats{}, err
	}
	if err := s.db.Model(&BookModel{}).
		Where("category <> ''").
		Distinct("category").
		Count(&stats.DistinctCategories).Error; err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

// CountByCategory groups books per category, most books first.
func (s *GormStore) CountByCategory() ([]domain.CategoryCount, error) {
	var rows []domain.CategoryCount
	err := s.db.Model(&BookModel{}).
		Select("category, COUNT(*) AS count").
		Where("category <> ''").
		Group("category").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByYear groups books per publication year, newest year first.
func (s *GormStore) CountByYear() ([]domain.YearCount, error) {
	var rows []domain.YearCount
	err := s.db.Model(&BookModel{}).
		Select("year, COUNT(*) AS count").
		Where("year <> 0").
		Group("year").
		Order("year DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
