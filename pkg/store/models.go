package store

import (
	"time"

	"pdflibrary/pkg/domain"
)

// BookModel is the GORM model backing the books table.
type BookModel struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Title            string `gorm:"not null"`
	Author           string
	Year             int
	Category         string `gorm:"index"`
	Language         string
	Notes            string
	PageCount        int
	SizeKB           int64     `gorm:"column:size_kb"`
	ContentHash      string    `gorm:"uniqueIndex;not null"`
	OriginalFilename string    `gorm:"not null"`
	AddedAt          time.Time `gorm:"not null;index"`
}

// TableName keeps the table name stable regardless of model naming.
func (BookModel) TableName() string { return "books" }

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		Year:             b.Year,
		Category:         b.Category,
		Language:         b.Language,
		Notes:            b.Notes,
		PageCount:        b.PageCount,
		SizeKB:           b.SizeKB,
		ContentHash:      b.ContentHash,
		OriginalFilename: b.OriginalFilename,
		AddedAt:          b.AddedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:               m.ID,
		Title:            m.Title,
		Author:           m.Author,
		Year:             m.Year,
		Category:         m.Category,
		Language:         m.Language,
		Notes:            m.Notes,
		PageCount:        m.PageCount,
		SizeKB:           m.SizeKB,
		ContentHash:      m.ContentHash,
		OriginalFilename: m.OriginalFilename,
		AddedAt:          m.AddedAt,
	}
}
