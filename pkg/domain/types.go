package domain

import "time"

// AllCategories is the category filter sentinel meaning "no category filter".
const AllCategories = "Todas"

// Book is one catalog row. ContentHash is the MD5 digest of the uploaded
// file and doubles as the blob store key.
type Book struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Author           string    `json:"author,omitempty"`
	Year             int       `json:"year,omitempty"`
	Category         string    `json:"category,omitempty"`
	Language         string    `json:"language,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	PageCount        int       `json:"pageCount"`
	SizeKB           int64     `json:"sizeKb"`
	ContentHash      string    `json:"contentHash"`
	OriginalFilename string    `json:"originalFilename"`
	AddedAt          time.Time `json:"addedAt"`
}

// BookUpdate carries the mutable fields of a catalog row. ID, content hash,
// derived fields and the creation timestamp never change after insert.
type BookUpdate struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Year     int    `json:"year"`
	Category string `json:"category"`
	Language string `json:"language"`
	Notes    string `json:"notes"`
}

// Stats holds the aggregate counters shown on the statistics view.
// Distinct counts exclude empty values.
type Stats struct {
	TotalBooks         int64 `json:"totalBooks"`
	TotalPages         int64 `json:"totalPages"`
	DistinctAuthors    int64 `json:"distinctAuthors"`
	DistinctCategories int64 `json:"distinctCategories"`
}

// CategoryCount is the number of books filed under one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// YearCount is the number of books published in one year.
type YearCount struct {
	Year  int   `json:"year"`
	Count int64 `json:"count"`
}
