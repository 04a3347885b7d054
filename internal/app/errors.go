package app

import "errors"

var (
	// ErrNotFound means no catalog row exists for the requested ID.
	ErrNotFound = errors.New("book not found")
	// ErrTitleRequired means the record would end up with an empty title.
	ErrTitleRequired = errors.New("title required")
	// ErrFileRequired means an upload arrived without file content.
	ErrFileRequired = errors.New("file required")
)
