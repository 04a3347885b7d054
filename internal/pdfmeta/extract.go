// Package pdfmeta pulls best-effort metadata out of uploaded PDFs.
package pdfmeta

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Metadata is what Extract could recover from a PDF. Every field is
// best-effort; zero values mean the PDF did not yield that field.
type Metadata struct {
	PageCount int
	Title     string
	Author    string
}

// Extract reads the page count and the Info dictionary title/author from
// data. Malformed or unreadable PDFs yield zero values, never an error:
// extraction must not block an upload. The parser panics on some malformed
// inputs, so the zero-value fallback is installed via recover.
func Extract(data []byte) (meta Metadata) {
	defer func() {
		if recover() != nil {
			meta = Metadata{}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Metadata{}
	}
	meta.PageCount = reader.NumPage()

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		meta.Title = strings.TrimSpace(info.Key("Title").Text())
		meta.Author = strings.TrimSpace(info.Key("Author").Text())
	}
	return meta
}
