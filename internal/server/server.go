// Package server exposes the catalog over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pdflibrary/internal/app"
	"pdflibrary/internal/googlebooks"
	"pdflibrary/internal/util"
	"pdflibrary/pkg/domain"
	"pdflibrary/pkg/storage"
	"pdflibrary/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the library service.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("library", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/books", s.handleBooks)
	s.mux.HandleFunc("/books/", s.handleBookByID)
	s.mux.HandleFunc("/categories", s.handleCategories)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.HandleFunc("/lookup", s.handleLookup)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadBook(w, r)
	case http.MethodGet:
		s.handleSearchBooks(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /books/{id} or /books/{id}/download
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.SplitN(path, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	if len(parts) == 2 {
		if parts[1] != "download" {
			notFound(w, "not found")
			return
		}
		s.handleDownloadBook(w, r, id)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleGetBook(w, id)
	case http.MethodPatch:
		s.handleUpdateBook(w, r, id)
	case http.MethodDelete:
		s.handleDeleteBook(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	year := 0
	if v := strings.TrimSpace(r.FormValue("year")); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
	}
	params := app.UploadParams{
		Filename: header.Filename,
		Title:    r.FormValue("title"),
		Author:   r.FormValue("author"),
		Year:     year,
		Category: r.FormValue("category"),
		Language: r.FormValue("language"),
		Notes:    r.FormValue("notes"),
	}
	book, err := s.app.UploadBook(r.Context(), params, data)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateContent):
			writeError(w, http.StatusConflict, "book already in library")
		case errors.Is(err, app.ErrTitleRequired):
			writeError(w, http.StatusBadRequest, "title required")
		case errors.Is(err, app.ErrFileRequired):
			writeError(w, http.StatusBadRequest, "file is required (field: file)")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	books, err := s.app.SearchBooks(filter, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, id int64) {
	book, err := s.app.GetBook(id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			notFound(w, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, id int64) {
	var upd updateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.UpdateBook(id, upd.toDomain()); err != nil {
		if errors.Is(err, app.ErrTitleRequired) {
			writeError(w, http.StatusBadRequest, "title required")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.app.DeleteBook(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDownloadBook(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	data, filename, err := s.app.DownloadBook(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotFound):
			notFound(w, "book not found")
		case errors.Is(err, storage.ErrBlobNotFound):
			notFound(w, "download unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	categories, err := s.app.Categories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": categories})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required (param: q)")
		return
	}
	maxResults := 10
	if v := r.URL.Query().Get("maxResults"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxResults = n
		}
	}
	volumes, err := s.app.LookupExternal(r.Context(), query, maxResults)
	if err != nil {
		switch {
		case errors.Is(err, googlebooks.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "external search rate limited, try again later")
		case googlebooks.IsTimeout(err):
			writeError(w, http.StatusGatewayTimeout, "external search timed out")
		default:
			writeError(w, http.StatusBadGateway, "external search failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": volumes,
		"count": len(volumes),
	})
}

type updateRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Year     int    `json:"year"`
	Category string `json:"category"`
	Language string `json:"language"`
	Notes    string `json:"notes"`
}

func (u updateRequest) toDomain() domain.BookUpdate {
	return domain.BookUpdate{
		Title:    u.Title,
		Author:   u.Author,
		Year:     u.Year,
		Category: u.Category,
		Language: u.Language,
		Notes:    u.Notes,
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForLibrary(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForLibrary(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "book already in library":
		return "BOOK_DUPLICATE_CONTENT"
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case message == "download unavailable":
		return "BOOK_FILE_UNAVAILABLE"
	case message == "title required":
		return "BOOK_TITLE_REQUIRED"
	case strings.Contains(message, "file is required"):
		return "BOOK_FILE_REQUIRED"
	case message == "invalid book id", message == "invalid year", message == "invalid json body", message == "invalid form data":
		return "BOOK_INVALID_REQUEST"
	case strings.Contains(message, "query is required"):
		return "LOOKUP_QUERY_REQUIRED"
	case strings.Contains(message, "rate limited"):
		return "LOOKUP_RATE_LIMITED"
	case strings.Contains(message, "timed out"):
		return "LOOKUP_TIMEOUT"
	case message == "external search failed":
		return "LOOKUP_FAILED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "BOOK_INVALID_REQUEST"
	case http.StatusNotFound:
		return "BOOK_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
