package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdflibrary/internal/app"
	"pdflibrary/internal/googlebooks"
	"pdflibrary/pkg/domain"
	"pdflibrary/pkg/storage"
	"pdflibrary/pkg/store"
)

func newTestServer(t *testing.T, lookupURL string) http.Handler {
	t.Helper()
	var lookup *googlebooks.Client
	if lookupURL != "" {
		lookup = googlebooks.NewClient(lookupURL, time.Second)
	}
	a, err := app.New(app.Config{
		Store:  store.NewMemoryStore(),
		Blobs:  storage.NewDiskStore(t.TempDir()),
		Lookup: lookup,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return New(Config{App: a}).Router()
}

// testPDF builds a minimal PDF with the given page count and Info metadata.
func testPDF(pageCount int, title, author string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	var offsets []int
	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}
	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [] /Count %d >>\nendobj\n", pageCount))
	addObj(fmt.Sprintf("3 0 obj\n<< /Title (%s) /Author (%s) >>\nendobj\n", title, author))
	xrefOffset := buf.Len()
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\n", len(offsets)+1)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/books", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doUpload(t *testing.T, h http.Handler, fields map[string]string, filename string, content []byte) domain.Book {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, fields, filename, content))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var book domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &book); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return book
}

func errorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Code
}

func TestUploadAndGetBook(t *testing.T) {
	h := newTestServer(t, "")
	book := doUpload(t, h, map[string]string{"category": "Técnico", "year": "2017"}, "foo.pdf", testPDF(10, "Foo", "Jane Reader"))
	if book.Title != "Foo" || book.PageCount != 10 || book.Year != 2017 {
		t.Fatalf("uploaded book = %+v", book)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/books/%d", book.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != book.ID || got.ContentHash != book.ContentHash {
		t.Fatalf("got %+v, want %+v", got, book)
	}
}

func TestUploadDuplicateContentConflict(t *testing.T) {
	h := newTestServer(t, "")
	data := testPDF(3, "Dup", "")
	doUpload(t, h, nil, "a.pdf", data)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, nil, "b.pdf", data))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate upload status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body); code != "BOOK_DUPLICATE_CONTENT" {
		t.Fatalf("error code = %q", code)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	h := newTestServer(t, "")
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("title", "No File")
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/books", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body); code != "BOOK_FILE_REQUIRED" {
		t.Fatalf("error code = %q", code)
	}
}

func TestSearchBooksFilterAndOrder(t *testing.T) {
	h := newTestServer(t, "")
	doUpload(t, h, map[string]string{"category": "Romance"}, "one.pdf", testPDF(1, "Dom Casmurro", "Machado de Assis"))
	doUpload(t, h, map[string]string{"category": "Técnico"}, "two.pdf", testPDF(2, "Clean Architecture", "Robert C. Martin"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books?q=&category=Todas", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []domain.Book `json:"items"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Items) != 2 {
		t.Fatalf("count = %d", resp.Count)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books?q=machado&category=Romance", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Items[0].Title != "Dom Casmurro" {
		t.Fatalf("filtered result = %+v", resp)
	}
}

func TestUpdateBook(t *testing.T) {
	h := newTestServer(t, "")
	book := doUpload(t, h, nil, "upd.pdf", testPDF(4, "Before", "A"))

	payload := `{"title":"After","author":"B","year":2020,"category":"Ficção","language":"Português","notes":"updated"}`
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/books/%d", book.ID), strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/books/%d", book.ID), nil))
	var got domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "After" || got.Notes != "updated" {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.ContentHash != book.ContentHash || got.PageCount != book.PageCount || got.SizeKB != book.SizeKB {
		t.Fatalf("immutable fields changed: %+v", got)
	}
}

func TestUpdateBookEmptyTitle(t *testing.T) {
	h := newTestServer(t, "")
	book := doUpload(t, h, nil, "t.pdf", testPDF(1, "T", ""))

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/books/%d", book.ID), strings.NewReader(`{"title":""}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body); code != "BOOK_TITLE_REQUIRED" {
		t.Fatalf("error code = %q", code)
	}
}

func TestDeleteBookThenDownloadNotFound(t *testing.T) {
	h := newTestServer(t, "")
	book := doUpload(t, h, nil, "del.pdf", testPDF(2, "Del", ""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/books/%d", book.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/books/%d", book.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/books/%d/download", book.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("download after delete status = %d", rec.Code)
	}
}

func TestDownloadBook(t *testing.T) {
	h := newTestServer(t, "")
	data := testPDF(5, "Down", "")
	book := doUpload(t, h, nil, "original name.pdf", data)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/books/%d/download", book.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "original name.pdf") {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Fatal("downloaded content differs")
	}
}

func TestCategoriesAndStats(t *testing.T) {
	h := newTestServer(t, "")
	doUpload(t, h, map[string]string{"category": "Romance", "year": "1899"}, "a.pdf", testPDF(5, "A", "X"))
	doUpload(t, h, map[string]string{"category": "Técnico", "year": "2017"}, "b.pdf", testPDF(7, "B", "Y"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))
	var cats struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats.Items) != 2 || cats.Items[0] != "Romance" {
		t.Fatalf("categories = %v", cats.Items)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats struct {
		TotalBooks int64 `json:"totalBooks"`
		TotalPages int64 `json:"totalPages"`
		ByCategory []domain.CategoryCount `json:"byCategory"`
		ByYear     []domain.YearCount     `json:"byYear"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalBooks != 2 || stats.TotalPages != 12 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stats.ByCategory) != 2 || len(stats.ByYear) != 2 {
		t.Fatalf("group counts = %+v", stats)
	}
}

func TestLookupRateLimited(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	h := newTestServer(t, upstream.URL)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lookup?q=harry+potter", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body); code != "LOOKUP_RATE_LIMITED" {
		t.Fatalf("error code = %q", code)
	}
}

func TestLookupSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"volumeInfo":{"title":"Harry Potter","authors":["J.K. Rowling"],"pageCount":320}}]}`))
	}))
	defer upstream.Close()

	h := newTestServer(t, upstream.URL)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lookup?q=harry&maxResults=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []googlebooks.Volume `json:"items"`
		Count int                  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Items[0].Title != "Harry Potter" {
		t.Fatalf("lookup response = %+v", resp)
	}
}

func TestLookupUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := newTestServer(t, upstream.URL)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lookup?q=x", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body); code != "LOOKUP_FAILED" {
		t.Fatalf("error code = %q", code)
	}
}

func TestLookupMissingQuery(t *testing.T) {
	h := newTestServer(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lookup", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestInvalidBookID(t *testing.T) {
	h := newTestServer(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books/not-a-number", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body); code != "BOOK_INVALID_REQUEST" {
		t.Fatalf("error code = %q", code)
	}
}

func TestRequestIDOnResponses(t *testing.T) {
	h := newTestServer(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected generated request id header")
	}
}
