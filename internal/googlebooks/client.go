// Package googlebooks is a thin read-through client for the Google Books
// volume search API. No caching, no retries.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Google Books API root.
const DefaultBaseURL = "https://www.googleapis.com/books/v1"

// DefaultTimeout bounds a single lookup request.
const DefaultTimeout = 10 * time.Second

// ErrRateLimited is returned when the API answers 403, which on the keyless
// quota means the request limit was hit.
var ErrRateLimited = errors.New("google books: rate limited")

// Volume is one search result, flattened from the API's volumeInfo object.
// Every field is optional on the wire.
type Volume struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Language      string   `json:"language,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Description   string   `json:"description,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
}

// Client calls the Google Books API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. An empty baseURL selects the public API; a
// non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type volumesResponse struct {
	Items []volumeItem `json:"items"`
}

type volumeItem struct {
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"publishedDate"`
	Categories    []string `json:"categories"`
	Language      string   `json:"language"`
	PageCount     int      `json:"pageCount"`
	Description   string   `json:"description"`
	ImageLinks    struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

// Search queries volumes matching query, capped at maxResults.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Volume, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	endpoint := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d",
		c.baseURL, url.QueryEscape(query), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google books request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("google books: unexpected status %d", resp.StatusCode)
	}

	var payload volumesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	volumes := make([]Volume, 0, len(payload.Items))
	for _, item := range payload.Items {
		v := item.VolumeInfo
		volumes = append(volumes, Volume{
			Title:         v.Title,
			Authors:       v.Authors,
			PublishedDate: v.PublishedDate,
			Categories:    v.Categories,
			Language:      v.Language,
			PageCount:     v.PageCount,
			Description:   v.Description,
			Thumbnail:     v.ImageLinks.Thumbnail,
		})
	}
	return volumes, nil
}

// IsTimeout reports whether a Search failure was caused by the request
// timing out, so callers can message it apart from other failures.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
