package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"libripal/internal/catalog/models"
)

const defaultOpenLibraryURL = "https://openlibrary.org"

// OpenLibrary queries the Open Library search API.
type OpenLibrary struct {
	baseURL string
	client  *http.Client
}

// OpenLibraryOption configures the client.
type OpenLibraryOption func(*OpenLibrary)

// WithOpenLibraryBaseURL overrides the API base URL.
func WithOpenLibraryBaseURL(baseURL string) OpenLibraryOption {
	return func(o *OpenLibrary) { o.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithOpenLibraryHTTPClient overrides the HTTP client.
func WithOpenLibraryHTTPClient(client *http.Client) OpenLibraryOption {
	return func(o *OpenLibrary) { o.client = client }
}

// NewOpenLibrary creates an Open Library client with a 10 second timeout.
func NewOpenLibrary(opts ...OpenLibraryOption) *OpenLibrary {
	o := &OpenLibrary{
		baseURL: defaultOpenLibraryURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements Source.
func (o *OpenLibrary) Name() models.Source { return models.SourceOpenLibrary }

type openLibraryResponse struct {
	Docs []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		CoverID          int      `json:"cover_i"`
	} `json:"docs"`
}

// Search implements Source.
func (o *OpenLibrary) Search(ctx context.Context, query string, limit int) ([]models.Item, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build open library request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open library request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open library returned status %d", resp.StatusCode)
	}

	var parsed openLibraryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode open library response: %w", err)
	}

	items := make([]models.Item, 0, len(parsed.Docs))
	for _, doc := range parsed.Docs {
		if doc.Title == "" {
			continue
		}

		author := models.ValueUnknown
		if len(doc.AuthorName) > 0 {
			author = strings.Join(doc.AuthorName, ", ")
		}

		year := models.ValueUnknown
		if doc.FirstPublishYear > 0 {
			year = strconv.Itoa(doc.FirstPublishYear)
		}

		coverURL := ""
		if doc.CoverID > 0 {
			coverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverID)
		}

		items = append(items, models.Item{
			ExternalID: strings.TrimPrefix(doc.Key, "/works/"),
			Title:      doc.Title,
			Author:     author,
			Source:     models.SourceOpenLibrary,
			CoverURL:   coverURL,
			Year:       year,
			// Open Library carries no price data.
			Price: models.ValueUnknown,
		})
		if len(items) == limit {
			break
		}
	}

	return items, nil
}
