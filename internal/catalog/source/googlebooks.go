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

const defaultGoogleBooksURL = "https://www.googleapis.com/books/v1"

// GoogleBooks queries the Google Books volumes API.
type GoogleBooks struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// GoogleBooksOption configures the client.
type GoogleBooksOption func(*GoogleBooks)

// WithGoogleBooksBaseURL overrides the API base URL. Tests point this at an
// httptest server.
func WithGoogleBooksBaseURL(baseURL string) GoogleBooksOption {
	return func(g *GoogleBooks) { g.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithGoogleBooksAPIKey attaches an API key to every request.
func WithGoogleBooksAPIKey(key string) GoogleBooksOption {
	return func(g *GoogleBooks) { g.apiKey = key }
}

// WithGoogleBooksHTTPClient overrides the HTTP client.
func WithGoogleBooksHTTPClient(client *http.Client) GoogleBooksOption {
	return func(g *GoogleBooks) { g.client = client }
}

// NewGoogleBooks creates a Google Books client with a 10 second timeout so a
// slow upstream cannot stall the aggregate search.
func NewGoogleBooks(opts ...GoogleBooksOption) *GoogleBooks {
	g := &GoogleBooks{
		baseURL: defaultGoogleBooksURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Source.
func (g *GoogleBooks) Name() models.Source { return models.SourceGoogleBooks }

type googleBooksResponse struct {
	Items []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			PublishedDate string   `json:"publishedDate"`
			ImageLinks    struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
		SaleInfo struct {
			ListPrice struct {
				Amount       float64 `json:"amount"`
				CurrencyCode string  `json:"currencyCode"`
			} `json:"listPrice"`
		} `json:"saleInfo"`
	} `json:"items"`
}

// Search implements Source.
func (g *GoogleBooks) Search(ctx context.Context, query string, limit int) ([]models.Item, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build google books request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google books request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books returned status %d", resp.StatusCode)
	}

	var parsed googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode google books response: %w", err)
	}

	items := make([]models.Item, 0, len(parsed.Items))
	for _, raw := range parsed.Items {
		if raw.VolumeInfo.Title == "" {
			continue
		}

		author := models.ValueUnknown
		if len(raw.VolumeInfo.Authors) > 0 {
			author = strings.Join(raw.VolumeInfo.Authors, ", ")
		}

		year := models.ValueUnknown
		if len(raw.VolumeInfo.PublishedDate) >= 4 {
			year = raw.VolumeInfo.PublishedDate[:4]
		}

		price := models.ValueUnknown
		if raw.SaleInfo.ListPrice.Amount > 0 {
			price = fmt.Sprintf("%.2f %s", raw.SaleInfo.ListPrice.Amount, raw.SaleInfo.ListPrice.CurrencyCode)
		}

		items = append(items, models.Item{
			ExternalID: raw.ID,
			Title:      raw.VolumeInfo.Title,
			Author:     author,
			Source:     models.SourceGoogleBooks,
			CoverURL:   raw.VolumeInfo.ImageLinks.Thumbnail,
			Year:       year,
			Price:      price,
		})
		if len(items) == limit {
			break
		}
	}

	return items, nil
}
