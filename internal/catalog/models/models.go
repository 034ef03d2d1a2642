// Package models defines the transient catalog item shape. Items are produced
// fresh per search and never persisted; circulation snapshots the fields it
// needs at issue time.
package models

// Source tags which external catalog produced an item.
type Source string

const (
	SourceGoogleBooks Source = "google_books"
	SourceOpenLibrary Source = "open_library"
)

// Item is one search result from an external catalog. Year and Price fall
// back to "unknown" when the upstream record omits them.
type Item struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Source     Source `json:"source"`
	CoverURL   string `json:"cover_url,omitempty"`
	Year       string `json:"year"`
	Price      string `json:"price"`
}

// ValueUnknown is the fallback for metadata the upstream record omits.
const ValueUnknown = "unknown"
