package search

import (
	"context"
	"errors"
)

// Document is one retrieved source. Ephemeral: it exists for the duration of
// a single research invocation, only its digest survives in the stage output.
type Document struct {
	Title            string  `json:"title"`
	Content          string  `json:"content"`
	URL              string  `json:"url"`
	Provider         string  `json:"provider"`
	CredibilityScore float64 `json:"credibility_score"`
	PublishedDate    string  `json:"published_date,omitempty"`
	RawContent       string  `json:"raw_content,omitempty"`
}

// Searcher is the retrieval boundary. Partial results (fewer than k) are a
// success, not a failure.
type Searcher interface {
	Discover(ctx context.Context, q string, k int, include, exclude []string) ([]Document, error)
}

type Provider string

const (
	TavilyProvider    Provider = "tavily"
	FirecrawlProvider Provider = "firecrawl"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")
