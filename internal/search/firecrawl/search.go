package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/contentforge/contentforge/internal/search"
)

const defaultEndpoint = "https://api.firecrawl.dev/v0"

// Scraped content gets a flat default credibility; Firecrawl does not rank.
const scrapedCredibility = 0.7

// contentLimit bounds the body kept per scraped result.
const contentLimit = 1000

// Search queries the Firecrawl search/scrape API, the secondary provider.
type Search struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

type searchRequest struct {
	Query         string        `json:"query"`
	Limit         int           `json:"limit"`
	SearchOptions searchOptions `json:"searchOptions"`
}

type searchOptions struct {
	Limit int `json:"limit"`
}

type searchResponse struct {
	Data []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"data"`
}

// Discover implements search.Searcher. Domain filters are accepted for
// interface compatibility but Firecrawl's search endpoint does not apply them.
func (s Search) Discover(ctx context.Context, q string, k int, include, exclude []string) ([]search.Document, error) {
	payload := searchRequest{Query: q, Limit: k, SearchOptions: searchOptions{Limit: k}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firecrawl search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("firecrawl returned status: %d", resp.StatusCode)
	}

	var raw searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var out []search.Document
	for i, item := range raw.Data {
		if i >= k {
			break
		}
		content := item.Content
		if len(content) > contentLimit {
			content = content[:contentLimit]
		}
		out = append(out, search.Document{
			Title:            item.Title,
			Content:          content,
			URL:              item.URL,
			Provider:         "Firecrawl Scraper",
			CredibilityScore: scrapedCredibility,
		})
	}
	return out, nil
}
