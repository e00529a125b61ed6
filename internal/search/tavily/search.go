package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/contentforge/contentforge/internal/search"
)

const defaultEndpoint = "https://api.tavily.com/search"

// Search queries the Tavily AI search API. It is the primary, AI-ranked
// retrieval provider: results carry relevance scores used as credibility.
type Search struct {
	APIKey      string
	SearchDepth string // basic or advanced
	Endpoint    string
	HTTPClient  *http.Client
}

type searchRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title         string  `json:"title"`
		Content       string  `json:"content"`
		URL           string  `json:"url"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
		RawContent    string  `json:"raw_content"`
	} `json:"results"`
}

// Discover implements search.Searcher. The synthesized Tavily answer, when
// present, is prepended as a high-credibility source so it leads the ranking.
func (s Search) Discover(ctx context.Context, q string, k int, include, exclude []string) ([]search.Document, error) {
	depth := s.SearchDepth
	if depth == "" {
		depth = "advanced"
	}
	payload := searchRequest{
		APIKey:            s.APIKey,
		Query:             q,
		SearchDepth:       depth,
		MaxResults:        k,
		IncludeAnswer:     true,
		IncludeRawContent: true,
		IncludeDomains:    include,
		ExcludeDomains:    exclude,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status: %d", resp.StatusCode)
	}

	var raw searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var out []search.Document
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		score := r.Score
		if score == 0 {
			score = 0.8
		}
		out = append(out, search.Document{
			Title:            r.Title,
			Content:          r.Content,
			URL:              r.URL,
			Provider:         "Tavily Search",
			CredibilityScore: score,
			PublishedDate:    r.PublishedDate,
			RawContent:       r.RawContent,
		})
	}

	if raw.Answer != "" {
		answer := search.Document{
			Title:            "AI Summary: " + q,
			Content:          raw.Answer,
			Provider:         "Tavily AI Answer",
			CredibilityScore: 0.9,
			PublishedDate:    time.Now().Format(time.RFC3339),
		}
		out = append([]search.Document{answer}, out...)
	}

	return out, nil
}
