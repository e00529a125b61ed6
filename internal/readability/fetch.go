package readability

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// Fetcher retrieves a page over plain HTTP and extracts its readable text.
// Used to enrich retrieved sources whose snippet is too thin to summarize.
type Fetcher struct {
	Timeout    time.Duration
	MaxChars   int
	HTTPClient *http.Client
}

// Extract fetches rawURL and returns the readable article text.
func (f Fetcher) Extract(ctx context.Context, rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errors.New("invalid url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := f.MaxChars
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("fetch returned non-200 status")
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}
