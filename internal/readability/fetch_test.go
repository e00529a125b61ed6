package readability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Test Page</title></head>
<body>
<article>
<h1>Solar Power Basics</h1>
<p>Solar panels convert sunlight into electricity using photovoltaic cells.
They have become dramatically cheaper over the past decade and now power
millions of homes around the world.</p>
<p>Installation costs continue to fall while panel efficiency improves,
making solar one of the fastest growing energy sources.</p>
</article>
</body></html>`

func TestExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	var f Fetcher
	text, err := f.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "photovoltaic") {
		t.Fatalf("extracted text missing body content: %q", text)
	}
}

func TestExtractTruncates(t *testing.T) {
	body := "<html><body><article><p>" + strings.Repeat("word ", 2000) + "</p></article></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := Fetcher{MaxChars: 100}
	text, err := f.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(text) > 100 {
		t.Fatalf("text length = %d, want <= 100", len(text))
	}
}

func TestExtractErrors(t *testing.T) {
	var f Fetcher
	if _, err := f.Extract(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty url")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	if _, err := f.Extract(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for 404")
	}
}
