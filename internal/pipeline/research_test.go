package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/contentforge/contentforge/internal/search"
)

type fakeSearcher struct {
	docs  []search.Document
	err   error
	calls int
	lastK int
}

func (f *fakeSearcher) Discover(ctx context.Context, q string, k int, include, exclude []string) ([]search.Document, error) {
	f.calls++
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > k {
		return f.docs[:k], nil
	}
	return f.docs, nil
}

func tavilyDocs(n int) []search.Document {
	docs := make([]search.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, search.Document{
			Title:            "Doc",
			URL:              "https://example.com/doc",
			Content:          strings.Repeat("body text ", 20),
			Provider:         "Tavily Search",
			CredibilityScore: 0.8,
		})
	}
	return docs
}

const validSynthesisJSON = `{
  "key_findings": ["f1", "f2", "f3", "f4", "f5"],
  "main_arguments": ["a1", "a2"],
  "statistics": [{"statistic": "growth", "value": "40%", "source": "Doc", "reliability": "high"}],
  "expert_opinions": [{"opinion": "promising", "expert": "Dr. X", "source": "Doc"}],
  "recent_developments": ["d1", "d2"],
  "practical_applications": ["p1"],
  "challenges_limitations": ["c1"]
}`

func TestResearchEmptyTopic(t *testing.T) {
	llm := &fakeLLM{}
	primary := &fakeSearcher{}
	stage := NewResearchStage(testConfig(), llm, primary, nil, nil, nil, nil)
	result := stage.Research(context.Background(), ResearchInput{Topic: "  "})
	if result.Status != StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if primary.calls != 0 || llm.calls != 0 {
		t.Fatalf("external calls made for empty topic: search=%d llm=%d", primary.calls, llm.calls)
	}
}

func TestResearchNoSources(t *testing.T) {
	llm := &fakeLLM{response: validSynthesisJSON}
	primary := &fakeSearcher{err: errors.New("timeout")}
	stage := NewResearchStage(testConfig(), llm, primary, nil, nil, nil, nil)

	result := stage.Research(context.Background(), ResearchInput{Topic: "Solar Power"})
	if result.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", result.Status, result.Message)
	}
	if result.ConfidenceScore != 0.1 {
		t.Fatalf("confidence = %v, want 0.1", result.ConfidenceScore)
	}
	if result.SourcesFound != 0 {
		t.Fatalf("sources found = %d", result.SourcesFound)
	}
	if result.ResearchData.KeyFindings == nil || len(result.ResearchData.KeyFindings) != 0 {
		t.Fatalf("key findings = %#v, want empty list", result.ResearchData.KeyFindings)
	}
	if llm.calls != 0 {
		t.Fatalf("synthesis called %d times with no sources", llm.calls)
	}
}

func TestResearchParseFallback(t *testing.T) {
	llm := &fakeLLM{response: "I could not produce JSON, sorry."}
	primary := &fakeSearcher{docs: tavilyDocs(3)}
	stage := NewResearchStage(testConfig(), llm, primary, nil, nil, nil, nil)

	result := stage.Research(context.Background(), ResearchInput{Topic: "Solar Power"})
	if result.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", result.Status, result.Message)
	}
	findings := result.ResearchData.KeyFindings
	if len(findings) != 1 || findings[0] != "Comprehensive research conducted on Solar Power" {
		t.Fatalf("fallback findings = %v", findings)
	}
	if result.ConfidenceScore != 0.7 {
		t.Fatalf("confidence = %v, want fixed 0.7", result.ConfidenceScore)
	}
	if len(result.ResearchData.Sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(result.ResearchData.Sources))
	}
}

func TestResearchConfidenceFormula(t *testing.T) {
	docs := tavilyDocs(4)
	docs[0].PublishedDate = "2026-08-01"

	llm := &fakeLLM{response: validSynthesisJSON}
	primary := &fakeSearcher{docs: docs}
	stage := NewResearchStage(testConfig(), llm, primary, nil, nil, nil, nil)

	result := stage.Research(context.Background(), ResearchInput{Topic: "Solar Power", MaxResults: 10})
	if result.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", result.Status, result.Message)
	}

	// 4 sources, 5 findings, 1 provider, avg credibility 0.8,
	// dated source bonus and recent developments bonus both apply.
	want := 0.25*(4.0/8.0) + 0.25*(5.0/6.0) + 0.20*(1.0/4.0) + 0.30*0.8 + 0.10 + 0.05
	if !almostEqual(result.ConfidenceScore, want) {
		t.Fatalf("confidence = %v, want %v", result.ConfidenceScore, want)
	}
	if result.ResearchData.ConfidenceScore != result.ConfidenceScore {
		t.Fatalf("data confidence %v != result confidence %v",
			result.ResearchData.ConfidenceScore, result.ConfidenceScore)
	}
}

func TestResearchSecondaryProviderMerge(t *testing.T) {
	primary := &fakeSearcher{docs: tavilyDocs(2)}
	secondary := &fakeSearcher{docs: []search.Document{
		{Title: "Scraped", URL: "https://example.org/s", Content: "scraped body", Provider: "Firecrawl Scraper", CredibilityScore: 0.7},
	}}
	llm := &fakeLLM{response: validSynthesisJSON}
	stage := NewResearchStage(testConfig(), llm, primary, secondary, nil, nil, nil)

	result := stage.Research(context.Background(), ResearchInput{Topic: "Solar Power", MaxResults: 10})
	if result.SourcesFound != 3 {
		t.Fatalf("sources found = %d, want 3", result.SourcesFound)
	}
	if secondary.lastK != 5 {
		t.Fatalf("secondary asked for %d results, want half of max", secondary.lastK)
	}
	if result.PerProviderCount["tavily"] != 2 || result.PerProviderCount["firecrawl"] != 1 {
		t.Fatalf("per provider counts = %v", result.PerProviderCount)
	}
}

func TestResearchSynthesisSeesBoundedPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxSummarySources = 2

	llm := &fakeLLM{response: validSynthesisJSON}
	primary := &fakeSearcher{docs: tavilyDocs(5)}
	stage := NewResearchStage(cfg, llm, primary, nil, nil, nil, nil)

	result := stage.Research(context.Background(), ResearchInput{Topic: "Solar Power", MaxResults: 10})
	if result.SourcesFound != 5 {
		t.Fatalf("sources found = %d, want 5", result.SourcesFound)
	}
	if len(result.ResearchData.Sources) != 5 {
		t.Fatalf("source refs = %d, want all 5", len(result.ResearchData.Sources))
	}
	if n := strings.Count(llm.lastPrompt, "Source "); n != 2 {
		t.Fatalf("prompt embeds %d sources, want 2", n)
	}
}

func TestParseModelJSON(t *testing.T) {
	var v map[string]interface{}
	if err := parseModelJSON("```json\n{\"a\": 1}\n```", &v); err != nil {
		t.Fatalf("fenced json: %v", err)
	}
	if v["a"].(float64) != 1 {
		t.Fatalf("unexpected value: %v", v)
	}

	for _, malformed := range []string{
		"",
		"plain prose answer",
		"```json\n{\"unterminated\": \n```",
		"{\"a\": } trailing",
	} {
		err := parseModelJSON(malformed, &v)
		if err == nil {
			t.Fatalf("expected parse error for %q", malformed)
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected *ParseError, got %T", err)
		}
	}
}
