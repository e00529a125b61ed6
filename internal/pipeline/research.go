package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/contentforge/contentforge/config"
	"github.com/contentforge/contentforge/internal/provider"
	"github.com/contentforge/contentforge/internal/readability"
	"github.com/contentforge/contentforge/internal/search"
	"github.com/contentforge/contentforge/internal/telemetry"
)

// Confidence weights. Together with the recency and developments bonuses they
// sum to at most 1.0 before the final cap.
const (
	weightSourceCount     = 0.25
	weightFindings        = 0.25
	weightSourceDiversity = 0.20
	weightAvgCredibility  = 0.30
	bonusRecentContent    = 0.10
	bonusDevelopments     = 0.05

	// noSourceConfidence applies whenever research yields zero sources,
	// independent of the weighted formula.
	noSourceConfidence = 0.10

	// fallbackConfidence applies when synthesis output cannot be parsed and
	// the stage degrades to the raw source list.
	fallbackConfidence = 0.70

	// sourceDigestLimit bounds the body text embedded per source in the
	// synthesis prompt.
	sourceDigestLimit = 600

	// thinContentThreshold is the body length below which a source is worth
	// re-fetching through the readability enricher.
	thinContentThreshold = 100
)

// ResearchStage turns a topic into a ranked collection of source documents
// plus an AI-synthesized structured summary and a confidence score.
type ResearchStage struct {
	cfg       *config.Config
	logger    *log.Logger
	llm       provider.Provider
	primary   search.Searcher // AI-ranked search, results lead the merge order
	secondary search.Searcher // optional scraper; nil disables it
	cache     *search.Cache
	enricher  *readability.Fetcher
	telemetry *telemetry.Telemetry
}

// NewResearchStage builds the research stage. secondary, cache, enricher and
// tele may be nil.
func NewResearchStage(cfg *config.Config, llm provider.Provider, primary, secondary search.Searcher, cache *search.Cache, enricher *readability.Fetcher, tele *telemetry.Telemetry) *ResearchStage {
	return &ResearchStage{
		cfg:       cfg,
		logger:    log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
		llm:       llm,
		primary:   primary,
		secondary: secondary,
		cache:     cache,
		enricher:  enricher,
		telemetry: tele,
	}
}

// synthesisSchema is the structured shape requested from the model.
type synthesisSchema struct {
	KeyFindings           []string        `json:"key_findings"`
	MainArguments         []string        `json:"main_arguments"`
	Statistics            []Statistic     `json:"statistics"`
	ExpertOpinions        []ExpertOpinion `json:"expert_opinions"`
	RecentDevelopments    []string        `json:"recent_developments"`
	PracticalApplications []string        `json:"practical_applications"`
	ChallengesLimitations []string        `json:"challenges_limitations"`
}

// Research executes one research invocation. Provider failures are contained
// locally: a failed provider contributes zero sources, and only the total
// absence of sources across all providers degrades the result.
func (s *ResearchStage) Research(ctx context.Context, input ResearchInput) ResearchResult {
	started := time.Now()
	defer func() {
		if s.telemetry != nil {
			s.telemetry.RecordStageEvent(telemetry.StageEvent{Stage: "research", Duration: time.Since(started), Success: true})
		}
	}()

	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return ResearchResult{Status: StatusError, Message: "topic is required"}
	}

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.Search.Tavily.MaxResults
	}

	s.logger.Printf("starting research for %q", topic)

	perProvider := make(map[string]int)
	var merged []search.Document

	if s.primary != nil {
		docs := s.discover(ctx, string(search.TavilyProvider), s.primary, topic, maxResults, input.IncludeDomains, input.ExcludeDomains)
		perProvider[string(search.TavilyProvider)] = len(docs)
		merged = append(merged, docs...)
	}
	if s.secondary != nil {
		docs := s.discover(ctx, string(search.FirecrawlProvider), s.secondary, topic, maxResults/2, nil, nil)
		perProvider[string(search.FirecrawlProvider)] = len(docs)
		merged = append(merged, docs...)
	}

	if len(merged) == 0 {
		s.logger.Printf("no sources found for %q", topic)
		return ResearchResult{
			Status: StatusSuccess,
			ResearchData: ResearchData{
				KeyFindings:     []string{},
				ConfidenceScore: noSourceConfidence,
			},
			ConfidenceScore:  noSourceConfidence,
			SourcesFound:     0,
			PerProviderCount: perProvider,
		}
	}

	// Synthesis sees only a bounded prefix; the reported source count does not.
	retained := merged
	if limit := s.cfg.Pipeline.MaxSummarySources; len(retained) > limit {
		retained = retained[:limit]
	}
	s.enrich(ctx, retained)

	data, degraded := s.structureFindings(ctx, topic, retained, merged)
	confidence := data.ConfidenceScore
	if !degraded {
		confidence = researchConfidence(data)
		data.ConfidenceScore = confidence
	}

	s.logger.Printf("research completed: %d sources, confidence %.2f", len(merged), confidence)

	return ResearchResult{
		Status:           StatusSuccess,
		ResearchData:     data,
		ConfidenceScore:  confidence,
		SourcesFound:     len(merged),
		PerProviderCount: perProvider,
	}
}

// discover queries one provider, consulting the cache first. Failures are
// contained: the provider simply contributes no documents.
func (s *ResearchStage) discover(ctx context.Context, name string, searcher search.Searcher, topic string, k int, include, exclude []string) []search.Document {
	if k <= 0 {
		return nil
	}
	if docs, ok := s.cache.Get(ctx, name, topic); ok {
		s.logger.Printf("%s cache hit for %q (%d docs)", name, topic, len(docs))
		return docs
	}

	docs, err := searcher.Discover(ctx, topic, k, include, exclude)
	if s.telemetry != nil {
		s.telemetry.RecordProviderCall(name, err)
	}
	if err != nil {
		s.logger.Printf("%s search failed for %q: %v", name, topic, err)
		return nil
	}
	s.cache.Set(ctx, name, topic, docs)
	return docs
}

// enrich re-fetches thin sources through the readability extractor so the
// synthesis prompt sees real body text instead of a snippet.
func (s *ResearchStage) enrich(ctx context.Context, docs []search.Document) {
	if s.enricher == nil {
		return
	}
	for i := range docs {
		if docs[i].URL == "" || len(docs[i].Content) >= thinContentThreshold {
			continue
		}
		text, err := s.enricher.Extract(ctx, docs[i].URL)
		if err != nil || text == "" {
			continue
		}
		docs[i].RawContent = text
		if len(text) > sourceDigestLimit {
			text = text[:sourceDigestLimit]
		}
		docs[i].Content = text
	}
}

// structureFindings runs the synthesis call and parses its structured output.
// Both synthesis failure and parse failure degrade to a minimal ResearchData
// carrying the raw source list and a fixed conservative confidence; neither
// fails the stage.
func (s *ResearchStage) structureFindings(ctx context.Context, topic string, retained, all []search.Document) (ResearchData, bool) {
	prompt := buildSynthesisPrompt(topic, retained)

	var response string
	err := withRetry(ctx, RetryConfig{MaxAttempts: s.cfg.LLM.MaxRetries, BaseDelay: time.Second}, func() error {
		var callErr error
		response, callErr = s.llm.Synthesize(ctx, prompt, s.cfg.LLM.MaxTokens)
		return callErr
	})
	if s.telemetry != nil {
		s.telemetry.RecordProviderCall("llm", err)
	}
	if err != nil {
		s.logger.Printf("synthesis failed for %q: %v", topic,
			fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err))
		return fallbackResearchData(topic, all), true
	}

	var structured synthesisSchema
	if perr := parseModelJSON(response, &structured); perr != nil {
		s.logger.Printf("structuring findings failed for %q: %v", topic, perr)
		return fallbackResearchData(topic, all), true
	}

	return ResearchData{
		KeyFindings:           structured.KeyFindings,
		MainArguments:         structured.MainArguments,
		Sources:               sourceRefs(all),
		Statistics:            structured.Statistics,
		ExpertOpinions:        structured.ExpertOpinions,
		RecentDevelopments:    structured.RecentDevelopments,
		PracticalApplications: structured.PracticalApplications,
		ChallengesLimitations: structured.ChallengesLimitations,
	}, false
}

func buildSynthesisPrompt(topic string, sources []search.Document) string {
	var summaries []string
	for i, src := range sources {
		content := src.Content
		if len(content) > sourceDigestLimit {
			content = content[:sourceDigestLimit]
		}
		published := src.PublishedDate
		if published == "" {
			published = "Unknown"
		}
		summaries = append(summaries, fmt.Sprintf(
			"Source %d: %s (Credibility: %.2f)\nTitle: %s\nURL: %s\nContent: %s\nPublished: %s",
			i+1, src.Provider, src.CredibilityScore, src.Title, src.URL, content, published))
	}

	return fmt.Sprintf(`Analyze the following research about "%s" and provide detailed structured analysis.

Research Sources:
%s

Provide analysis in this JSON format:
{
  "key_findings": ["finding 1", "finding 2", "finding 3", "finding 4", "finding 5"],
  "main_arguments": ["argument 1", "argument 2", "argument 3"],
  "statistics": [
    {"statistic": "description", "value": "number/percentage", "source": "source name", "reliability": "high/medium/low"}
  ],
  "expert_opinions": [
    {"opinion": "expert view", "expert": "expert name or source", "source": "publication/platform"}
  ],
  "recent_developments": ["development 1", "development 2"],
  "practical_applications": ["application 1", "application 2"],
  "challenges_limitations": ["challenge 1", "challenge 2"]
}

Focus on factual accuracy, source credibility, current information, diverse
perspectives, and a clear distinction between facts and opinions.
Return only valid JSON.`, topic, strings.Join(summaries, "\n\n"))
}

// fallbackResearchData is the degraded result when synthesis output is
// unusable: one generic finding plus the raw source list.
func fallbackResearchData(topic string, sources []search.Document) ResearchData {
	return ResearchData{
		KeyFindings:     []string{fmt.Sprintf("Comprehensive research conducted on %s", topic)},
		Sources:         sourceRefs(sources),
		ConfidenceScore: fallbackConfidence,
	}
}

func sourceRefs(docs []search.Document) []SourceRef {
	refs := make([]SourceRef, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, SourceRef{
			Title:            d.Title,
			URL:              d.URL,
			Provider:         d.Provider,
			CredibilityScore: d.CredibilityScore,
			PublishedDate:    d.PublishedDate,
		})
	}
	return refs
}

// researchConfidence blends source quantity, findings quantity, provider
// diversity and average credibility, with bonuses for dated sources and
// reported recent developments. Zero sources always pins the score to the
// conservative floor.
func researchConfidence(data ResearchData) float64 {
	if len(data.Sources) == 0 {
		return noSourceConfidence
	}

	sourceScore := clamp01(float64(len(data.Sources)) / 8.0)
	findingsScore := clamp01(float64(len(data.KeyFindings)) / 6.0)

	providers := make(map[string]struct{})
	hasDated := false
	credTotal := 0.0
	for _, src := range data.Sources {
		providers[src.Provider] = struct{}{}
		credTotal += src.CredibilityScore
		if src.PublishedDate != "" {
			hasDated = true
		}
	}
	diversity := clamp01(float64(len(providers)) / 4.0)
	avgCredibility := credTotal / float64(len(data.Sources))

	confidence := weightSourceCount*sourceScore +
		weightFindings*findingsScore +
		weightSourceDiversity*diversity +
		weightAvgCredibility*avgCredibility
	if hasDated {
		confidence += bonusRecentContent
	}
	if len(data.RecentDevelopments) > 0 {
		confidence += bonusDevelopments
	}
	return clamp01(confidence)
}

// parseModelJSON strips optional markdown code fences and unmarshals the
// remainder. This is the single most safety-critical translation point in
// the pipeline; every call site has a specified fallback value.
func parseModelJSON(response string, v interface{}) error {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return &ParseError{Phase: "model response", Err: err}
	}
	return nil
}
