package pipeline

import (
	"context"
	"time"
)

// ContentType enumerates the kinds of content the pipeline can produce.
type ContentType string

const (
	ContentTypeBlogPost           ContentType = "blog_post"
	ContentTypeArticle            ContentType = "article"
	ContentTypeProductDescription ContentType = "product_description"
	ContentTypeSocialMedia        ContentType = "social_media"
	ContentTypeEmail              ContentType = "email"
)

// Valid reports whether the content type is one of the supported values.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTypeBlogPost, ContentTypeArticle, ContentTypeProductDescription,
		ContentTypeSocialMedia, ContentTypeEmail:
		return true
	}
	return false
}

// ContentStatus tracks the lifecycle of a content request.
type ContentStatus string

const (
	StatusPending    ContentStatus = "pending"
	StatusProcessing ContentStatus = "processing"
	StatusCompleted  ContentStatus = "completed"
	StatusFailed     ContentStatus = "failed"
)

// ContentRequest is a caller-created request for a piece of content.
// Immutable once the pipeline starts, except for Status.
type ContentRequest struct {
	ID                string                 `json:"id"`
	UserID            string                 `json:"user_id"`
	Topic             string                 `json:"topic"`
	ContentType       ContentType            `json:"content_type"`
	TargetAudience    string                 `json:"target_audience,omitempty"`
	StyleRequirements map[string]interface{} `json:"style_requirements,omitempty"`
	Keywords          []string               `json:"keywords,omitempty"`
	WordCount         int                    `json:"word_count,omitempty"`
	Status            ContentStatus          `json:"status"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// SourceRef is the lightweight digest of a retrieved document that survives
// in ResearchData after the stage completes.
type SourceRef struct {
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	Provider         string  `json:"provider"`
	CredibilityScore float64 `json:"credibility_score"`
	PublishedDate    string  `json:"published_date,omitempty"`
}

// Statistic is a numeric claim extracted during synthesis.
type Statistic struct {
	Statistic   string `json:"statistic"`
	Value       string `json:"value"`
	Source      string `json:"source"`
	Reliability string `json:"reliability"`
}

// ExpertOpinion is an attributed viewpoint extracted during synthesis.
type ExpertOpinion struct {
	Opinion string `json:"opinion"`
	Expert  string `json:"expert"`
	Source  string `json:"source"`
}

// ResearchData is the Research Stage's output. Consumed read-only by the
// Writing Stage and Scoring Engine.
type ResearchData struct {
	KeyFindings           []string        `json:"key_findings"`
	MainArguments         []string        `json:"main_arguments"`
	Sources               []SourceRef     `json:"sources"`
	Statistics            []Statistic     `json:"statistics"`
	ExpertOpinions        []ExpertOpinion `json:"expert_opinions"`
	RecentDevelopments    []string        `json:"recent_developments,omitempty"`
	PracticalApplications []string        `json:"practical_applications,omitempty"`
	ChallengesLimitations []string        `json:"challenges_limitations,omitempty"`
	ConfidenceScore       float64         `json:"confidence_score"`
}

// Outline is the intermediate document plan inside the Writing Stage.
type Outline struct {
	Title        string           `json:"title"`
	Introduction OutlineIntro     `json:"introduction"`
	MainSections []OutlineSection `json:"main_sections"`
	Conclusion   OutlineOutro     `json:"conclusion"`
}

type OutlineIntro struct {
	Hook     string `json:"hook"`
	Overview string `json:"overview"`
}

type OutlineSection struct {
	Title       string   `json:"title"`
	Subsections []string `json:"subsections"`
	KeyPoints   []string `json:"key_points"`
}

type OutlineOutro struct {
	Summary      string `json:"summary"`
	CallToAction string `json:"call_to_action"`
}

// ContentMetadata carries derived document metadata.
type ContentMetadata struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords"`
	Language        string   `json:"language"`
	ContentType     string   `json:"content_type"`
}

// WritingOutput is the Writing Stage's output. WordCount is always recomputed
// from the assembled content, never trusted from a model response.
type WritingOutput struct {
	Title                string          `json:"title"`
	Content              string          `json:"content"`
	Outline              Outline         `json:"outline"`
	WordCount            int             `json:"word_count"`
	EstimatedReadingTime int             `json:"estimated_reading_time"`
	Metadata             ContentMetadata `json:"metadata"`
}

// QualityMetrics are pure derived scores, recomputed every run.
type QualityMetrics struct {
	OverallQuality float64 `json:"overall_quality"`
	SEOScore       float64 `json:"seo_score"`
	FactCheckScore float64 `json:"fact_check_score"`
	ResearchDepth  float64 `json:"research_depth"`
}

// ResearchResult is the Research Stage boundary contract.
type ResearchResult struct {
	Status           string         `json:"status"`
	Message          string         `json:"message,omitempty"`
	ResearchData     ResearchData   `json:"research_data"`
	ConfidenceScore  float64        `json:"confidence_score"`
	SourcesFound     int            `json:"sources_found"`
	PerProviderCount map[string]int `json:"per_provider_counts,omitempty"`
}

// WritingResult is the Writing Stage boundary contract.
type WritingResult struct {
	Status        string        `json:"status"`
	Message       string        `json:"message,omitempty"`
	WritingOutput WritingOutput `json:"writing_output"`
}

// ResearchSummary is the capped research digest carried on the final result.
type ResearchSummary struct {
	KeyFindings []string `json:"key_findings"`
	SourceCount int      `json:"source_count"`
	Confidence  float64  `json:"confidence"`
}

// FinalContent is the consolidated pipeline output.
type FinalContent struct {
	Title           string                 `json:"title"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata"`
	QualityMetrics  QualityMetrics         `json:"quality_metrics"`
	ResearchSummary ResearchSummary        `json:"research_summary"`
}

// PipelineResult is what the orchestrator returns for one run.
type PipelineResult struct {
	Status        string        `json:"status"`
	RequestID     string        `json:"request_id"`
	ErrorType     string        `json:"error_type,omitempty"`
	Message       string        `json:"message,omitempty"`
	Content       *FinalContent `json:"content,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Err converts an error result into a typed StageFailure; nil for success.
func (r PipelineResult) Err() error {
	if r.Status != StatusError {
		return nil
	}
	return &StageFailure{Phase: r.ErrorType, Message: r.Message}
}

// TaskStatus is the orchestrator's per-request progress record.
type TaskStatus struct {
	RequestID    string        `json:"request_id"`
	Status       ContentStatus `json:"status"`
	Progress     int           `json:"progress"`
	CurrentStage string        `json:"current_stage,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	ElapsedTime  time.Duration `json:"elapsed_time"`
}

// Researcher is the Research Stage contract.
type Researcher interface {
	Research(ctx context.Context, input ResearchInput) ResearchResult
}

// Writer is the Writing Stage contract.
type Writer interface {
	Write(ctx context.Context, input WritingInput) WritingResult
}

// ResearchInput carries everything the Research Stage needs for one invocation.
type ResearchInput struct {
	Topic          string
	MaxResults     int
	IncludeDomains []string
	ExcludeDomains []string
	SearchDepth    string
}

// WritingInput carries everything the Writing Stage needs for one invocation.
type WritingInput struct {
	Topic             string
	ResearchData      ResearchData
	ContentType       ContentType
	TargetAudience    string
	StyleRequirements map[string]interface{}
	TargetWordCount   int
}

const (
	// StatusSuccess and StatusError are the stage boundary status strings.
	StatusSuccess = "success"
	StatusError   = "error"
)

// clamp01 caps a score into [0,1]. Downstream consumers treat these values
// as percentages, so overflow must never escape a stage.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
