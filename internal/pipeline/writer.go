package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/contentforge/contentforge/config"
	"github.com/contentforge/contentforge/internal/provider"
	"github.com/contentforge/contentforge/internal/telemetry"
)

const (
	// readingWordsPerMinute is the assumed reading speed for the
	// estimated_reading_time derivation.
	readingWordsPerMinute = 225

	// metaDescriptionLimit is the truncation point for derived descriptions.
	metaDescriptionLimit = 150

	// keywordLimit caps derived keyword lists.
	keywordLimit = 8

	// sectionFailurePlaceholder replaces a section whose synthesis call
	// failed; a single bad section never fails the whole stage.
	sectionFailurePlaceholder = "Content generation failed for this section."

	sectionMaxTokens = 800
)

// styleTemplates holds the default tone per content type, applied when
// style requirements carry no explicit tone.
var styleTemplates = map[ContentType]string{
	ContentTypeBlogPost:           "conversational and engaging",
	ContentTypeArticle:            "informative and professional",
	ContentTypeProductDescription: "persuasive and benefit-focused",
	ContentTypeSocialMedia:        "concise and attention-grabbing",
	ContentTypeEmail:              "personal and action-oriented",
}

var stopWords = map[string]struct{}{
	"that": {}, "with": {}, "have": {}, "this": {}, "will": {}, "from": {},
	"they": {}, "been": {}, "about": {}, "would": {}, "there": {}, "could": {},
	"other": {}, "more": {}, "very": {}, "what": {}, "know": {}, "just": {},
	"first": {}, "into": {}, "over": {}, "think": {}, "also": {},
}

var (
	markdownChars = regexp.MustCompile("[#*`\\[\\]()]")
	wordPattern   = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)
)

// WritingStage turns a research summary into a titled, sectioned document of
// a target length plus derived metadata.
type WritingStage struct {
	cfg       *config.Config
	logger    *log.Logger
	llm       provider.Provider
	telemetry *telemetry.Telemetry
}

// NewWritingStage builds the writing stage. tele may be nil.
func NewWritingStage(cfg *config.Config, llm provider.Provider, tele *telemetry.Telemetry) *WritingStage {
	return &WritingStage{
		cfg:       cfg,
		logger:    log.New(log.Writer(), "[WRITER] ", log.LstdFlags),
		llm:       llm,
		telemetry: tele,
	}
}

// Write executes one writing invocation: outline, per-section generation,
// assembly, and metadata derivation.
func (s *WritingStage) Write(ctx context.Context, input WritingInput) WritingResult {
	started := time.Now()
	defer func() {
		if s.telemetry != nil {
			s.telemetry.RecordStageEvent(telemetry.StageEvent{Stage: "writer", Duration: time.Since(started), Success: true})
		}
	}()

	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return WritingResult{Status: StatusError, Message: "topic is required"}
	}

	targetWords := input.TargetWordCount
	if targetWords <= 0 {
		targetWords = s.cfg.Pipeline.DefaultWordCount
	}
	audience := input.TargetAudience
	if audience == "" {
		audience = "general audience"
	}
	tone := s.tone(input)

	outline := s.createOutline(ctx, topic, input.ResearchData, input.ContentType, audience)
	sections := s.generateSections(ctx, outline, input.ResearchData, tone, targetWords)
	content := assembleContent(outline, sections)
	metadata := deriveMetadata(content, topic, input.ContentType)

	wordCount := countWords(content)
	output := WritingOutput{
		Title:                outline.Title,
		Content:              content,
		Outline:              outline,
		WordCount:            wordCount,
		EstimatedReadingTime: ReadingTime(wordCount),
		Metadata:             metadata,
	}

	s.logger.Printf("writing completed for %q: %d words, %d sections", topic, wordCount, len(outline.MainSections))
	return WritingResult{Status: StatusSuccess, WritingOutput: output}
}

func (s *WritingStage) tone(input WritingInput) string {
	if v, ok := input.StyleRequirements["tone"]; ok {
		if t, ok := v.(string); ok && t != "" {
			return t
		}
	}
	if t, ok := styleTemplates[input.ContentType]; ok {
		return t
	}
	return "professional"
}

// createOutline asks the model for a document plan. Synthesis or parse
// failure degrades to a deterministic outline built from the first four key
// findings, with no model call.
func (s *WritingStage) createOutline(ctx context.Context, topic string, research ResearchData, contentType ContentType, audience string) Outline {
	prompt := buildOutlinePrompt(topic, research, contentType, audience)

	response, err := s.llm.Synthesize(ctx, prompt, s.cfg.LLM.MaxTokens)
	if s.telemetry != nil {
		s.telemetry.RecordProviderCall("llm", err)
	}
	if err != nil {
		s.logger.Printf("outline synthesis failed for %q: %v", topic,
			fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err))
		return fallbackOutline(topic, research.KeyFindings)
	}

	var outline Outline
	if perr := parseModelJSON(response, &outline); perr != nil {
		s.logger.Printf("outline parse failed for %q: %v", topic, perr)
		return fallbackOutline(topic, research.KeyFindings)
	}
	if outline.Title == "" {
		outline.Title = topic
	}
	return outline
}

func buildOutlinePrompt(topic string, research ResearchData, contentType ContentType, audience string) string {
	findings := research.KeyFindings
	if len(findings) > 5 {
		findings = findings[:5]
	}
	arguments := research.MainArguments
	if len(arguments) > 3 {
		arguments = arguments[:3]
	}

	var findingsText, argumentsText strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&findingsText, "- %s\n", f)
	}
	for _, a := range arguments {
		fmt.Fprintf(&argumentsText, "- %s\n", a)
	}

	return fmt.Sprintf(`Create a detailed outline for a %s about "%s" targeted at %s.

Key research findings:
%s
Main arguments to cover:
%s
Create an outline with a compelling title (50-60 characters), an introduction
hook and overview, 3-4 main sections with subsections and key points, and a
conclusion with key takeaways and a call-to-action.

Return the outline in this JSON format:
{
  "title": "Compelling Title Here",
  "introduction": {"hook": "Opening hook", "overview": "What readers will learn"},
  "main_sections": [
    {"title": "Section 1 Title", "subsections": ["Subsection 1", "Subsection 2"], "key_points": ["Point 1", "Point 2"]}
  ],
  "conclusion": {"summary": "Key takeaways", "call_to_action": "Next steps for reader"}
}

Return only valid JSON.`, contentType, topic, audience, findingsText.String(), argumentsText.String())
}

// fallbackOutline is the fully specified degraded outline: two sections built
// directly from the first four key findings.
func fallbackOutline(topic string, keyFindings []string) Outline {
	understanding := []string{"Key concept 1", "Key concept 2"}
	if len(keyFindings) > 0 {
		understanding = keyFindings[:minInt(2, len(keyFindings))]
	}
	applications := []string{"Application 1", "Application 2"}
	if len(keyFindings) > 2 {
		applications = keyFindings[2:minInt(4, len(keyFindings))]
	}

	return Outline{
		Title: topic,
		Introduction: OutlineIntro{
			Hook:     fmt.Sprintf("Understanding %s is crucial in today's world.", topic),
			Overview: fmt.Sprintf("This article explores key aspects of %s.", topic),
		},
		MainSections: []OutlineSection{
			{
				Title:       fmt.Sprintf("Understanding %s", topic),
				Subsections: []string{"Definition", "Importance"},
				KeyPoints:   understanding,
			},
			{
				Title:       fmt.Sprintf("Applications of %s", topic),
				Subsections: []string{"Practical uses", "Benefits"},
				KeyPoints:   applications,
			},
		},
		Conclusion: OutlineOutro{
			Summary:      fmt.Sprintf("Key insights about %s", topic),
			CallToAction: "Apply these insights in your work",
		},
	}
}

// generateSections produces the introduction, each main section, and the
// conclusion. Calls run sequentially; no section's prompt depends on another
// section's generated text, so order carries no semantic weight.
func (s *WritingStage) generateSections(ctx context.Context, outline Outline, research ResearchData, tone string, targetWords int) map[string]string {
	sections := make(map[string]string)

	introBudget := targetWords / 6
	sections["introduction"] = s.generateSection(ctx,
		sectionPrompt("introduction", outline.Introduction, research, tone, introBudget))

	mainBudget := 200
	if n := len(outline.MainSections); n > 0 {
		mainBudget = int(float64(targetWords) * 0.7 / float64(n))
	}
	for i, section := range outline.MainSections {
		key := fmt.Sprintf("section_%d", i+1)
		sections[key] = s.generateSection(ctx,
			sectionPrompt(fmt.Sprintf("main_section_%d", i+1), section, research, tone, mainBudget))
	}

	conclusionBudget := targetWords / 8
	sections["conclusion"] = s.generateSection(ctx,
		sectionPrompt("conclusion", outline.Conclusion, research, tone, conclusionBudget))

	return sections
}

func (s *WritingStage) generateSection(ctx context.Context, prompt string) string {
	response, err := s.llm.Synthesize(ctx, prompt, sectionMaxTokens)
	if s.telemetry != nil {
		s.telemetry.RecordProviderCall("llm", err)
	}
	if err != nil {
		s.logger.Printf("section synthesis failed: %v", err)
		return sectionFailurePlaceholder
	}
	return strings.TrimSpace(response)
}

func sectionPrompt(sectionType string, sectionData interface{}, research ResearchData, tone string, wordBudget int) string {
	findings := research.KeyFindings
	if len(findings) > 3 {
		findings = findings[:3]
	}
	detail, _ := json.Marshal(sectionData)

	prompt := fmt.Sprintf(`Write a %s section with approximately %d words.

Style: %s
Research context: %s

Section details: %s

Requirements:
- Write in a %s tone
- Use clear, engaging language
- Include specific details from research when relevant
- Make it informative and valuable to readers
- Ensure smooth flow and readability`,
		sectionType, wordBudget, tone, strings.Join(findings, "; "), detail, tone)

	switch sectionType {
	case "introduction":
		prompt += "\n- Start with a compelling hook\n- Clearly state what readers will learn"
	case "conclusion":
		prompt += "\n- Summarize key takeaways\n- Provide actionable next steps"
	}
	return prompt
}

// assembleContent concatenates the generated sections into one document,
// preserving outline order, with the title as the top heading and section
// titles as sub-headings.
func assembleContent(outline Outline, sections map[string]string) string {
	var parts []string

	title := outline.Title
	if title == "" {
		title = "Article Title"
	}
	parts = append(parts, fmt.Sprintf("# %s\n", title))

	if intro, ok := sections["introduction"]; ok {
		parts = append(parts, intro)
	}
	for i, sectionOutline := range outline.MainSections {
		key := fmt.Sprintf("section_%d", i+1)
		body, ok := sections[key]
		if !ok {
			continue
		}
		sectionTitle := sectionOutline.Title
		if sectionTitle == "" {
			sectionTitle = fmt.Sprintf("Section %d", i+1)
		}
		parts = append(parts, fmt.Sprintf("\n## %s\n", sectionTitle), body)
	}
	if conclusion, ok := sections["conclusion"]; ok {
		parts = append(parts, "\n## Conclusion\n", conclusion)
	}

	return strings.Join(parts, "\n\n")
}

// deriveMetadata computes document metadata from the assembled text only;
// nothing here trusts model output.
func deriveMetadata(content, topic string, contentType ContentType) ContentMetadata {
	lines := strings.Split(content, "\n")

	title := topic
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			title = strings.TrimSpace(strings.ReplaceAll(line, "#", ""))
			break
		}
	}

	var firstParagraph string
	seenFirst := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !seenFirst {
			// skip the title line
			seenFirst = true
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		firstParagraph = trimmed
		break
	}

	metaDescription := firstParagraph
	if len(metaDescription) > metaDescriptionLimit {
		metaDescription = metaDescription[:metaDescriptionLimit] + "..."
	}

	return ContentMetadata{
		Title:           title,
		MetaDescription: metaDescription,
		Keywords:        ExtractKeywords(content),
		Language:        "en",
		ContentType:     string(contentType),
	}
}

// ExtractKeywords returns the most frequent alphabetic tokens of length >= 4
// after lowercasing, markdown stripping, and stop-word removal.
func ExtractKeywords(content string) []string {
	text := markdownChars.ReplaceAllString(strings.ToLower(content), "")
	words := wordPattern.FindAllString(text, -1)

	counts := make(map[string]int)
	order := make(map[string]int)
	for i, w := range words {
		if _, skip := stopWords[w]; skip {
			continue
		}
		if _, seen := counts[w]; !seen {
			order[w] = i
		}
		counts[w]++
	}

	keywords := make([]string, 0, len(counts))
	for w := range counts {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return order[keywords[i]] < order[keywords[j]]
	})
	if len(keywords) > keywordLimit {
		keywords = keywords[:keywordLimit]
	}
	return keywords
}

// ReadingTime estimates minutes to read, with a floor of one minute.
func ReadingTime(wordCount int) int {
	minutes := int(math.Round(float64(wordCount) / readingWordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

func countWords(content string) int {
	return len(strings.Fields(content))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
