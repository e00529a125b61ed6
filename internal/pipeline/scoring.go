package pipeline

import "strings"

// Scoring weights and thresholds for the quality heuristic.
const (
	qualityLengthWeight    = 0.3
	qualityResearchWeight  = 0.4
	qualityStructureWeight = 0.3

	// Below this word count the length score collapses to a small constant.
	qualityMinWordCount  = 100
	qualityFullWordCount = 500
	qualityShortPenalty  = 0.2

	researchDepthDivisor = 5.0
)

// QualityScore grades a finished piece against its research backing:
// a weighted blend of length, research depth, and structural completeness.
func QualityScore(writing WritingOutput, research ResearchData) float64 {
	lengthScore := qualityShortPenalty
	if writing.WordCount > qualityMinWordCount {
		lengthScore = clamp01(float64(writing.WordCount) / qualityFullWordCount)
	}

	researchScore := clamp01(float64(len(research.Sources)+len(research.KeyFindings)) / 8.0)

	structureParts := 0
	if writing.Title != "" {
		structureParts++
	}
	if writing.Content != "" {
		structureParts++
	}
	if writing.Metadata.Title != "" || writing.Metadata.MetaDescription != "" || len(writing.Metadata.Keywords) > 0 {
		structureParts++
	}
	structureScore := float64(structureParts) / 3.0

	return clamp01(qualityLengthWeight*lengthScore +
		qualityResearchWeight*researchScore +
		qualityStructureWeight*structureScore)
}

// SEOScore grades the piece's search-engine readiness: title and meta
// description lengths, heading structure, and keyword presence. Additive,
// capped at 1.0.
func SEOScore(writing WritingOutput) float64 {
	score := 0.0

	titleLen := len(writing.Title)
	if titleLen >= 30 && titleLen <= 60 {
		score += 0.3
	} else if titleLen > 0 {
		score += 0.15
	}

	descLen := len(writing.Metadata.MetaDescription)
	if descLen >= 120 && descLen <= 160 {
		score += 0.3
	} else if descLen > 0 {
		score += 0.15
	}

	if strings.Contains(writing.Content, "##") {
		score += 0.2
	} else if strings.Contains(writing.Content, "#") {
		score += 0.1
	}

	lowerContent := strings.ToLower(writing.Content)
	for _, keyword := range writing.Metadata.Keywords {
		if keyword != "" && strings.Contains(lowerContent, strings.ToLower(keyword)) {
			score += 0.2
			break
		}
	}

	return clamp01(score)
}

// ResearchDepth normalizes source count against a five-source baseline.
// Clamped to 1.0 so it honors the same [0,1] invariant as every other score.
func ResearchDepth(research ResearchData) float64 {
	return clamp01(float64(len(research.Sources)) / researchDepthDivisor)
}

// Score builds the full metrics set for a finished (research, writing) pair.
// fact_check_score is the research confidence surfaced as-is, never
// recomputed here.
func Score(writing WritingOutput, research ResearchData, confidence float64) QualityMetrics {
	return QualityMetrics{
		OverallQuality: QualityScore(writing, research),
		SEOScore:       SEOScore(writing),
		FactCheckScore: clamp01(confidence),
		ResearchDepth:  ResearchDepth(research),
	}
}
