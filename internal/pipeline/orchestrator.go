package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contentforge/contentforge/config"
	"github.com/contentforge/contentforge/internal/telemetry"
)

// Progress milestones for one run. Monotonic: a task only ever moves forward
// through 10 -> 50 -> 90 -> 100.
const (
	progressResearch = 10
	progressWriting  = 50
	progressScoring  = 90
	progressDone     = 100
)

const (
	stageResearch = "research"
	stageWriter   = "writer"
	stageScoring  = "scoring"
)

// Orchestrator sequences Research -> Writing -> Scoring for each request,
// tracks per-request progress, and forms the single error-containment
// boundary for a whole run. Stages never call each other; all composition
// happens here.
type Orchestrator struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	research  Researcher
	writer    Writer

	mu    sync.RWMutex
	tasks map[string]*TaskStatus
}

// NewOrchestrator creates an orchestrator instance. tele may be nil.
func NewOrchestrator(cfg *config.Config, research Researcher, writer Writer, tele *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		telemetry: tele,
		research:  research,
		writer:    writer,
		tasks:     make(map[string]*TaskStatus),
	}
}

// CreateContent runs the full pipeline for one request. Stage failures stop
// the run and surface as a structured error naming the failing phase; raw
// errors never escape this boundary.
func (o *Orchestrator) CreateContent(ctx context.Context, request ContentRequest) PipelineResult {
	requestID := request.ID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	startTime := time.Now()

	o.mu.Lock()
	if existing, ok := o.tasks[requestID]; ok && existing.Status == StatusProcessing {
		o.mu.Unlock()
		// reject without touching the in-flight task's state
		return PipelineResult{
			Status:        StatusError,
			RequestID:     requestID,
			ErrorType:     "Pipeline execution failed",
			Message:       fmt.Sprintf("request %s is already processing", requestID),
			ExecutionTime: time.Since(startTime),
		}
	}
	o.tasks[requestID] = &TaskStatus{
		RequestID:    requestID,
		Status:       StatusProcessing,
		Progress:     progressResearch,
		CurrentStage: stageResearch,
		StartTime:    startTime,
	}
	o.mu.Unlock()

	defer func() {
		if o.telemetry != nil {
			status, _ := o.GetStatus(requestID)
			o.telemetry.RecordPipelineEvent(telemetry.PipelineEvent{
				RequestID:      requestID,
				Topic:          request.Topic,
				StartTime:      startTime,
				EndTime:        time.Now(),
				ProcessingTime: time.Since(startTime),
				Success:        status.Status == StatusCompleted,
			})
		}
	}()

	o.logger.Printf("starting pipeline for request %s topic %q", requestID, request.Topic)

	// Phase 1: Research
	researchResult := o.research.Research(ctx, ResearchInput{
		Topic:      request.Topic,
		MaxResults: o.cfg.Search.Tavily.MaxResults,
	})
	if researchResult.Status != StatusSuccess {
		return o.errorResult(requestID, "Research phase failed", researchResult.Message, startTime)
	}
	if o.cancelled(requestID) {
		return o.errorResult(requestID, "Pipeline execution failed", "task cancelled", startTime)
	}

	// Phase 2: Writing
	o.updateTask(requestID, StatusProcessing, progressWriting, stageWriter)
	writingResult := o.writer.Write(ctx, WritingInput{
		Topic:             request.Topic,
		ResearchData:      researchResult.ResearchData,
		ContentType:       request.ContentType,
		TargetAudience:    request.TargetAudience,
		StyleRequirements: request.StyleRequirements,
		TargetWordCount:   request.WordCount,
	})
	if writingResult.Status != StatusSuccess {
		return o.errorResult(requestID, "Writing phase failed", writingResult.Message, startTime)
	}
	if o.cancelled(requestID) {
		return o.errorResult(requestID, "Pipeline execution failed", "task cancelled", startTime)
	}

	// Phase 3: Scoring and finalization
	o.updateTask(requestID, StatusProcessing, progressScoring, stageScoring)
	final := o.finalize(request, researchResult, writingResult)

	o.updateTask(requestID, StatusCompleted, progressDone, stageScoring)
	o.logger.Printf("pipeline completed for request %s in %s", requestID, time.Since(startTime))

	return PipelineResult{
		Status:        StatusSuccess,
		RequestID:     requestID,
		Content:       &final,
		ExecutionTime: time.Since(startTime),
	}
}

// finalize builds the consolidated result: content, merged metadata, quality
// metrics, and a research summary capped to the top three findings.
func (o *Orchestrator) finalize(request ContentRequest, research ResearchResult, writing WritingResult) FinalContent {
	out := writing.WritingOutput
	data := research.ResearchData

	metrics := Score(out, data, research.ConfidenceScore)

	title := out.Title
	if title == "" {
		title = request.Topic
	}

	topFindings := data.KeyFindings
	if len(topFindings) > 3 {
		topFindings = topFindings[:3]
	}

	return FinalContent{
		Title:   title,
		Content: out.Content,
		Metadata: map[string]interface{}{
			"title":              out.Metadata.Title,
			"meta_description":   out.Metadata.MetaDescription,
			"keywords":           out.Metadata.Keywords,
			"language":           out.Metadata.Language,
			"word_count":         out.WordCount,
			"reading_time":       out.EstimatedReadingTime,
			"research_sources":   len(data.Sources),
			"key_findings_count": len(data.KeyFindings),
			"content_type":       string(request.ContentType),
			"target_audience":    request.TargetAudience,
		},
		QualityMetrics: metrics,
		ResearchSummary: ResearchSummary{
			KeyFindings: topFindings,
			SourceCount: len(data.Sources),
			Confidence:  research.ConfidenceScore,
		},
	}
}

// GetStatus returns the current progress of a tracked request.
func (o *Orchestrator) GetStatus(requestID string) (TaskStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	task, ok := o.tasks[requestID]
	if !ok {
		return TaskStatus{}, ErrTaskNotFound
	}
	snapshot := *task
	snapshot.ElapsedTime = time.Since(task.StartTime)
	return snapshot, nil
}

// Cancel marks a tracked task failed. Cooperative bookkeeping only: it does
// not interrupt in-flight external calls; their results are discarded when
// the run observes the cancellation.
func (o *Orchestrator) Cancel(requestID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	task, ok := o.tasks[requestID]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = StatusFailed
	return nil
}

func (o *Orchestrator) cancelled(requestID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	task, ok := o.tasks[requestID]
	return ok && task.Status == StatusFailed
}

// updateTask advances a task's state. Progress never moves backwards.
func (o *Orchestrator) updateTask(requestID string, status ContentStatus, progress int, stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	task, ok := o.tasks[requestID]
	if !ok {
		return
	}
	task.Status = status
	if progress > task.Progress {
		task.Progress = progress
	}
	task.CurrentStage = stage
}

func (o *Orchestrator) errorResult(requestID, errorType, message string, startTime time.Time) PipelineResult {
	o.mu.Lock()
	if task, ok := o.tasks[requestID]; ok {
		task.Status = StatusFailed
	}
	o.mu.Unlock()

	o.logger.Printf("pipeline failed for request %s: %s: %s", requestID, errorType, message)
	return PipelineResult{
		Status:        StatusError,
		RequestID:     requestID,
		ErrorType:     errorType,
		Message:       message,
		ExecutionTime: time.Since(startTime),
	}
}
