package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/contentforge/contentforge/config"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentforge_pipeline_runs_total",
		Help: "Pipeline runs by final status.",
	}, []string{"status"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contentforge_stage_duration_seconds",
		Help:    "Wall-clock duration of pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})

	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentforge_provider_requests_total",
		Help: "External capability calls by provider and outcome.",
	}, []string{"provider", "outcome"})
)

// Telemetry provides monitoring for pipeline runs and external calls
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	metrics *Metrics
	mu      sync.RWMutex
}

// Metrics holds aggregate counters kept alongside the prometheus collectors
// for the /stats style introspection endpoints. Guarded by Telemetry.mu.
type Metrics struct {
	TotalRuns             int64
	SuccessfulRuns        int64
	FailedRuns            int64
	AverageProcessingTime time.Duration

	StageExecutions   map[string]int64
	StageAverageTimes map[string]time.Duration

	ProviderRequests map[string]int64
	ProviderFailures map[string]int64
}

// PipelineEvent represents one complete pipeline run
type PipelineEvent struct {
	RequestID      string
	Topic          string
	StartTime      time.Time
	EndTime        time.Time
	ProcessingTime time.Duration
	Success        bool
	Error          string
	SourcesFound   int
	WordCount      int
}

// StageEvent represents one stage execution within a run
type StageEvent struct {
	RequestID string
	Stage     string
	Duration  time.Duration
	Success   bool
	Error     string
}

// New creates a telemetry instance
func New(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			StageExecutions:   make(map[string]int64),
			StageAverageTimes: make(map[string]time.Duration),
			ProviderRequests:  make(map[string]int64),
			ProviderFailures:  make(map[string]int64),
		},
	}
	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startPeriodicLogs()
	}
	return t
}

// RecordPipelineEvent records a complete pipeline run
func (t *Telemetry) RecordPipelineEvent(event PipelineEvent) {
	if !t.config.Enabled {
		return
	}

	status := "success"
	if !event.Success {
		status = "failed"
	}
	pipelineRuns.WithLabelValues(status).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalRuns++
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
	// Running average over all runs
	n := t.metrics.TotalRuns
	prev := t.metrics.AverageProcessingTime
	t.metrics.AverageProcessingTime = prev + (event.ProcessingTime-prev)/time.Duration(n)
}

// RecordStageEvent records a stage execution
func (t *Telemetry) RecordStageEvent(event StageEvent) {
	if !t.config.Enabled {
		return
	}
	stageDuration.WithLabelValues(event.Stage).Observe(event.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.StageExecutions[event.Stage]++
	n := t.metrics.StageExecutions[event.Stage]
	prev := t.metrics.StageAverageTimes[event.Stage]
	t.metrics.StageAverageTimes[event.Stage] = prev + (event.Duration-prev)/time.Duration(n)
}

// RecordProviderCall records an external capability call outcome
func (t *Telemetry) RecordProviderCall(provider string, err error) {
	if !t.config.Enabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	providerRequests.WithLabelValues(provider, outcome).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.ProviderRequests[provider]++
	if err != nil {
		t.metrics.ProviderFailures[provider]++
	}
}

// Snapshot returns a copy of the aggregate metrics.
func (t *Telemetry) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Metrics{
		TotalRuns:             t.metrics.TotalRuns,
		SuccessfulRuns:        t.metrics.SuccessfulRuns,
		FailedRuns:            t.metrics.FailedRuns,
		AverageProcessingTime: t.metrics.AverageProcessingTime,
		StageExecutions:       make(map[string]int64, len(t.metrics.StageExecutions)),
		StageAverageTimes:     make(map[string]time.Duration, len(t.metrics.StageAverageTimes)),
		ProviderRequests:      make(map[string]int64, len(t.metrics.ProviderRequests)),
		ProviderFailures:      make(map[string]int64, len(t.metrics.ProviderFailures)),
	}
	for k, v := range t.metrics.StageExecutions {
		snap.StageExecutions[k] = v
	}
	for k, v := range t.metrics.StageAverageTimes {
		snap.StageAverageTimes[k] = v
	}
	for k, v := range t.metrics.ProviderRequests {
		snap.ProviderRequests[k] = v
	}
	for k, v := range t.metrics.ProviderFailures {
		snap.ProviderFailures[k] = v
	}
	return snap
}

func (t *Telemetry) startPeriodicLogs() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		snap := t.Snapshot()
		t.logger.Printf("runs=%d ok=%d failed=%d avg=%s",
			snap.TotalRuns, snap.SuccessfulRuns, snap.FailedRuns, snap.AverageProcessingTime)
	}
}
