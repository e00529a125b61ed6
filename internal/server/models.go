package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// CreateContentRequest is the payload for starting a pipeline run.
type CreateContentRequest struct {
	UserID            string                 `json:"user_id"`
	Topic             string                 `json:"topic"`
	ContentType       string                 `json:"content_type"`
	TargetAudience    string                 `json:"target_audience"`
	StyleRequirements map[string]interface{} `json:"style_requirements"`
	Keywords          []string               `json:"keywords"`
	WordCount         int                    `json:"word_count"`
}

// CreateContentResponse acknowledges an accepted request.
type CreateContentResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// StatsResponse aggregates request counts and pipeline telemetry.
type StatsResponse struct {
	RequestsByStatus map[string]int64 `json:"requests_by_status"`
	TotalPipelines   int64            `json:"total_pipelines"`
	SuccessfulRuns   int64            `json:"successful_runs"`
	FailedRuns       int64            `json:"failed_runs"`
	AvgProcessingMS  int64            `json:"avg_processing_ms"`
}
