package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/contentforge/contentforge/config"
	"github.com/contentforge/contentforge/internal/pipeline"
	"github.com/contentforge/contentforge/internal/store"
	"github.com/contentforge/contentforge/internal/telemetry"
)

const minTopicLength = 3

// ContentHandler exposes the pipeline over HTTP. Runs execute in the
// background; callers poll the status endpoint.
type ContentHandler struct {
	Cfg    *config.Config
	Store  *store.Store
	Orch   *pipeline.Orchestrator
	Tele   *telemetry.Telemetry
	Logger *log.Logger
}

func NewContentHandler(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator, tele *telemetry.Telemetry) *ContentHandler {
	return &ContentHandler{
		Cfg:    cfg,
		Store:  st,
		Orch:   orch,
		Tele:   tele,
		Logger: log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
}

func (h *ContentHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/status", h.status)
	g.DELETE("/:id", h.cancel)
}

func (h *ContentHandler) create(c echo.Context) error {
	var req CreateContentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	request, err := h.buildRequest(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := h.Store.CreateRequest(c.Request().Context(), request)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	request.ID = id

	go h.run(request)

	return c.JSON(http.StatusAccepted, CreateContentResponse{
		RequestID: id,
		Status:    string(pipeline.StatusPending),
	})
}

// buildRequest validates the payload and applies defaults before any stage
// runs. Invalid requests never reach the pipeline.
func (h *ContentHandler) buildRequest(req CreateContentRequest) (pipeline.ContentRequest, error) {
	topic := strings.TrimSpace(req.Topic)
	if len(topic) < minTopicLength {
		return pipeline.ContentRequest{}, pipeline.NewValidationError("topic",
			"topic must be at least 3 characters")
	}

	contentType := pipeline.ContentType(req.ContentType)
	if req.ContentType == "" {
		contentType = pipeline.ContentTypeBlogPost
	}
	if !contentType.Valid() {
		return pipeline.ContentRequest{}, pipeline.NewValidationError("content_type",
			"unsupported content type: "+req.ContentType)
	}

	wordCount := req.WordCount
	if wordCount == 0 {
		wordCount = h.Cfg.Pipeline.DefaultWordCount
	}
	if wordCount < h.Cfg.Pipeline.MinWordCount || wordCount > h.Cfg.Pipeline.MaxWordCount {
		return pipeline.ContentRequest{}, pipeline.NewValidationError("word_count",
			"word_count must be between "+strconv.Itoa(h.Cfg.Pipeline.MinWordCount)+
				" and "+strconv.Itoa(h.Cfg.Pipeline.MaxWordCount))
	}

	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	return pipeline.ContentRequest{
		UserID:            userID,
		Topic:             topic,
		ContentType:       contentType,
		TargetAudience:    req.TargetAudience,
		StyleRequirements: req.StyleRequirements,
		Keywords:          req.Keywords,
		WordCount:         wordCount,
		Status:            pipeline.StatusPending,
	}, nil
}

// run executes the pipeline off the request goroutine. The HTTP context is
// gone by the time this runs, so it gets its own.
func (h *ContentHandler) run(request pipeline.ContentRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*h.Cfg.Pipeline.StageTimeout)
	defer cancel()

	if err := h.Store.UpdateRequestStatus(ctx, request.ID, pipeline.StatusProcessing); err != nil {
		h.Logger.Printf("mark processing %s: %v", request.ID, err)
	}

	result := h.Orch.CreateContent(ctx, request)
	if err := result.Err(); err != nil {
		h.Logger.Printf("pipeline failed for %s: %v", request.ID, err)
		if err := h.Store.UpdateRequestStatus(ctx, request.ID, pipeline.StatusFailed); err != nil {
			h.Logger.Printf("mark failed %s: %v", request.ID, err)
		}
		return
	}

	piece := store.ContentPiece{
		RequestID:      request.ID,
		Title:          result.Content.Title,
		Content:        result.Content.Content,
		Metadata:       result.Content.Metadata,
		QualityScore:   result.Content.QualityMetrics.OverallQuality,
		SEOScore:       result.Content.QualityMetrics.SEOScore,
		FactCheckScore: result.Content.QualityMetrics.FactCheckScore,
		ResearchDepth:  result.Content.QualityMetrics.ResearchDepth,
	}
	if _, err := h.Store.SavePiece(ctx, piece); err != nil {
		h.Logger.Printf("save piece for %s: %v", request.ID, err)
		if err := h.Store.UpdateRequestStatus(ctx, request.ID, pipeline.StatusFailed); err != nil {
			h.Logger.Printf("mark failed %s: %v", request.ID, err)
		}
		return
	}
	if err := h.Store.UpdateRequestStatus(ctx, request.ID, pipeline.StatusCompleted); err != nil {
		h.Logger.Printf("mark completed %s: %v", request.ID, err)
	}
}

func (h *ContentHandler) get(c echo.Context) error {
	id := c.Param("id")
	request, err := h.Store.GetRequest(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "content request not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := map[string]interface{}{"request": request}
	if request.Status == pipeline.StatusCompleted {
		piece, err := h.Store.GetPieceByRequest(c.Request().Context(), id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if err == nil {
			resp["content"] = piece
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ContentHandler) status(c echo.Context) error {
	id := c.Param("id")

	// In-memory task state is authoritative while the server that accepted
	// the request is still running; the store covers everything else.
	if task, err := h.Orch.GetStatus(id); err == nil {
		return c.JSON(http.StatusOK, task)
	}

	request, err := h.Store.GetRequest(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "content request not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pipeline.TaskStatus{
		RequestID: id,
		Status:    request.Status,
		StartTime: request.CreatedAt,
	})
}

func (h *ContentHandler) cancel(c echo.Context) error {
	id := c.Param("id")
	if err := h.Orch.Cancel(id); err != nil {
		if errors.Is(err, pipeline.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "content request not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.UpdateRequestStatus(c.Request().Context(), id, pipeline.StatusFailed); err != nil && !errors.Is(err, store.ErrNotFound) {
		h.Logger.Printf("mark cancelled %s: %v", id, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"request_id": id, "status": string(pipeline.StatusFailed)})
}

func (h *ContentHandler) list(c echo.Context) error {
	limit := 20
	offset := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	items, err := h.Store.ListRequests(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []pipeline.ContentRequest{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *ContentHandler) stats(c echo.Context) error {
	counts, err := h.Store.CountByStatus(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	byStatus := make(map[string]int64, len(counts))
	for _, sc := range counts {
		byStatus[sc.Status] = sc.Count
	}

	resp := StatsResponse{RequestsByStatus: byStatus}
	if h.Tele != nil {
		snap := h.Tele.Snapshot()
		resp.TotalPipelines = snap.TotalRuns
		resp.SuccessfulRuns = snap.SuccessfulRuns
		resp.FailedRuns = snap.FailedRuns
		resp.AvgProcessingMS = snap.AverageProcessingTime.Milliseconds()
	}
	return c.JSON(http.StatusOK, resp)
}
