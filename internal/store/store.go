package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"

	"github.com/contentforge/contentforge/internal/pipeline"
)

// ErrNotFound is returned when a request or piece does not exist.
var ErrNotFound = errors.New("record not found")

type Store struct {
	DB *sql.DB
}

// ContentPiece is the persisted final output of one pipeline run.
type ContentPiece struct {
	ID             string                 `json:"id"`
	RequestID      string                 `json:"request_id"`
	Title          string                 `json:"title"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata"`
	QualityScore   float64                `json:"quality_score"`
	SEOScore       float64                `json:"seo_score"`
	FactCheckScore float64                `json:"fact_check_score"`
	ResearchDepth  float64                `json:"research_depth"`
	CreatedAt      time.Time              `json:"created_at"`
}

// StatusCount is one row of the aggregate stats query.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// CreateRequest inserts a content request and returns its id.
func (s *Store) CreateRequest(ctx context.Context, req pipeline.ContentRequest) (string, error) {
	styleJSON, err := json.Marshal(req.StyleRequirements)
	if err != nil {
		return "", fmt.Errorf("marshal style requirements: %w", err)
	}
	var id string
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO content_requests (user_id, topic, content_type, target_audience, style_requirements, keywords, word_count, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		req.UserID, req.Topic, string(req.ContentType), req.TargetAudience,
		styleJSON, pq.Array(req.Keywords), req.WordCount, string(req.Status)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert content request: %w", err)
	}
	return id, nil
}

// GetRequest retrieves a content request by id.
func (s *Store) GetRequest(ctx context.Context, id string) (pipeline.ContentRequest, error) {
	var (
		req       pipeline.ContentRequest
		ctype     string
		status    string
		styleJSON []byte
		keywords  []string
		audience  sql.NullString
		wordCount sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, topic, content_type, target_audience, style_requirements, keywords, word_count, status, created_at, updated_at
FROM content_requests WHERE id=$1`, id).Scan(
		&req.ID, &req.UserID, &req.Topic, &ctype, &audience, &styleJSON,
		pq.Array(&keywords), &wordCount, &status, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.ContentRequest{}, ErrNotFound
	}
	if err != nil {
		return pipeline.ContentRequest{}, fmt.Errorf("select content request: %w", err)
	}
	req.ContentType = pipeline.ContentType(ctype)
	req.Status = pipeline.ContentStatus(status)
	req.TargetAudience = audience.String
	req.WordCount = int(wordCount.Int64)
	req.Keywords = keywords
	if len(styleJSON) > 0 {
		if err := json.Unmarshal(styleJSON, &req.StyleRequirements); err != nil {
			return pipeline.ContentRequest{}, fmt.Errorf("unmarshal style requirements: %w", err)
		}
	}
	return req, nil
}

// UpdateRequestStatus moves a request through the pipeline state machine.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status pipeline.ContentStatus) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE content_requests SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRequests returns requests newest first with limit/offset pagination.
func (s *Store) ListRequests(ctx context.Context, limit, offset int) ([]pipeline.ContentRequest, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, topic, content_type, status, created_at, updated_at
FROM content_requests ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list content requests: %w", err)
	}
	defer rows.Close()

	var out []pipeline.ContentRequest
	for rows.Next() {
		var (
			req    pipeline.ContentRequest
			ctype  string
			status string
		)
		if err := rows.Scan(&req.ID, &req.UserID, &req.Topic, &ctype, &status, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		req.ContentType = pipeline.ContentType(ctype)
		req.Status = pipeline.ContentStatus(status)
		out = append(out, req)
	}
	return out, rows.Err()
}

// CountByStatus aggregates request counts per status for the stats endpoint.
func (s *Store) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM content_requests GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// SavePiece persists the final content for a completed run.
func (s *Store) SavePiece(ctx context.Context, piece ContentPiece) (string, error) {
	metaJSON, err := json.Marshal(piece.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal piece metadata: %w", err)
	}
	var id string
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO content_pieces (request_id, title, content, metadata, quality_score, seo_score, fact_check_score, research_depth)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		piece.RequestID, piece.Title, piece.Content, metaJSON,
		piece.QualityScore, piece.SEOScore, piece.FactCheckScore, piece.ResearchDepth).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert content piece: %w", err)
	}
	return id, nil
}

// GetPieceByRequest retrieves the stored piece for a request, if any.
func (s *Store) GetPieceByRequest(ctx context.Context, requestID string) (ContentPiece, error) {
	var (
		piece    ContentPiece
		metaJSON []byte
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, request_id, title, content, metadata, quality_score, seo_score, fact_check_score, research_depth, created_at
FROM content_pieces WHERE request_id=$1 ORDER BY created_at DESC LIMIT 1`, requestID).Scan(
		&piece.ID, &piece.RequestID, &piece.Title, &piece.Content, &metaJSON,
		&piece.QualityScore, &piece.SEOScore, &piece.FactCheckScore, &piece.ResearchDepth, &piece.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContentPiece{}, ErrNotFound
	}
	if err != nil {
		return ContentPiece{}, fmt.Errorf("select content piece: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &piece.Metadata); err != nil {
			return ContentPiece{}, fmt.Errorf("unmarshal piece metadata: %w", err)
		}
	}
	return piece, nil
}
