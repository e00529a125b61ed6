package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/contentforge/contentforge/internal/pipeline"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return &Store{DB: db}, mock, func() { db.Close() }
}

func TestCreateRequest(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`INSERT INTO content_requests`).
		WithArgs("user-1", "Solar Power", "article", "developers",
			[]byte(`{"tone":"formal"}`), sqlmock.AnyArg(), 800, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("req-1"))

	id, err := st.CreateRequest(context.Background(), pipeline.ContentRequest{
		UserID:            "user-1",
		Topic:             "Solar Power",
		ContentType:       pipeline.ContentTypeArticle,
		TargetAudience:    "developers",
		StyleRequirements: map[string]interface{}{"tone": "formal"},
		Keywords:          []string{"solar", "energy"},
		WordCount:         800,
		Status:            pipeline.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if id != "req-1" {
		t.Fatalf("id = %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRequestNotFound(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`SELECT id, user_id, topic`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.GetRequest(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetRequestRoundTrip(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, topic, content_type, target_audience`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "topic", "content_type", "target_audience",
			"style_requirements", "keywords", "word_count", "status", "created_at", "updated_at",
		}).AddRow("req-1", "user-1", "Solar Power", "blog_post", "developers",
			[]byte(`{"tone":"formal"}`), []byte(`{solar,energy}`), 800, "processing", now, now))

	req, err := st.GetRequest(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if req.ContentType != pipeline.ContentTypeBlogPost || req.Status != pipeline.StatusProcessing {
		t.Fatalf("request = %+v", req)
	}
	if len(req.Keywords) != 2 || req.Keywords[0] != "solar" {
		t.Fatalf("keywords = %v", req.Keywords)
	}
	if req.StyleRequirements["tone"] != "formal" {
		t.Fatalf("style = %v", req.StyleRequirements)
	}
}

func TestUpdateRequestStatusNotFound(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(`UPDATE content_requests SET status=\$2`).
		WithArgs("missing", "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.UpdateRequestStatus(context.Background(), "missing", pipeline.StatusFailed)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveAndGetPiece(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`INSERT INTO content_pieces`).
		WithArgs("req-1", "Title", "# Title\n\nbody", sqlmock.AnyArg(), 0.85, 1.0, 0.8, 0.4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("piece-1"))

	id, err := st.SavePiece(context.Background(), ContentPiece{
		RequestID:      "req-1",
		Title:          "Title",
		Content:        "# Title\n\nbody",
		Metadata:       map[string]interface{}{"word_count": 500},
		QualityScore:   0.85,
		SEOScore:       1.0,
		FactCheckScore: 0.8,
		ResearchDepth:  0.4,
	})
	if err != nil {
		t.Fatalf("SavePiece: %v", err)
	}
	if id != "piece-1" {
		t.Fatalf("id = %q", id)
	}

	now := time.Now()
	mock.ExpectQuery(`SELECT id, request_id, title, content, metadata`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "request_id", "title", "content", "metadata",
			"quality_score", "seo_score", "fact_check_score", "research_depth", "created_at",
		}).AddRow("piece-1", "req-1", "Title", "# Title\n\nbody", []byte(`{"word_count":500}`),
			0.85, 1.0, 0.8, 0.4, now))

	piece, err := st.GetPieceByRequest(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("GetPieceByRequest: %v", err)
	}
	if piece.Metadata["word_count"].(float64) != 500 {
		t.Fatalf("metadata = %v", piece.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM content_requests GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("completed", int64(3)).
			AddRow("pending", int64(1)))

	counts, err := st.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if len(counts) != 2 || counts[0].Status != "completed" || counts[0].Count != 3 {
		t.Fatalf("counts = %+v", counts)
	}
}
