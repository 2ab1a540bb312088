package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/store"
)

func TestListReports(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportsHandler{Store: &store.Store{DB: db}}
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, topic, depth, results_count`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "depth", "results_count", "conflicts_count", "insufficient", "estimated_cost", "created_at"}).
			AddRow("rpt-1", "postgres replication", "moderate", 8, 1, false, 0.04, created))

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	rec := httptest.NewRecorder()
	if err := handler.list(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp []store.ReportSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].Topic != "postgres replication" || resp[0].Conflicts != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListReportsRejectsBadLimit(t *testing.T) {
	e := echo.New()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportsHandler{Store: &store.Store{DB: db}}

	req := httptest.NewRequest(http.MethodGet, "/api/reports?limit=bananas", nil)
	rec := httptest.NewRecorder()
	got := handler.list(e.NewContext(req, rec))
	httpErr, ok := got.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", got)
	}
}

func TestGetReport(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportsHandler{Store: &store.Store{DB: db}}
	doc, _ := json.Marshal(research.ResearchReport{
		ID:    "rpt-1",
		Query: research.Query{Topic: "postgres replication", Depth: research.DepthModerate},
	})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT report FROM reports WHERE id=$1`)).
		WithArgs("rpt-1").
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow(doc))

	req := httptest.NewRequest(http.MethodGet, "/api/reports/rpt-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("rpt-1")

	if err := handler.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp research.ResearchReport
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "rpt-1" || resp.Query.Topic != "postgres replication" {
		t.Fatalf("unexpected report: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReportNotFound(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportsHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT report FROM reports WHERE id=$1`)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/nope", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("nope")

	got := handler.get(ctx)
	httpErr, ok := got.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 error, got %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListConflictsUnknownReport(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportsHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM reports WHERE id=$1`)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/nope/conflicts", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("nope")

	got := handler.conflicts(ctx)
	httpErr, ok := got.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 error, got %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListConflictsForReport(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportsHandler{Store: &store.Store{DB: db}}
	payload, _ := json.Marshal(research.Conflict{ID: "cf-1", Kind: research.ConflictFactual, Subject: "count"})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM reports WHERE id=$1`)).
		WithArgs("rpt-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT payload FROM conflicts`).
		WithArgs("rpt-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	req := httptest.NewRequest(http.MethodGet, "/api/reports/rpt-1/conflicts", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("rpt-1")

	if err := handler.conflicts(ctx); err != nil {
		t.Fatalf("conflicts: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp []research.Conflict
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "cf-1" {
		t.Fatalf("unexpected conflicts: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
