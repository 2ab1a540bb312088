package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/scout-sh/scout/internal/research"
)

// Store wraps the Postgres connection used for report and subscription persistence.
type Store struct {
	DB *sql.DB
}

// New connects using DATABASE_URL, falling back to discrete POSTGRES_* variables.
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

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// ReportSummary is the list view of a persisted report.
type ReportSummary struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	Depth         string    `json:"depth"`
	Results       int       `json:"results"`
	Conflicts     int       `json:"conflicts"`
	Insufficient  bool      `json:"insufficient"`
	EstimatedCost float64   `json:"estimated_cost"`
	CreatedAt     time.Time `json:"created_at"`
}

// Subscription is a stored recurring research request.
type Subscription struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Depth     string     `json:"depth"`
	CronExpr  string     `json:"cron_expr"`
	CreatedAt time.Time  `json:"created_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// SaveReport persists a finished report plus one row per conflict so conflicts
// can be listed without unmarshalling the whole report document.
func (s *Store) SaveReport(ctx context.Context, rpt research.ResearchReport) (err error) {
	doc, err := json.Marshal(rpt)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO reports (id, topic, depth, report, results_count, conflicts_count, insufficient, estimated_cost, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, rpt.ID, rpt.Query.Topic, string(rpt.Query.Depth), doc, len(rpt.Results), len(rpt.Conflicts), rpt.Insufficient != nil, rpt.EstimatedCost, rpt.CreatedAt); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for i, cf := range rpt.Conflicts {
		payload, merr := json.Marshal(cf)
		if merr != nil {
			err = fmt.Errorf("marshal conflict: %w", merr)
			return err
		}
		id := cf.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO conflicts (id, report_id, pos, kind, severity, subject, resolution, winner_id, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, id, rpt.ID, i, string(cf.Kind), string(cf.Severity), cf.Subject, string(cf.Resolution), cf.WinnerID, payload); err != nil {
			return fmt.Errorf("insert conflict: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// GetReport loads a full report document by ID.
func (s *Store) GetReport(ctx context.Context, id string) (research.ResearchReport, bool, error) {
	var doc []byte
	err := s.DB.QueryRowContext(ctx, `SELECT report FROM reports WHERE id=$1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return research.ResearchReport{}, false, nil
	}
	if err != nil {
		return research.ResearchReport{}, false, err
	}
	var rpt research.ResearchReport
	if err := json.Unmarshal(doc, &rpt); err != nil {
		return research.ResearchReport{}, false, fmt.Errorf("unmarshal report %s: %w", id, err)
	}
	return rpt, true, nil
}

// ListReports returns summaries of the most recent reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, topic, depth, results_count, conflicts_count, insufficient, estimated_cost, created_at
FROM reports
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportSummary
	for rows.Next() {
		var rs ReportSummary
		if err := rows.Scan(&rs.ID, &rs.Topic, &rs.Depth, &rs.Results, &rs.Conflicts, &rs.Insufficient, &rs.EstimatedCost, &rs.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ListConflicts returns the conflicts recorded for a report in detection order.
func (s *Store) ListConflicts(ctx context.Context, reportID string) ([]research.Conflict, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT payload FROM conflicts WHERE report_id=$1 ORDER BY pos ASC
`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []research.Conflict
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var cf research.Conflict
		if err := json.Unmarshal(payload, &cf); err != nil {
			return nil, fmt.Errorf("unmarshal conflict: %w", err)
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}

// ReportExists reports whether a report row with the given ID is present.
func (s *Store) ReportExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM reports WHERE id=$1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateSubscription stores a recurring research request and returns its ID.
// The cron expression is validated by the caller before it gets here.
func (s *Store) CreateSubscription(ctx context.Context, topic, depth, cronExpr string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO subscriptions (id, topic, depth, cron_expr)
VALUES ($1,$2,$3,$4)
RETURNING id
`, uuid.NewString(), topic, depth, cronExpr).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert subscription: %w", err)
	}
	return id, nil
}

// ListSubscriptions returns all subscriptions, newest first.
func (s *Store) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, topic, depth, cron_expr, created_at, last_run_at
FROM subscriptions
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		var sub Subscription
		var lastRun sql.NullTime
		if err := rows.Scan(&sub.ID, &sub.Topic, &sub.Depth, &sub.CronExpr, &sub.CreatedAt, &lastRun); err != nil {
			return nil, err
		}
		if lastRun.Valid {
			ts := lastRun.Time
			sub.LastRunAt = &ts
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// DeleteSubscription removes a subscription. Returns sql.ErrNoRows when the ID is unknown.
func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	} else if err != nil {
		return err
	}
	return nil
}

// TouchSubscription records when a subscription last ran.
func (s *Store) TouchSubscription(ctx context.Context, id string, ranAt time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE subscriptions SET last_run_at=$1 WHERE id=$2`, ranAt, id)
	return err
}
