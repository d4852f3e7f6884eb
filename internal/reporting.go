package internal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// SubmissionStats aggregates one department's submission activity.
type SubmissionStats struct {
	FormID      string            `json:"formId"`
	Total       int64             `json:"total"`
	ByStatus    map[string]int64  `json:"byStatus"`
	Daily       []DailySubmission `json:"daily"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// DailySubmission is one day's submission count.
type DailySubmission struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// ReportingService answers admin dashboard queries. Rows are pulled from
// Postgres over a plain database/sql connection and staged into an in-memory
// DuckDB instance, which does the aggregation work. The stage is rebuilt on
// every call; submission volumes here are small enough that caching is not
// worth the staleness.
type ReportingService struct {
	pgDSN  string
	table  string
	logger *zap.Logger
}

// NewReportingService builds a reporting service reading from the given
// submissions table. dsn is a lib/pq connection string.
func NewReportingService(dsn, table string, logger *zap.Logger) *ReportingService {
	return &ReportingService{pgDSN: dsn, table: table, logger: logger}
}

// SubmissionStats computes totals, per-status counts, and a daily series for
// one form's submissions.
func (s *ReportingService) SubmissionStats(ctx context.Context, formID string) (*SubmissionStats, error) {
	pg, err := sql.Open("postgres", s.pgDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	defer pg.Close()

	rows, err := pg.QueryContext(ctx,
		fmt.Sprintf("SELECT id, status, submitted_at FROM %s WHERE form_id = $1", s.table), formID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	duck, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer duck.Close()
	duck.SetMaxOpenConns(1)

	if _, err := duck.ExecContext(ctx,
		"CREATE TABLE staged (id VARCHAR, status VARCHAR, submitted_at TIMESTAMP)"); err != nil {
		return nil, fmt.Errorf("create staging table: %w", err)
	}

	insert, err := duck.PrepareContext(ctx, "INSERT INTO staged VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("prepare staging insert: %w", err)
	}
	defer insert.Close()

	staged := 0
	for rows.Next() {
		var id, status string
		var submittedAt time.Time
		if err := rows.Scan(&id, &status, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		if _, err := insert.ExecContext(ctx, id, status, submittedAt); err != nil {
			return nil, fmt.Errorf("stage submission row: %w", err)
		}
		staged++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	stats := &SubmissionStats{
		FormID:      formID,
		ByStatus:    map[string]int64{},
		GeneratedAt: time.Now().UTC(),
	}

	statusRows, err := duck.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM staged GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("aggregate by status: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int64
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	dailyRows, err := duck.QueryContext(ctx,
		"SELECT strftime(submitted_at, '%Y-%m-%d') AS day, COUNT(*) FROM staged GROUP BY day ORDER BY day")
	if err != nil {
		return nil, fmt.Errorf("aggregate daily: %w", err)
	}
	defer dailyRows.Close()
	for dailyRows.Next() {
		var d DailySubmission
		if err := dailyRows.Scan(&d.Day, &d.Count); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		stats.Daily = append(stats.Daily, d)
	}
	if err := dailyRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily counts: %w", err)
	}

	s.logger.Debug("submission stats computed",
		zap.String("formId", formID),
		zap.Int("staged", staged),
		zap.Int64("total", stats.Total),
	)
	return stats, nil
}
