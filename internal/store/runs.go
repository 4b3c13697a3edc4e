package store

import (
	"context"
	"database/sql"
	"fmt"

	"joblens-engine/internal/domain"
)

type runRow struct {
	RunID          string         `db:"run_id"`
	Company        string         `db:"company"`
	Source         string         `db:"source"`
	Mode           string         `db:"mode"`
	StartedAt      string         `db:"started_at"`
	CompletedAt    sql.NullString `db:"completed_at"`
	JobsSeen       int            `db:"jobs_seen"`
	NewJobs        int            `db:"new_jobs"`
	UpdatedJobs    int            `db:"updated_jobs"`
	ClosedJobs     int            `db:"closed_jobs"`
	DetailsFetched int            `db:"details_fetched"`
	ErrorCount     int            `db:"error_count"`
	Error          string         `db:"error"`
}

func (r runRow) toDomain() domain.ScrapeRun {
	run := domain.ScrapeRun{
		RunID:          r.RunID,
		Company:        r.Company,
		Source:         r.Source,
		Mode:           domain.RunMode(r.Mode),
		StartedAt:      parseTime(r.StartedAt),
		JobsSeen:       r.JobsSeen,
		NewJobs:        r.NewJobs,
		UpdatedJobs:    r.UpdatedJobs,
		ClosedJobs:     r.ClosedJobs,
		DetailsFetched: r.DetailsFetched,
		ErrorCount:     r.ErrorCount,
		Error:          r.Error,
	}
	if r.CompletedAt.Valid && r.CompletedAt.String != "" {
		t := parseTime(r.CompletedAt.String)
		run.CompletedAt = &t
	}
	return run
}

// InsertRun records the start of a run so an interrupted process still
// leaves an audit row.
func (s *Store) InsertRun(ctx context.Context, run domain.ScrapeRun) error {
	q := s.rebind(`INSERT INTO scrape_runs (run_id, company, source, mode, started_at)
VALUES (?, ?, ?, ?, ?)`)
	_, err := s.DB.ExecContext(ctx, q,
		run.RunID, run.Company, run.Source, string(run.Mode), formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinalizeRun writes the counts exactly once; the row is immutable after.
func (s *Store) FinalizeRun(ctx context.Context, run domain.ScrapeRun) error {
	q := s.rebind(`UPDATE scrape_runs SET
  completed_at = ?, jobs_seen = ?, new_jobs = ?, updated_jobs = ?,
  closed_jobs = ?, details_fetched = ?, error_count = ?, error = ?
WHERE run_id = ? AND completed_at IS NULL`)
	_, err := s.DB.ExecContext(ctx, q,
		formatTimePtr(run.CompletedAt), run.JobsSeen, run.NewJobs, run.UpdatedJobs,
		run.ClosedJobs, run.DetailsFetched, run.ErrorCount, run.Error, run.RunID)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, company string, limit int) ([]domain.ScrapeRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	where := ""
	args := []any{}
	if company != "" {
		where = "WHERE company = ?"
		args = append(args, company)
	}
	args = append(args, limit)

	var rows []runRow
	q := s.rebind(fmt.Sprintf(
		`SELECT run_id, company, source, mode, started_at, completed_at,
jobs_seen, new_jobs, updated_jobs, closed_jobs, details_fetched, error_count, error
FROM scrape_runs %s ORDER BY started_at DESC LIMIT ?`, where))
	if err := s.DB.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]domain.ScrapeRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
