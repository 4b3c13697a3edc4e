package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunMode string

const (
	ModeFull        RunMode = "full"
	ModeIncremental RunMode = "incremental"
)

// ScrapeRun records one scrape execution for audit. Created when the run
// starts, finalized exactly once when it ends (including failed and
// timed-out runs), immutable afterwards.
type ScrapeRun struct {
	RunID       string     `json:"run_id"`
	Company     string     `json:"company"`
	Source      string     `json:"source"`
	Mode        RunMode    `json:"mode"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	JobsSeen       int    `json:"jobs_seen"`
	NewJobs        int    `json:"new_jobs"`
	UpdatedJobs    int    `json:"updated_jobs"`
	ClosedJobs     int    `json:"closed_jobs"`
	DetailsFetched int    `json:"details_fetched"`
	ErrorCount     int    `json:"error_count"`
	Error          string `json:"error,omitempty"`
}

func NewScrapeRun(company, source string, mode RunMode) ScrapeRun {
	return ScrapeRun{
		RunID:     uuid.NewString(),
		Company:   company,
		Source:    source,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
}
