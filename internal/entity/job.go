package entity

import "time"

// JobStatus is the lifecycle state of a scrape job. Transitions are
// one-directional: pending -> running -> completed|cancelled|failed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusFailed    JobStatus = "failed"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusFailed
}

// ScrapeJob tracks one execution of a (cities x categories) configuration.
// It lives in the in-memory registry only and is rebuilt empty on restart.
type ScrapeJob struct {
	ID                  string     `json:"id"`
	Cities              []string   `json:"cities"`
	Categories          []string   `json:"categories"`
	MaxResultsPerSearch int        `json:"max_results_per_search"`
	DelayMS             int        `json:"delay_ms"`
	TotalSearches       int        `json:"total_searches"`
	Status              JobStatus  `json:"status"`
	Progress            int        `json:"progress"`
	BusinessesSaved     int        `json:"businesses_saved"`
	DuplicatesSkipped   int        `json:"duplicates_skipped"`
	SearchesCompleted   int        `json:"searches_completed"`
	Errors              []string   `json:"errors,omitempty"`
	CurrentCity         string     `json:"current_city,omitempty"`
	CurrentCategory     string     `json:"current_category,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}
