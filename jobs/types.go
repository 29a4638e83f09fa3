// Package jobs is the background job engine: configurations, execution
// records with a crash-safe lifecycle, the runner that drives one job
// to a terminal state, and the interval scheduler.
package jobs

import (
	"encoding/json"
	"time"
)

// JobType is the closed set of job variants. Dispatch over it is an
// exhaustive switch, not a registry lookup.
type JobType string

const (
	// JobTypeTrackerUpdater refreshes identity, level and rank for
	// tracked players.
	JobTypeTrackerUpdater JobType = "tracker-updater"
	// JobTypeMatchFetcher pulls match history for players below their
	// match target, discovering new players along the way.
	JobTypeMatchFetcher JobType = "match-fetcher"
	// JobTypeAnalyzer runs the detection engine over players with
	// enough data.
	JobTypeAnalyzer JobType = "analyzer"
	// JobTypeBanChecker re-checks flagged players for account removal.
	JobTypeBanChecker JobType = "ban-checker"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeTrackerUpdater, JobTypeMatchFetcher, JobTypeAnalyzer, JobTypeBanChecker:
		return true
	}
	return false
}

// Status is a job execution's lifecycle state.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusRunning     Status = "RUNNING"
	StatusSuccess     Status = "SUCCESS"
	StatusFailed      Status = "FAILED"
	StatusRateLimited Status = "RATE_LIMITED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRateLimited:
		return true
	}
	return false
}

// JobConfiguration is one scheduled job: what to run, how often, and
// a variant-specific payload interpreted by the job body.
type JobConfiguration struct {
	ID       int64
	Name     string
	Type     JobType
	Interval time.Duration
	Enabled  bool
	Payload  json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobExecution is one run of a configuration. At most one execution
// per configuration may be RUNNING at any time. Terminal executions
// are immutable.
type JobExecution struct {
	ID                 string
	JobConfigurationID int64
	Status             Status
	StartedAt          time.Time
	CompletedAt        *time.Time
	DurationMS         *int64
	APIRequestsMade    int
	RecordsCreated     int
	RecordsUpdated     int
	ErrorMessage       *string
	Log                string

	CreatedAt time.Time
	UpdatedAt time.Time
}
