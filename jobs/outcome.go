package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OutcomeKind classifies how a job body ended.
type OutcomeKind int

const (
	// OutcomeSuccess means the body finished its work.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRateLimited means the body stopped early at an API
	// budget wall after checkpointing. The work done so far counts;
	// the schedule retries the remainder on the next interval.
	OutcomeRateLimited
	// OutcomeFailed means the body hit an error it could not work
	// around.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Counters are the work totals a body reports.
type Counters struct {
	APIRequests    int
	RecordsCreated int
	RecordsUpdated int
}

// Outcome is a job body's result, returned as a value rather than
// signalled through errors: a rate-limit stop is an expected outcome,
// not an exception.
type Outcome struct {
	Kind OutcomeKind
	// RetryAfter is the server-requested backoff on a rate-limited
	// outcome. Informational; the schedule interval governs the
	// actual retry.
	RetryAfter time.Duration
	// Err is set on failed outcomes.
	Err      error
	Counters Counters
}

// Success builds a success outcome.
func Success(c Counters) Outcome {
	return Outcome{Kind: OutcomeSuccess, Counters: c}
}

// RateLimited builds a rate-limited outcome carrying the partial work.
func RateLimited(retryAfter time.Duration, c Counters) Outcome {
	return Outcome{Kind: OutcomeRateLimited, RetryAfter: retryAfter, Counters: c}
}

// Failed builds a failed outcome. Counters still carry whatever work
// completed before the error.
func Failed(err error, c Counters) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err, Counters: c}
}

// Body is one job variant's implementation. Execute does the work and
// returns how it ended; it must not panic and should honor ctx
// cancellation at its loop boundaries.
type Body interface {
	Type() JobType
	Execute(ctx context.Context, rec *Recorder) Outcome
}

// BodyFactory builds the body for a configuration, validating its
// payload. A validation error fails the execution before any work
// runs.
type BodyFactory func(cfg *JobConfiguration) (Body, error)

// Recorder collects a job execution's log lines. Lines go to both the
// process log and the execution record, so one execution's story is
// readable on its own.
type Recorder struct {
	logger *zap.SugaredLogger

	mu    sync.Mutex
	lines []string
}

// NewRecorder creates a recorder that mirrors lines to logger.
func NewRecorder(logger *zap.SugaredLogger) *Recorder {
	return &Recorder{logger: logger}
}

// Logf appends one formatted line to the execution log.
func (r *Recorder) Logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Debugw("Job log", "line", line)
	}
}

// Log returns the captured lines joined with newlines.
func (r *Recorder) Log() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ""
	for i, line := range r.lines {
		if i > 0 {
			out += "\n"
		}
		out += line
	}
	return out
}
