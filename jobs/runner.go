package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/riftwatch/smurfwatch/errors"
	"github.com/riftwatch/smurfwatch/internal/util"
)

// ErrAlreadyRunning is returned when a configuration already has a
// RUNNING execution. The scheduler treats it as a skipped fire, not a
// failure.
var ErrAlreadyRunning = errors.New("job already running")

// Runner drives one job configuration through a full execution:
// advisory lock check, RUNNING record, body execution, terminal
// write.
type Runner struct {
	execs   *ExecutionStore
	factory BodyFactory
	logger  *zap.SugaredLogger
	timeNow func() time.Time
}

// NewRunner creates a runner. factory maps configurations to their
// job bodies.
func NewRunner(execs *ExecutionStore, factory BodyFactory, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		execs:   execs,
		factory: factory,
		logger:  logger,
		timeNow: time.Now,
	}
}

// Run executes one configuration to a terminal state and returns the
// completed execution record. Returns ErrAlreadyRunning when another
// execution of the same configuration is still in flight.
func (r *Runner) Run(ctx context.Context, cfg *JobConfiguration) (*JobExecution, error) {
	// Advisory check: the scheduler already guarantees one dispatch
	// per configuration, this catches manual runs racing it.
	running, err := r.execs.HasRunning(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	if running {
		return nil, errors.Wrapf(ErrAlreadyRunning, "configuration %q", cfg.Name)
	}

	startedAt := r.timeNow()
	exec, err := r.execs.Start(ctx, cfg.ID, startedAt)
	if err != nil {
		return nil, err
	}

	r.logger.Infow("Job started",
		"job", cfg.Name,
		"type", cfg.Type,
		"execution_id", exec.ID)

	rec := NewRecorder(r.logger.Named(string(cfg.Type)))
	outcome := r.execute(ctx, cfg, rec)

	completedAt := r.timeNow()
	exec.CompletedAt = &completedAt
	exec.DurationMS = util.Ptr(completedAt.Sub(startedAt).Milliseconds())
	exec.APIRequestsMade = outcome.Counters.APIRequests
	exec.RecordsCreated = outcome.Counters.RecordsCreated
	exec.RecordsUpdated = outcome.Counters.RecordsUpdated
	exec.Log = rec.Log()

	switch outcome.Kind {
	case OutcomeSuccess:
		exec.Status = StatusSuccess
	case OutcomeRateLimited:
		// Partial work that counts: the next interval picks up the
		// remainder.
		exec.Status = StatusRateLimited
		exec.ErrorMessage = util.Ptr(fmt.Sprintf("rate limited, retry after %s", outcome.RetryAfter))
	case OutcomeFailed:
		exec.Status = StatusFailed
		if outcome.Err != nil {
			exec.ErrorMessage = util.Ptr(outcome.Err.Error())
		} else {
			exec.ErrorMessage = util.Ptr("job failed")
		}
	}

	r.complete(ctx, exec)

	r.logger.Infow("Job finished",
		"job", cfg.Name,
		"execution_id", exec.ID,
		"status", exec.Status,
		"duration_ms", *exec.DurationMS,
		"api_requests", exec.APIRequestsMade,
		"records_created", exec.RecordsCreated,
		"records_updated", exec.RecordsUpdated)
	return exec, nil
}

// execute builds and runs the body, converting payload validation
// errors and panics into failed outcomes.
func (r *Runner) execute(ctx context.Context, cfg *JobConfiguration, rec *Recorder) (outcome Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorw("Job body panicked",
				"job", cfg.Name,
				"panic", p)
			outcome = Failed(errors.Newf("job panicked: %v", p), outcome.Counters)
		}
	}()

	body, err := r.factory(cfg)
	if err != nil {
		rec.Logf("payload validation failed: %v", err)
		return Failed(err, Counters{})
	}
	return body.Execute(ctx, rec)
}

// complete writes the terminal record. The write is retried once; if
// it still fails the error is logged and swallowed — the work itself
// is done, and startup recovery will fail the dangling RUNNING row if
// the process dies before a later write succeeds.
func (r *Runner) complete(ctx context.Context, exec *JobExecution) {
	// Shutdown cancellation must not lose the terminal write
	ctx = context.WithoutCancel(ctx)

	err := r.execs.Complete(ctx, exec)
	if err == nil {
		return
	}
	r.logger.Warnw("Completion write failed, retrying once",
		"execution_id", exec.ID,
		"error", err)

	if err := r.execs.Complete(ctx, exec); err != nil {
		r.logger.Errorw("Completion write failed after retry, execution record left RUNNING",
			"execution_id", exec.ID,
			"status", exec.Status,
			"error", err)
	}
}
