package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/riftwatch/smurfwatch/errors"
	smtest "github.com/riftwatch/smurfwatch/internal/testing"
	"github.com/riftwatch/smurfwatch/internal/util"
)

type stubBody struct {
	jobType  JobType
	outcome  Outcome
	executed *int
	logLine  string
	panicMsg string
}

func (b stubBody) Type() JobType { return b.jobType }

func (b stubBody) Execute(ctx context.Context, rec *Recorder) Outcome {
	if b.executed != nil {
		*b.executed++
	}
	if b.logLine != "" {
		rec.Logf("%s", b.logLine)
	}
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	return b.outcome
}

func stubFactory(body Body, err error) BodyFactory {
	return func(cfg *JobConfiguration) (Body, error) {
		if err != nil {
			return nil, err
		}
		return body, nil
	}
}

func runnerFixture(t *testing.T, factory BodyFactory) (*Runner, *ConfigStore, *ExecutionStore, *JobConfiguration) {
	t.Helper()
	conn := smtest.CreateTestDB(t)
	configs := NewConfigStore(conn)
	execs := NewExecutionStore(conn)
	cfg := seedConfig(t, configs, "test-job", JobTypeTrackerUpdater)
	return NewRunner(execs, factory, zap.NewNop().Sugar()), configs, execs, cfg
}

func TestRunSuccess(t *testing.T) {
	executed := 0
	body := stubBody{
		jobType:  JobTypeTrackerUpdater,
		outcome:  Success(Counters{APIRequests: 9, RecordsCreated: 4, RecordsUpdated: 2}),
		executed: &executed,
		logLine:  "refreshed 4 players",
	}
	r, _, execs, cfg := runnerFixture(t, stubFactory(body, nil))

	exec, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if executed != 1 {
		t.Errorf("body executed %d times", executed)
	}
	if exec.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", exec.Status)
	}

	got, err := execs.Get(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusSuccess || got.APIRequestsMade != 9 ||
		got.RecordsCreated != 4 || got.RecordsUpdated != 2 {
		t.Errorf("unexpected persisted execution %+v", got)
	}
	if !strings.Contains(got.Log, "refreshed 4 players") {
		t.Errorf("captured log missing body line: %q", got.Log)
	}
	if got.CompletedAt == nil || got.DurationMS == nil {
		t.Error("completion fields not set")
	}
}

func TestRunRateLimitedIsNotFailure(t *testing.T) {
	body := stubBody{
		jobType: JobTypeTrackerUpdater,
		outcome: RateLimited(45*time.Second, Counters{APIRequests: 20, RecordsUpdated: 7}),
	}
	r, _, execs, cfg := runnerFixture(t, stubFactory(body, nil))

	exec, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusRateLimited {
		t.Fatalf("expected RATE_LIMITED, got %s", exec.Status)
	}
	if exec.Status == StatusFailed {
		t.Fatal("a rate-limited run must never be recorded as FAILED")
	}

	got, err := execs.Get(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Partial work still counts
	if got.APIRequestsMade != 20 || got.RecordsUpdated != 7 {
		t.Errorf("partial counters lost: %+v", got)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "45s") {
		t.Errorf("expected retry-after noted, got %v", got.ErrorMessage)
	}
}

func TestRunFailed(t *testing.T) {
	body := stubBody{
		jobType: JobTypeTrackerUpdater,
		outcome: Failed(errors.New("api key rejected"), Counters{APIRequests: 1}),
	}
	r, _, execs, cfg := runnerFixture(t, stubFactory(body, nil))

	exec, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}

	got, _ := execs.Get(context.Background(), exec.ID)
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "api key rejected") {
		t.Errorf("expected error message persisted, got %v", got.ErrorMessage)
	}
}

func TestRunPayloadValidationFails(t *testing.T) {
	factory := stubFactory(nil, errors.NewValidationError("missing required key %q", "players_per_run"))
	r, _, execs, cfg := runnerFixture(t, factory)

	exec, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusFailed {
		t.Fatalf("expected FAILED on bad payload, got %s", exec.Status)
	}

	got, _ := execs.Get(context.Background(), exec.ID)
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "players_per_run") {
		t.Errorf("error message should name the missing key, got %v", got.ErrorMessage)
	}
	if !strings.Contains(got.Log, "validation failed") {
		t.Errorf("expected validation noted in log, got %q", got.Log)
	}
}

func TestRunBodyPanicBecomesFailed(t *testing.T) {
	body := stubBody{jobType: JobTypeTrackerUpdater, panicMsg: "nil map write"}
	r, _, execs, cfg := runnerFixture(t, stubFactory(body, nil))

	exec, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusFailed {
		t.Fatalf("expected FAILED after panic, got %s", exec.Status)
	}

	got, _ := execs.Get(context.Background(), exec.ID)
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "nil map write") {
		t.Errorf("expected panic captured, got %v", got.ErrorMessage)
	}
}

func TestRunSkipsWhenAlreadyRunning(t *testing.T) {
	body := stubBody{jobType: JobTypeTrackerUpdater, outcome: Success(Counters{})}
	r, _, execs, cfg := runnerFixture(t, stubFactory(body, nil))
	ctx := context.Background()

	// A RUNNING execution left by another worker
	if _, err := execs.Start(ctx, cfg.ID, time.Now()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := r.Run(ctx, cfg)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	list, err := execs.ForConfiguration(ctx, cfg.ID, 10)
	if err != nil {
		t.Fatalf("ForConfiguration: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("skipped run must not create an execution, got %d rows", len(list))
	}
}

func TestCompletionWriteRetriedOnce(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	mock.ExpectExec("UPDATE job_executions").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("UPDATE job_executions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewRunner(NewExecutionStore(conn), nil, zap.NewNop().Sugar())
	now := time.Now()
	exec := &JobExecution{
		ID:                 "exec-1",
		JobConfigurationID: 1,
		Status:             StatusSuccess,
		StartedAt:          now,
		CompletedAt:        &now,
		DurationMS:         util.Ptr(int64(10)),
	}
	r.complete(context.Background(), exec)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected one retry after a failed completion write: %v", err)
	}
}

func TestCompletionWriteFailureSwallowed(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	mock.ExpectExec("UPDATE job_executions").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("UPDATE job_executions").
		WillReturnError(errors.New("database is locked"))

	r := NewRunner(NewExecutionStore(conn), nil, zap.NewNop().Sugar())
	now := time.Now()
	exec := &JobExecution{
		ID:           "exec-1",
		Status:       StatusFailed,
		StartedAt:    now,
		CompletedAt:  &now,
		ErrorMessage: util.Ptr("boom"),
	}

	// Must not panic or propagate: the work is already done
	r.complete(context.Background(), exec)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected exactly two attempts: %v", err)
	}
}
