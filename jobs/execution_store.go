package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/riftwatch/smurfwatch/errors"
)

// interruptedMessage is written to executions found RUNNING at
// startup: the previous process died mid-run.
const interruptedMessage = "interrupted by restart"

// ExecutionStore reads and writes job execution records.
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore creates an execution store over an open database.
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

const executionColumns = `id, job_configuration_id, status, started_at, completed_at,
	duration_ms, api_requests_made, records_created, records_updated,
	error_message, log, created_at, updated_at`

// Start inserts a new RUNNING execution for a configuration and
// returns it.
func (s *ExecutionStore) Start(ctx context.Context, configID int64, at time.Time) (*JobExecution, error) {
	exec := &JobExecution{
		ID:                 uuid.New().String(),
		JobConfigurationID: configID,
		Status:             StatusRunning,
		StartedAt:          at,
		CreatedAt:          at,
		UpdatedAt:          at,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_executions (id, job_configuration_id, status, started_at,
			api_requests_made, records_created, records_updated, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?)`,
		exec.ID, configID, string(StatusRunning), formatTime(at),
		formatTime(at), formatTime(at))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start execution for configuration %d", configID)
	}
	return exec, nil
}

// Complete moves an execution to a terminal status in a single write,
// recording its counters, duration, captured log and error message.
func (s *ExecutionStore) Complete(ctx context.Context, exec *JobExecution) error {
	if !exec.Status.Terminal() {
		return errors.NewValidationError("cannot complete execution %s with non-terminal status %s",
			exec.ID, exec.Status)
	}

	var errMsg interface{}
	if exec.ErrorMessage != nil {
		errMsg = *exec.ErrorMessage
	}
	var completedAt interface{}
	if exec.CompletedAt != nil {
		completedAt = formatTime(*exec.CompletedAt)
	}
	var durationMS interface{}
	if exec.DurationMS != nil {
		durationMS = *exec.DurationMS
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE job_executions
		SET status = ?, completed_at = ?, duration_ms = ?,
			api_requests_made = ?, records_created = ?, records_updated = ?,
			error_message = ?, log = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(exec.Status), completedAt, durationMS,
		exec.APIRequestsMade, exec.RecordsCreated, exec.RecordsUpdated,
		errMsg, exec.Log, formatTime(time.Now()),
		exec.ID, string(StatusRunning))
	if err != nil {
		return errors.Wrapf(err, "failed to complete execution %s", exec.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf("execution %s is not running", exec.ID)
	}
	return nil
}

// HasRunning reports whether a configuration has an execution in
// RUNNING state. The runner's advisory check before starting.
func (s *ExecutionStore) HasRunning(ctx context.Context, configID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM job_executions
		WHERE job_configuration_id = ? AND status = ?
		LIMIT 1`, configID, string(StatusRunning)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to check running execution for configuration %d", configID)
	}
	return true, nil
}

// MarkInterrupted fails every RUNNING execution, called once at
// startup before the scheduler begins. A RUNNING row at that point
// belongs to a process that no longer exists.
func (s *ExecutionStore) MarkInterrupted(ctx context.Context) (int64, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_executions
		SET status = ?, completed_at = ?, error_message = ?, updated_at = ?
		WHERE status = ?`,
		string(StatusFailed), formatTime(now), interruptedMessage, formatTime(now),
		string(StatusRunning))
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark interrupted executions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count interrupted executions")
	}
	return n, nil
}

// Get fetches one execution by ID.
func (s *ExecutionStore) Get(ctx context.Context, id string) (*JobExecution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM job_executions WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "execution %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get execution %s", id)
	}
	return exec, nil
}

// ForConfiguration lists a configuration's executions, most recent
// start first.
func (s *ExecutionStore) ForConfiguration(ctx context.Context, configID int64, limit int) ([]*JobExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+executionColumns+` FROM job_executions
		WHERE job_configuration_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, configID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list executions for configuration %d", configID)
	}
	defer rows.Close()

	var execs []*JobExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan execution row")
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

func scanExecution(row interface {
	Scan(dest ...interface{}) error
}) (*JobExecution, error) {
	var (
		exec        JobExecution
		status      string
		startedAt   string
		completedAt sql.NullString
		durationMS  sql.NullInt64
		errMsg      sql.NullString
		log         sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&exec.ID, &exec.JobConfigurationID, &status, &startedAt,
		&completedAt, &durationMS, &exec.APIRequestsMade,
		&exec.RecordsCreated, &exec.RecordsUpdated,
		&errMsg, &log, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	exec.Status = Status(status)
	exec.StartedAt = parseTime(startedAt)
	exec.CompletedAt = parseTimePtr(completedAt)
	if durationMS.Valid {
		exec.DurationMS = &durationMS.Int64
	}
	if errMsg.Valid {
		exec.ErrorMessage = &errMsg.String
	}
	exec.Log = log.String
	exec.CreatedAt = parseTime(createdAt)
	exec.UpdatedAt = parseTime(updatedAt)
	return &exec, nil
}
