package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
)

// ConfigStore reads and writes job configurations.
type ConfigStore struct {
	db *sql.DB
}

// NewConfigStore creates a config store over an open database.
func NewConfigStore(db *sql.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Create inserts a configuration. The payload defaults to an empty
// object; the name must be unique.
func (s *ConfigStore) Create(ctx context.Context, cfg *JobConfiguration) error {
	if !cfg.Type.Valid() {
		return errors.NewValidationError("unknown job type %q", cfg.Type)
	}
	if cfg.Interval <= 0 {
		return errors.NewValidationError("interval must be positive, got %s", cfg.Interval)
	}
	if len(cfg.Payload) == 0 {
		cfg.Payload = json.RawMessage("{}")
	}

	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_configurations (name, job_type, interval_seconds, enabled, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cfg.Name, string(cfg.Type), int64(cfg.Interval/time.Second), cfg.Enabled,
		string(cfg.Payload), formatTime(cfg.CreatedAt), formatTime(cfg.UpdatedAt))
	if err != nil {
		return errors.Wrapf(err, "failed to create job configuration %q", cfg.Name)
	}
	cfg.ID, err = res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read inserted configuration id")
	}
	return nil
}

// Get fetches one configuration by ID.
func (s *ConfigStore) Get(ctx context.Context, id int64) (*JobConfiguration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, job_type, interval_seconds, enabled, payload, created_at, updated_at
		FROM job_configurations WHERE id = ?`, id)
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "job configuration %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job configuration %d", id)
	}
	return cfg, nil
}

// GetByName fetches one configuration by its unique name.
func (s *ConfigStore) GetByName(ctx context.Context, name string) (*JobConfiguration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, job_type, interval_seconds, enabled, payload, created_at, updated_at
		FROM job_configurations WHERE name = ?`, name)
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "job configuration %q", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job configuration %q", name)
	}
	return cfg, nil
}

// Enabled lists all enabled configurations. The scheduler reloads
// this every tick so enable/disable takes effect without restart.
func (s *ConfigStore) Enabled(ctx context.Context) ([]*JobConfiguration, error) {
	return s.list(ctx, `
		SELECT id, name, job_type, interval_seconds, enabled, payload, created_at, updated_at
		FROM job_configurations WHERE enabled = 1 ORDER BY id`)
}

// All lists every configuration.
func (s *ConfigStore) All(ctx context.Context) ([]*JobConfiguration, error) {
	return s.list(ctx, `
		SELECT id, name, job_type, interval_seconds, enabled, payload, created_at, updated_at
		FROM job_configurations ORDER BY id`)
}

func (s *ConfigStore) list(ctx context.Context, query string) ([]*JobConfiguration, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list job configurations")
	}
	defer rows.Close()

	var configs []*JobConfiguration
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job configuration row")
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// SetEnabled flips a configuration's active flag.
func (s *ConfigStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_configurations SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, formatTime(time.Now()), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update job configuration %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job configuration %d", id)
	}
	return nil
}

// UpdateSchedule changes a configuration's interval and payload.
func (s *ConfigStore) UpdateSchedule(ctx context.Context, id int64, interval time.Duration, payload json.RawMessage) error {
	if interval <= 0 {
		return errors.NewValidationError("interval must be positive, got %s", interval)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_configurations SET interval_seconds = ?, payload = ?, updated_at = ? WHERE id = ?`,
		int64(interval/time.Second), string(payload), formatTime(time.Now()), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update job configuration %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job configuration %d", id)
	}
	return nil
}

// Delete removes a configuration; its executions cascade away.
func (s *ConfigStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_configurations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete job configuration %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job configuration %d", id)
	}
	return nil
}

func scanConfig(row interface {
	Scan(dest ...interface{}) error
}) (*JobConfiguration, error) {
	var (
		cfg             JobConfiguration
		jobType         string
		intervalSeconds int64
		payload         string
		createdAt       string
		updatedAt       string
	)
	err := row.Scan(&cfg.ID, &cfg.Name, &jobType, &intervalSeconds,
		&cfg.Enabled, &payload, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	cfg.Type = JobType(jobType)
	cfg.Interval = time.Duration(intervalSeconds) * time.Second
	cfg.Payload = json.RawMessage(payload)
	cfg.CreatedAt = parseTime(createdAt)
	cfg.UpdatedAt = parseTime(updatedAt)
	return &cfg, nil
}
