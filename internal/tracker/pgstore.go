package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantthrive/pulse/model"
)

// PgProgressStore is a PostgreSQL-backed ProgressStore using pgx/v5. Stage
// records are stored as a JSONB payload alongside the scalar columns used
// for filtering.
type PgProgressStore struct {
	pool *pgxpool.Pool
}

// NewPgProgressStore creates a new PostgreSQL progress store.
func NewPgProgressStore(pool *pgxpool.Pool) *PgProgressStore {
	return &PgProgressStore{pool: pool}
}

// Create inserts a new progress record.
func (s *PgProgressStore) Create(ctx context.Context, record model.ProgressRecord) error {
	stagesJSON, err := json.Marshal(record.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO progress_records (
			application_id, template_id, current_stage, current_status,
			overall_progress, created_at, updated_at, estimated_completion,
			stages, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (application_id) DO NOTHING`,
		record.ApplicationID, record.TemplateID, record.CurrentStage, record.CurrentStatus,
		record.OverallProgress, record.CreatedAt, record.UpdatedAt, record.EstimatedCompletion,
		stagesJSON, record.Version,
	)
	if err != nil {
		return fmt.Errorf("insert progress record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewAlreadyInitializedError(record.ApplicationID)
	}
	return nil
}

// Get retrieves the progress record for an application.
func (s *PgProgressStore) Get(ctx context.Context, applicationID string) (model.ProgressRecord, error) {
	var record model.ProgressRecord
	var stagesJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT application_id, template_id, current_stage, current_status,
		       overall_progress, created_at, updated_at, estimated_completion,
		       stages, version
		FROM progress_records
		WHERE application_id = $1`,
		applicationID,
	).Scan(
		&record.ApplicationID, &record.TemplateID, &record.CurrentStage, &record.CurrentStatus,
		&record.OverallProgress, &record.CreatedAt, &record.UpdatedAt, &record.EstimatedCompletion,
		&stagesJSON, &record.Version,
	)
	if err == pgx.ErrNoRows {
		return model.ProgressRecord{}, model.NewNotFoundError(
			fmt.Sprintf("progress for application %q not found", applicationID),
		)
	}
	if err != nil {
		return model.ProgressRecord{}, fmt.Errorf("query progress record: %w", err)
	}

	if err := json.Unmarshal(stagesJSON, &record.Stages); err != nil {
		return model.ProgressRecord{}, fmt.Errorf("unmarshal stages: %w", err)
	}

	return record, nil
}

// Update persists an updated record with optimistic locking.
func (s *PgProgressStore) Update(ctx context.Context, record model.ProgressRecord) error {
	stagesJSON, err := json.Marshal(record.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE progress_records SET
			current_stage = $1,
			current_status = $2,
			overall_progress = $3,
			updated_at = $4,
			stages = $5,
			version = $6
		WHERE application_id = $7 AND version = $8`,
		record.CurrentStage, record.CurrentStatus, record.OverallProgress,
		time.Now().UTC(), stagesJSON, record.Version+1,
		record.ApplicationID, record.Version,
	)
	if err != nil {
		return fmt.Errorf("update progress record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("progress for application %q version conflict (expected %d)",
				record.ApplicationID, record.Version),
		)
	}
	return nil
}

// Delete removes the progress record for an application.
func (s *PgProgressStore) Delete(ctx context.Context, applicationID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM progress_records
		WHERE application_id = $1`,
		applicationID,
	)
	if err != nil {
		return fmt.Errorf("delete progress record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("progress for application %q not found", applicationID),
		)
	}
	return nil
}

// HealthCheck verifies database connectivity.
func (s *PgProgressStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
