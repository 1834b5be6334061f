package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

const jobColumns = `
	id, user_id, project_id, job_type, description, status, error_message,
	created_at, started_at, completed_at
`

func scanJob(row interface {
	Scan(dest ...interface{}) error
}, job *models.Job) error {
	return row.Scan(
		&job.ID, &job.UserID, &job.ProjectID, &job.JobType, &job.Description,
		&job.Status, &job.ErrorMessage, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
}

func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, user_id, project_id, job_type, description, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at, started_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.UserID, job.ProjectID, job.JobType, job.Description, job.Status,
	).Scan(&job.CreatedAt, &job.StartedAt)
}

func (db *DB) ListUserJobs(ctx context.Context, userID uuid.UUID, limit int) ([]models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var job models.Job
		if err := scanJob(rows, &job); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (db *DB) ListProjectJobs(ctx context.Context, projectID uuid.UUID) ([]models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE project_id = $1 ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var job models.Job
		if err := scanJob(rows, &job); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE jobs SET status = $1, completed_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, models.JobStatusCompleted, id)
	return err
}

func (db *DB) FailJob(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `UPDATE jobs SET status = $1, error_message = $2, completed_at = NOW() WHERE id = $3`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, id)
	return err
}

// ResetRunningJobs fails every job still marked running. Called once at boot;
// anything running then belonged to the previous process.
func (db *DB) ResetRunningJobs(ctx context.Context, reason string) (int, error) {
	res, err := db.ExecContext(
		ctx,
		`UPDATE jobs SET status = $1, error_message = $2, completed_at = NOW() WHERE status = $3`,
		models.JobStatusFailed, reason, models.JobStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset running jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// FailStuckJobs fails running jobs older than their class timeout. Export
// jobs get a separate, longer cutoff since the pipeline is long-running by
// design.
func (db *DB) FailStuckJobs(ctx context.Context, defaultCutoff, exportCutoff time.Time, reason string) (int, error) {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE status = $3
		  AND ((job_type <> $4 AND created_at < $5) OR (job_type = $4 AND created_at < $6))
	`

	res, err := db.ExecContext(
		ctx, query,
		models.JobStatusFailed, reason, models.JobStatusRunning,
		models.JobTypeExport, defaultCutoff, exportCutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
