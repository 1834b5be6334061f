package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

func (db *DB) CreateProject(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, user_id, name, style, style_prompt, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		project.ID, project.UserID, project.Name, project.Style,
		project.StylePrompt, project.Status,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
}

func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		SELECT id, user_id, name, style, style_prompt, status, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.UserID, &project.Name, &project.Style,
		&project.StylePrompt, &project.Status, &project.CreatedAt, &project.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// GetProjectForUser fetches a project only if it belongs to the given user.
// Ownership mismatch reads the same as not-found.
func (db *DB) GetProjectForUser(ctx context.Context, id, userID uuid.UUID) (*models.Project, error) {
	project, err := db.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, fmt.Errorf("project not found")
	}
	return project, nil
}

func (db *DB) ListUserProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	query := `
		SELECT id, user_id, name, style, style_prompt, status, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		err := rows.Scan(
			&project.ID, &project.UserID, &project.Name, &project.Style,
			&project.StylePrompt, &project.Status, &project.CreatedAt, &project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

func (db *DB) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	query := `UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

// UpdateProjectStyle records the chosen style and moves the project to
// processing ahead of the style-transfer fan-out.
func (db *DB) UpdateProjectStyle(ctx context.Context, id uuid.UUID, style string, stylePrompt *string) error {
	query := `
		UPDATE projects
		SET style = $1, style_prompt = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, style, stylePrompt, models.ProjectStatusProcessing, id)
	return err
}

func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

// ResetStalledProjects corrects projects stuck in processing with no photo
// actually mid style-transfer.
func (db *DB) ResetStalledProjects(ctx context.Context) (int, error) {
	query := `
		UPDATE projects SET status = $1, updated_at = NOW()
		WHERE status = $2
		  AND NOT EXISTS (
			SELECT 1 FROM photos
			WHERE photos.project_id = projects.id AND photos.status = $3
		  )
	`
	res, err := db.ExecContext(ctx, query,
		models.ProjectStatusDraft, models.ProjectStatusProcessing, models.PhotoStatusStyling)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stalled projects: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (db *DB) CountProjectPhotos(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRowContext(
		ctx, `SELECT COUNT(*) FROM photos WHERE project_id = $1`, projectID,
	).Scan(&count)
	return count, err
}

func (db *DB) CountPhotosInStatus(ctx context.Context, projectID uuid.UUID, status models.PhotoStatus) (int, error) {
	var count int
	err := db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM photos WHERE project_id = $1 AND status = $2`,
		projectID, status,
	).Scan(&count)
	return count, err
}
