package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

const exportColumns = `
	id, project_id, file_path, thumbnail_path, status, progress_step,
	progress_detail, progress_percent, error_message, is_main, created_at
`

func scanExport(row interface {
	Scan(dest ...interface{}) error
}, export *models.Export) error {
	return row.Scan(
		&export.ID, &export.ProjectID, &export.FilePath, &export.ThumbnailPath,
		&export.Status, &export.ProgressStep, &export.ProgressDetail,
		&export.ProgressPercent, &export.ErrorMessage, &export.IsMain, &export.CreatedAt,
	)
}

func (db *DB) CreateExport(ctx context.Context, export *models.Export) error {
	query := `
		INSERT INTO exports (id, project_id, status, progress_percent, is_main)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		export.ID, export.ProjectID, export.Status, export.ProgressPercent, export.IsMain,
	).Scan(&export.CreatedAt)
}

func (db *DB) GetExport(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	query := `SELECT ` + exportColumns + ` FROM exports WHERE id = $1`

	export := &models.Export{}
	err := scanExport(db.QueryRowContext(ctx, query, id), export)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("export not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	return export, nil
}

func (db *DB) ListProjectExports(ctx context.Context, projectID uuid.UUID) ([]models.Export, error) {
	query := `SELECT ` + exportColumns + ` FROM exports WHERE project_id = $1 ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var exports []models.Export
	for rows.Next() {
		var export models.Export
		if err := scanExport(rows, &export); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, export)
	}

	return exports, rows.Err()
}

// StartExport moves a pending export to processing. A second start on the
// same export is a no-op reported as an error.
func (db *DB) StartExport(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(
		ctx,
		`UPDATE exports SET status = $1 WHERE id = $2 AND status = $3`,
		models.ExportStatusProcessing, id, models.ExportStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to start export: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("export is not pending")
	}
	return nil
}

func (db *DB) UpdateExportProgress(ctx context.Context, id uuid.UUID, step, detail string, percent int) error {
	query := `
		UPDATE exports
		SET progress_step = $1, progress_detail = $2, progress_percent = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, step, detail, percent, id)
	return err
}

func (db *DB) FinishExport(ctx context.Context, id uuid.UUID, filePath string, thumbnailPath *string) error {
	query := `
		UPDATE exports
		SET status = $1, file_path = $2, thumbnail_path = $3,
		    progress_step = NULL, progress_detail = NULL, progress_percent = 100,
		    error_message = NULL
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.ExportStatusReady, filePath, thumbnailPath, id)
	return err
}

func (db *DB) FailExport(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE exports
		SET status = $1, error_message = $2, progress_step = NULL, progress_detail = NULL
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.ExportStatusFailed, errorMessage, id)
	return err
}

// SetMainExport makes one ready export the project's main export, clearing
// the flag on all others in the same transaction.
func (db *DB) SetMainExport(ctx context.Context, id uuid.UUID) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var projectID uuid.UUID
		var status models.ExportStatus
		err := tx.QueryRowContext(
			ctx, `SELECT project_id, status FROM exports WHERE id = $1`, id,
		).Scan(&projectID, &status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("export not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get export: %w", err)
		}
		if status != models.ExportStatusReady {
			return fmt.Errorf("export is not ready")
		}

		_, err = tx.ExecContext(
			ctx, `UPDATE exports SET is_main = FALSE WHERE project_id = $1`, projectID,
		)
		if err != nil {
			return fmt.Errorf("failed to clear main exports: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE exports SET is_main = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to set main export: %w", err)
		}
		return nil
	})
}

func (db *DB) ListExpiredExports(ctx context.Context, cutoff time.Time) ([]models.Export, error) {
	query := `SELECT ` + exportColumns + ` FROM exports WHERE status = $1 AND created_at < $2`

	rows, err := db.QueryContext(ctx, query, models.ExportStatusReady, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired exports: %w", err)
	}
	defer rows.Close()

	var exports []models.Export
	for rows.Next() {
		var export models.Export
		if err := scanExport(rows, &export); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, export)
	}

	return exports, rows.Err()
}

func (db *DB) DeleteExport(ctx context.Context, id uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM exports WHERE id = $1`, id)
	return err
}
