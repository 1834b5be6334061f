package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

const photoColumns = `
	id, project_id, original_path, styled_path, animation_prompt,
	prompt_status, position, status, created_at
`

func scanPhoto(row interface {
	Scan(dest ...interface{}) error
}, photo *models.Photo) error {
	return row.Scan(
		&photo.ID, &photo.ProjectID, &photo.OriginalPath, &photo.StyledPath,
		&photo.AnimationPrompt, &photo.PromptStatus, &photo.Position,
		&photo.Status, &photo.CreatedAt,
	)
}

func (db *DB) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (
			id, project_id, original_path, prompt_status, position, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		photo.ID, photo.ProjectID, photo.OriginalPath, photo.PromptStatus,
		photo.Position, photo.Status,
	).Scan(&photo.CreatedAt)
}

func (db *DB) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`

	photo := &models.Photo{}
	err := scanPhoto(db.QueryRowContext(ctx, query, id), photo)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("photo not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	return photo, nil
}

func (db *DB) GetProjectPhotos(ctx context.Context, projectID uuid.UUID) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE project_id = $1 ORDER BY position`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var photo models.Photo
		if err := scanPhoto(rows, &photo); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}

	return photos, rows.Err()
}

// NextPhotoPosition returns the position for a newly uploaded photo.
func (db *DB) NextPhotoPosition(ctx context.Context, projectID uuid.UUID) (int, error) {
	var next int
	err := db.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM photos WHERE project_id = $1`,
		projectID,
	).Scan(&next)
	return next, err
}

func (db *DB) UpdatePhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus) error {
	_, err := db.ExecContext(ctx, `UPDATE photos SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (db *DB) UpdatePhotoPromptStatus(ctx context.Context, id uuid.UUID, status models.PromptStatus) error {
	_, err := db.ExecContext(ctx, `UPDATE photos SET prompt_status = $1 WHERE id = $2`, status, id)
	return err
}

func (db *DB) SetPhotoPrompt(ctx context.Context, id uuid.UUID, prompt string) error {
	query := `UPDATE photos SET animation_prompt = $1, prompt_status = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, prompt, models.PromptStatusCompleted, id)
	return err
}

// MarkProjectPhotosStyling flips every photo in the project to styling in one
// transaction and returns them ordered by position. Status polls issued after
// this commit already see the whole batch in flight.
func (db *DB) MarkProjectPhotosStyling(ctx context.Context, projectID uuid.UUID) ([]models.Photo, error) {
	var photos []models.Photo

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + photoColumns + ` FROM photos WHERE project_id = $1 ORDER BY position FOR UPDATE`
		rows, err := tx.QueryContext(ctx, query, projectID)
		if err != nil {
			return fmt.Errorf("failed to query photos: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var photo models.Photo
			if err := scanPhoto(rows, &photo); err != nil {
				return fmt.Errorf("failed to scan photo: %w", err)
			}
			photos = append(photos, photo)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(photos) == 0 {
			return nil
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE photos SET status = $1 WHERE project_id = $2`,
			models.PhotoStatusStyling, projectID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark photos styling: %w", err)
		}

		for i := range photos {
			photos[i].Status = models.PhotoStatusStyling
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (db *DB) GetStylingPhotos(ctx context.Context) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE status = $1`

	rows, err := db.QueryContext(ctx, query, models.PhotoStatusStyling)
	if err != nil {
		return nil, fmt.Errorf("failed to query styling photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var photo models.Photo
		if err := scanPhoto(rows, &photo); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}

	return photos, rows.Err()
}

// SaveStyledResult records a completed style transfer: a new variant is
// inserted as the selected one, prior variants are deselected, and the photo
// mirrors the new styled path. All in one transaction so a poll never sees
// two selected variants.
func (db *DB) SaveStyledResult(ctx context.Context, photoID uuid.UUID, styledPath, style string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE styled_variants SET is_selected = FALSE WHERE photo_id = $1`,
			photoID,
		)
		if err != nil {
			return fmt.Errorf("failed to deselect variants: %w", err)
		}

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO styled_variants (id, photo_id, styled_path, style, is_selected)
			 VALUES ($1, $2, $3, $4, TRUE)`,
			uuid.New(), photoID, styledPath, style,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variant: %w", err)
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE photos SET styled_path = $1, status = $2 WHERE id = $3`,
			styledPath, models.PhotoStatusStyled, photoID,
		)
		if err != nil {
			return fmt.Errorf("failed to update photo: %w", err)
		}
		return nil
	})
}

func (db *DB) GetPhotoVariants(ctx context.Context, photoID uuid.UUID) ([]models.StyledVariant, error) {
	query := `
		SELECT id, photo_id, styled_path, style, is_selected, created_at
		FROM styled_variants
		WHERE photo_id = $1
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []models.StyledVariant
	for rows.Next() {
		var v models.StyledVariant
		err := rows.Scan(&v.ID, &v.PhotoID, &v.StyledPath, &v.Style, &v.IsSelected, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	return variants, rows.Err()
}

// SelectVariant makes one historical variant the photo's active style output.
// Deselect-all and select-one happen in the same transaction.
func (db *DB) SelectVariant(ctx context.Context, variantID uuid.UUID) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var photoID uuid.UUID
		var styledPath string
		err := tx.QueryRowContext(
			ctx,
			`SELECT photo_id, styled_path FROM styled_variants WHERE id = $1`,
			variantID,
		).Scan(&photoID, &styledPath)
		if err == sql.ErrNoRows {
			return fmt.Errorf("variant not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get variant: %w", err)
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE styled_variants SET is_selected = FALSE WHERE photo_id = $1`,
			photoID,
		)
		if err != nil {
			return fmt.Errorf("failed to deselect variants: %w", err)
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE styled_variants SET is_selected = TRUE WHERE id = $1`,
			variantID,
		)
		if err != nil {
			return fmt.Errorf("failed to select variant: %w", err)
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE photos SET styled_path = $1 WHERE id = $2`,
			styledPath, photoID,
		)
		if err != nil {
			return fmt.Errorf("failed to update photo: %w", err)
		}
		return nil
	})
}

// ReorderPhotos rewrites photo positions from the given assignments and
// propagates the new positions to video rows tied to those photos.
func (db *DB) ReorderPhotos(ctx context.Context, projectID uuid.UUID, assignments []models.PhotoPosition) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		// shift out of the way first so the per-project unique index on
		// position never trips mid-rewrite
		_, err := tx.ExecContext(
			ctx,
			`UPDATE photos SET position = position + 1000000 WHERE project_id = $1`,
			projectID,
		)
		if err != nil {
			return fmt.Errorf("failed to stage reorder: %w", err)
		}

		for _, a := range assignments {
			res, err := tx.ExecContext(
				ctx,
				`UPDATE photos SET position = $1 WHERE id = $2 AND project_id = $3`,
				a.Position, a.PhotoID, projectID,
			)
			if err != nil {
				return fmt.Errorf("failed to reorder photo %s: %w", a.PhotoID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("photo not found")
			}
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE videos v SET position = p.position
			 FROM photos p
			 WHERE v.photo_id = p.id AND p.project_id = $1`,
			projectID,
		)
		if err != nil {
			return fmt.Errorf("failed to propagate positions to videos: %w", err)
		}
		return nil
	})
}

func (db *DB) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	return err
}
