package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

const videoColumns = `
	id, project_id, photo_id, video_type, source_photo_id, target_photo_id,
	video_path, prompt, duration_seconds, position, status, is_selected, created_at
`

func scanVideo(row interface {
	Scan(dest ...interface{}) error
}, video *models.Video) error {
	return row.Scan(
		&video.ID, &video.ProjectID, &video.PhotoID, &video.VideoType,
		&video.SourcePhotoID, &video.TargetPhotoID, &video.VideoPath,
		&video.Prompt, &video.DurationSeconds, &video.Position,
		&video.Status, &video.IsSelected, &video.CreatedAt,
	)
}

func (db *DB) CreateVideo(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (
			id, project_id, photo_id, video_type, source_photo_id, target_photo_id,
			video_path, prompt, duration_seconds, position, status, is_selected
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		video.ID, video.ProjectID, video.PhotoID, video.VideoType,
		video.SourcePhotoID, video.TargetPhotoID, video.VideoPath,
		video.Prompt, video.DurationSeconds, video.Position,
		video.Status, video.IsSelected,
	).Scan(&video.CreatedAt)
}

func (db *DB) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video := &models.Video{}
	err := scanVideo(db.QueryRowContext(ctx, query, id), video)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return video, nil
}

func (db *DB) GetProjectVideos(ctx context.Context, projectID uuid.UUID) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE project_id = $1 ORDER BY position, created_at`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var video models.Video
		if err := scanVideo(rows, &video); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

// GetReadySceneVideos returns the selected, ready scene clips for a project
// ordered by the owning photo's position. The video's own position column may
// be stale after a reorder, so the join is authoritative.
func (db *DB) GetReadySceneVideos(ctx context.Context, projectID uuid.UUID) ([]models.Video, error) {
	query := `
		SELECT ` + videoColumnsQualified + `
		FROM videos v
		JOIN photos p ON v.photo_id = p.id
		WHERE v.project_id = $1
		  AND v.video_type = $2
		  AND v.status = $3
		  AND v.video_path IS NOT NULL
		  AND v.is_selected = TRUE
		ORDER BY p.position
	`

	rows, err := db.QueryContext(ctx, query, projectID, models.VideoTypeScene, models.VideoStatusReady)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var video models.Video
		if err := scanVideo(rows, &video); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

const videoColumnsQualified = `
	v.id, v.project_id, v.photo_id, v.video_type, v.source_photo_id, v.target_photo_id,
	v.video_path, v.prompt, v.duration_seconds, v.position, v.status, v.is_selected, v.created_at
`

func (db *DB) UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error {
	_, err := db.ExecContext(ctx, `UPDATE videos SET status = $1 WHERE id = $2`, status, id)
	return err
}

// SetVideoReady commits a generated clip: the video gets its path and ready
// status, and becomes the selected take for its photo, deselecting sibling
// scene takes in the same transaction.
func (db *DB) SetVideoReady(ctx context.Context, id uuid.UUID, videoPath string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var photoID *uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT photo_id FROM videos WHERE id = $1`, id).Scan(&photoID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("video not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get video: %w", err)
		}

		if photoID != nil {
			_, err = tx.ExecContext(
				ctx,
				`UPDATE videos SET is_selected = FALSE WHERE photo_id = $1 AND video_type = $2`,
				photoID, models.VideoTypeScene,
			)
			if err != nil {
				return fmt.Errorf("failed to deselect takes: %w", err)
			}
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE videos SET status = $1, video_path = $2, is_selected = TRUE WHERE id = $3`,
			models.VideoStatusReady, videoPath, id,
		)
		if err != nil {
			return fmt.Errorf("failed to finalize video: %w", err)
		}
		return nil
	})
}

// SelectVideo flips the selected take for a photo to the given ready video.
func (db *DB) SelectVideo(ctx context.Context, id uuid.UUID) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var photoID *uuid.UUID
		var status models.VideoStatus
		err := tx.QueryRowContext(
			ctx, `SELECT photo_id, status FROM videos WHERE id = $1`, id,
		).Scan(&photoID, &status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("video not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get video: %w", err)
		}
		if status != models.VideoStatusReady {
			return fmt.Errorf("video is not ready")
		}
		if photoID == nil {
			return fmt.Errorf("video has no photo")
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE videos SET is_selected = FALSE WHERE photo_id = $1 AND video_type = $2`,
			photoID, models.VideoTypeScene,
		)
		if err != nil {
			return fmt.Errorf("failed to deselect takes: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE videos SET is_selected = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to select take: %w", err)
		}
		return nil
	})
}

func (db *DB) FailVideo(ctx context.Context, id uuid.UUID) error {
	return db.UpdateVideoStatus(ctx, id, models.VideoStatusFailed)
}
