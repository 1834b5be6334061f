package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
	"memoryreel-backend/internal/services"
	"memoryreel-backend/internal/storage"
)

// LaunchProjectStylize starts the stylize-all fan-out in the background.
func (w *Worker) LaunchProjectStylize(userID, projectID uuid.UUID, style string, customPrompt *string) {
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   projectID,
		JobType:     models.JobTypeStyleTransfer,
		Description: fmt.Sprintf("Applying %s style to all photos", style),
		Status:      models.JobStatusRunning,
	}
	w.sup.Launch(projectID, OpStyleTransfer, job, func(ctx context.Context) error {
		return w.stylizeProject(ctx, projectID, style, customPrompt)
	})
}

// LaunchPhotoStylize restyles a single photo (regenerate, or recovery resume).
func (w *Worker) LaunchPhotoStylize(userID, projectID, photoID uuid.UUID, style string, customPrompt *string) {
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   projectID,
		JobType:     models.JobTypeStyleTransfer,
		Description: fmt.Sprintf("Applying %s style to photo", style),
		Status:      models.JobStatusRunning,
	}
	w.sup.Launch(photoID, OpStyleTransfer, job, func(ctx context.Context) error {
		return w.stylizeSinglePhoto(ctx, photoID, style, customPrompt)
	})
}

// stylizeProject is the fan-out coordinator: every photo is marked styling in
// one transaction before the first provider call, then each photo runs as an
// independent gated task. One photo's failure reverts that photo only; the
// aggregate error just colors the job record.
func (w *Worker) stylizeProject(ctx context.Context, projectID uuid.UUID, style string, customPrompt *string) error {
	stylePrompt, err := services.ResolveStylePrompt(style, customPrompt)
	if err != nil {
		return err
	}

	photos, err := w.store.MarkProjectPhotosStyling(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to mark photos styling: %w", err)
	}
	if len(photos) == 0 {
		return w.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusDraft)
	}

	log.Printf("[Worker] Styling %d photos in project %s with style %s", len(photos), projectID, style)

	results := make([]error, len(photos))
	var wg sync.WaitGroup
	for i := range photos {
		wg.Add(1)
		go func(i int, photo models.Photo) {
			defer wg.Done()
			results[i] = w.stylizePhoto(ctx, &photo, style, stylePrompt)
		}(i, photos[i])
	}
	wg.Wait()

	failed := 0
	for i, res := range results {
		if res != nil {
			failed++
			log.Printf("[Worker] Style transfer failed for photo %s: %v", photos[i].ID, res)
		}
	}

	if err := w.recomputeProjectStatus(ctx, projectID); err != nil {
		return fmt.Errorf("failed to recompute project status: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("style transfer failed for %d of %d photos", failed, len(photos))
	}
	return nil
}

func (w *Worker) stylizeSinglePhoto(ctx context.Context, photoID uuid.UUID, style string, customPrompt *string) error {
	stylePrompt, err := services.ResolveStylePrompt(style, customPrompt)
	if err != nil {
		return err
	}

	photo, err := w.store.GetPhoto(ctx, photoID)
	if err != nil {
		return err
	}

	if err := w.store.UpdatePhotoStatus(ctx, photoID, models.PhotoStatusStyling); err != nil {
		return fmt.Errorf("failed to mark photo styling: %w", err)
	}

	styleErr := w.stylizePhoto(ctx, photo, style, stylePrompt)

	if err := w.recomputeProjectStatus(ctx, photo.ProjectID); err != nil {
		log.Printf("[Worker] Failed to recompute status for project %s: %v", photo.ProjectID, err)
	}
	return styleErr
}

// stylizePhoto runs one gated style transfer. The photo is already marked
// styling; any failure reverts it to uploaded so the user can retry.
func (w *Worker) stylizePhoto(ctx context.Context, photo *models.Photo, style, stylePrompt string) error {
	imageData, err := w.blob.Read(ctx, photo.OriginalPath)
	if err != nil {
		w.revertPhoto(ctx, photo.ID)
		return fmt.Errorf("failed to read original: %w", err)
	}

	var styled []byte
	err = w.limiter.Do(ctx, OpStyleTransfer, func() error {
		return withRetry(ctx, "style transfer", func() error {
			var genErr error
			styled, genErr = w.styler.ApplyStyle(ctx, imageData, mimeTypeForPath(photo.OriginalPath), stylePrompt)
			return genErr
		})
	})
	if err != nil {
		w.revertPhoto(ctx, photo.ID)
		return err
	}

	styledPath, err := w.blob.Save(ctx, styled, storage.CategoryStyled, photo.ProjectID, storage.RandomFilename(".png"))
	if err != nil {
		w.revertPhoto(ctx, photo.ID)
		return fmt.Errorf("failed to save styled image: %w", err)
	}

	if err := w.store.SaveStyledResult(ctx, photo.ID, styledPath, style); err != nil {
		w.revertPhoto(ctx, photo.ID)
		return fmt.Errorf("failed to commit styled result: %w", err)
	}
	return nil
}

func (w *Worker) revertPhoto(ctx context.Context, photoID uuid.UUID) {
	if err := w.store.UpdatePhotoStatus(ctx, photoID, models.PhotoStatusUploaded); err != nil {
		log.Printf("[Worker] Failed to revert photo %s to uploaded: %v", photoID, err)
	}
}

// recomputeProjectStatus derives the project status from its photos: any
// photo still styling keeps the project processing, otherwise it returns to
// draft.
func (w *Worker) recomputeProjectStatus(ctx context.Context, projectID uuid.UUID) error {
	styling, err := w.store.CountPhotosInStatus(ctx, projectID, models.PhotoStatusStyling)
	if err != nil {
		return err
	}
	status := models.ProjectStatusDraft
	if styling > 0 {
		status = models.ProjectStatusProcessing
	}
	return w.store.UpdateProjectStatus(ctx, projectID, status)
}
