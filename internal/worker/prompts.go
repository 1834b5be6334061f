package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

// LaunchPromptGeneration starts the generate-all-prompts fan-out.
func (w *Worker) LaunchPromptGeneration(userID, projectID uuid.UUID) {
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   projectID,
		JobType:     models.JobTypePromptGeneration,
		Description: "Generating animation prompts for all photos",
		Status:      models.JobStatusRunning,
	}
	w.sup.Launch(projectID, OpPromptGeneration, job, func(ctx context.Context) error {
		return w.generateProjectPrompts(ctx, projectID)
	})
}

// LaunchPhotoPrompt regenerates the animation prompt for one photo.
func (w *Worker) LaunchPhotoPrompt(userID, projectID, photoID uuid.UUID) {
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   projectID,
		JobType:     models.JobTypePromptGeneration,
		Description: "Generating animation prompt for photo",
		Status:      models.JobStatusRunning,
	}
	w.sup.Launch(photoID, OpPromptGeneration, job, func(ctx context.Context) error {
		photo, err := w.store.GetPhoto(ctx, photoID)
		if err != nil {
			return err
		}
		project, err := w.store.GetProject(ctx, photo.ProjectID)
		if err != nil {
			return err
		}
		if err := w.store.UpdatePhotoPromptStatus(ctx, photoID, models.PromptStatusGenerating); err != nil {
			return err
		}
		return w.generatePhotoPrompt(ctx, photo, project.Style)
	})
}

func (w *Worker) generateProjectPrompts(ctx context.Context, projectID uuid.UUID) error {
	project, err := w.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	photos, err := w.store.GetProjectPhotos(ctx, projectID)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return nil
	}

	// the whole batch reads as generating before the first provider call
	for _, photo := range photos {
		if err := w.store.UpdatePhotoPromptStatus(ctx, photo.ID, models.PromptStatusGenerating); err != nil {
			return fmt.Errorf("failed to mark photo %s generating: %w", photo.ID, err)
		}
	}

	log.Printf("[Worker] Generating prompts for %d photos in project %s", len(photos), projectID)

	results := make([]error, len(photos))
	var wg sync.WaitGroup
	for i := range photos {
		wg.Add(1)
		go func(i int, photo models.Photo) {
			defer wg.Done()
			results[i] = w.generatePhotoPrompt(ctx, &photo, project.Style)
		}(i, photos[i])
	}
	wg.Wait()

	failed := 0
	for i, res := range results {
		if res != nil {
			failed++
			log.Printf("[Worker] Prompt generation failed for photo %s: %v", photos[i].ID, res)
		}
	}
	if failed > 0 {
		return fmt.Errorf("prompt generation failed for %d of %d photos", failed, len(photos))
	}
	return nil
}

// generatePhotoPrompt runs one gated prompt generation against the styled
// image when present, the original otherwise.
func (w *Worker) generatePhotoPrompt(ctx context.Context, photo *models.Photo, style *string) error {
	imagePath := photo.OriginalPath
	if photo.StyledPath != nil && *photo.StyledPath != "" {
		imagePath = *photo.StyledPath
	}

	imageData, err := w.blob.Read(ctx, imagePath)
	if err != nil {
		w.failPrompt(ctx, photo.ID)
		return fmt.Errorf("failed to read image: %w", err)
	}

	var prompt string
	err = w.limiter.Do(ctx, OpPromptGeneration, func() error {
		return withRetry(ctx, "prompt generation", func() error {
			var genErr error
			prompt, genErr = w.prompter.GeneratePrompt(ctx, imageData, mimeTypeForPath(imagePath), style)
			return genErr
		})
	})
	if err != nil {
		w.failPrompt(ctx, photo.ID)
		return err
	}

	if err := w.store.SetPhotoPrompt(ctx, photo.ID, prompt); err != nil {
		w.failPrompt(ctx, photo.ID)
		return fmt.Errorf("failed to commit prompt: %w", err)
	}
	return nil
}

func (w *Worker) failPrompt(ctx context.Context, photoID uuid.UUID) {
	if err := w.store.UpdatePhotoPromptStatus(ctx, photoID, models.PromptStatusFailed); err != nil {
		log.Printf("[Worker] Failed to mark prompt failed for photo %s: %v", photoID, err)
	}
}
