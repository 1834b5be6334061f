package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
	"memoryreel-backend/internal/storage"
)

const defaultSceneDuration = 5.0

// defaultMotionPrompt is used when neither the video row nor the photo
// carries an animation prompt.
const defaultMotionPrompt = "Subtle cinematic motion that brings the photo to life: gentle camera drift and soft ambient movement. Keep every subject recognizable and in place."

// LaunchVideoGeneration generates one scene clip for an existing pending
// video row.
func (w *Worker) LaunchVideoGeneration(userID, projectID, videoID uuid.UUID) {
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   projectID,
		JobType:     models.JobTypeVideoGeneration,
		Description: "Generating scene clip",
		Status:      models.JobStatusRunning,
	}
	w.sup.Launch(videoID, OpVideoGeneration, job, func(ctx context.Context) error {
		return w.generateSceneVideo(ctx, videoID)
	})
}

func (w *Worker) generateSceneVideo(ctx context.Context, videoID uuid.UUID) error {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video.PhotoID == nil {
		w.failVideo(ctx, videoID)
		return fmt.Errorf("video %s has no source photo", videoID)
	}

	photo, err := w.store.GetPhoto(ctx, *video.PhotoID)
	if err != nil {
		w.failVideo(ctx, videoID)
		return err
	}

	imagePath := photo.OriginalPath
	if photo.StyledPath != nil && *photo.StyledPath != "" {
		imagePath = *photo.StyledPath
	}

	prompt := defaultMotionPrompt
	if video.Prompt != nil && *video.Prompt != "" {
		prompt = *video.Prompt
	} else if photo.AnimationPrompt != nil && *photo.AnimationPrompt != "" {
		prompt = *photo.AnimationPrompt
	}

	duration := defaultSceneDuration
	if video.DurationSeconds != nil && *video.DurationSeconds > 0 {
		duration = *video.DurationSeconds
	}

	// generating is written before the provider call so a crash here is
	// detectable by the sweep
	if err := w.store.UpdateVideoStatus(ctx, videoID, models.VideoStatusGenerating); err != nil {
		return fmt.Errorf("failed to mark video generating: %w", err)
	}

	imageData, err := w.blob.Read(ctx, imagePath)
	if err != nil {
		w.failVideo(ctx, videoID)
		return fmt.Errorf("failed to read source image: %w", err)
	}

	var clip []byte
	err = w.limiter.Do(ctx, OpVideoGeneration, func() error {
		return withRetry(ctx, "video generation", func() error {
			var genErr error
			clip, genErr = w.video.GenerateVideo(ctx, imageData, mimeTypeForPath(imagePath), prompt, duration)
			return genErr
		})
	})
	if err != nil {
		w.failVideo(ctx, videoID)
		return err
	}

	clipPath, err := w.blob.Save(ctx, clip, storage.CategoryVideos, video.ProjectID, storage.RandomFilename(".mp4"))
	if err != nil {
		w.failVideo(ctx, videoID)
		return fmt.Errorf("failed to save clip: %w", err)
	}

	if err := w.store.SetVideoReady(ctx, videoID, clipPath); err != nil {
		return fmt.Errorf("failed to finalize video: %w", err)
	}
	return nil
}

func (w *Worker) failVideo(ctx context.Context, videoID uuid.UUID) {
	if err := w.store.FailVideo(ctx, videoID); err != nil {
		log.Printf("[Worker] Failed to mark video %s failed: %v", videoID, err)
	}
}
