package worker

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
	"memoryreel-backend/internal/services"
	"memoryreel-backend/internal/storage"
)

const (
	stepCollecting    = "collecting"
	stepTransitions   = "transitions"
	stepConcatenating = "concatenating"
	stepThumbnail     = "thumbnail"

	transitionDuration = 5.0
	thumbnailMaxSize   = 1280

	// transitionPrompt is fixed for every pair; the boundary frames carry
	// the scene-specific content.
	transitionPrompt = "Smooth cinematic transition morphing gently from the first frame to the second: soft light, gradual movement, preserving the mood and color palette of both scenes."
)

// Transition-phase progress interpolation: the phase spans transitionPhaseLo
// to transitionPhaseHi percent, each pair contributing unitsPerPair units of
// which frame extraction is the smaller slice.
const (
	transitionPhaseLo = 10
	transitionPhaseHi = 75
	unitsPerPair      = 10
	extractionUnits   = 3
)

// LaunchExport runs the export pipeline for an existing pending export row.
func (w *Worker) LaunchExport(userID, projectID, exportID uuid.UUID, includeTransitions bool) {
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   projectID,
		JobType:     models.JobTypeExport,
		Description: "Exporting memory reel",
		Status:      models.JobStatusRunning,
	}
	w.sup.Launch(exportID, OpExport, job, func(ctx context.Context) error {
		return w.runExport(ctx, exportID, includeTransitions)
	})
}

func (w *Worker) runExport(ctx context.Context, exportID uuid.UUID, includeTransitions bool) error {
	export, err := w.store.GetExport(ctx, exportID)
	if err != nil {
		return err
	}

	err = w.limiter.Do(ctx, OpExport, func() error {
		return w.exportPipeline(ctx, export, includeTransitions)
	})
	if err != nil {
		if failErr := w.store.FailExport(ctx, exportID, err.Error()); failErr != nil {
			log.Printf("[Export] Failed to persist export failure %s: %v", exportID, failErr)
		}
		return err
	}
	return nil
}

// exportPipeline: collect → transitions (best-effort per pair) → interleave +
// concatenate → thumbnail (best-effort) → finalize. Progress is persisted at
// every phase boundary so polls see live state.
func (w *Worker) exportPipeline(ctx context.Context, export *models.Export, includeTransitions bool) error {
	if err := w.store.StartExport(ctx, export.ID); err != nil {
		return err
	}
	w.progress(ctx, export.ID, stepCollecting, "Collecting ready clips", 5)

	videos, err := w.store.GetReadySceneVideos(ctx, export.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to collect clips: %w", err)
	}
	if len(videos) == 0 {
		return fmt.Errorf("No ready videos found")
	}

	workDir, err := w.media.TempDir("export-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	scenePaths := make([]string, len(videos))
	var cleanups []func()
	defer func() {
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()
	for i, video := range videos {
		localPath, cleanup, err := w.blob.LocalPath(ctx, *video.VideoPath)
		if err != nil {
			return fmt.Errorf("failed to materialize clip %d: %w", i, err)
		}
		cleanups = append(cleanups, cleanup)
		scenePaths[i] = localPath
	}

	transitions := map[int]string{}
	if includeTransitions && len(videos) > 1 {
		transitions = w.generateTransitions(ctx, export, videos, scenePaths, workDir)
	}

	ordered := interleave(scenePaths, transitions)
	w.progress(ctx, export.ID, stepConcatenating, fmt.Sprintf("Joining %d clips", len(ordered)), 80)

	outputPath := filepath.Join(workDir, fmt.Sprintf("export_%s.mp4", export.ID))
	if err := w.media.Concatenate(ctx, ordered, outputPath); err != nil {
		return fmt.Errorf("failed to concatenate clips: %w", err)
	}

	outputData, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("failed to read concatenated output: %w", err)
	}

	finalPath, err := w.blob.Save(ctx, outputData, storage.CategoryExports, export.ProjectID,
		fmt.Sprintf("export_%s.mp4", export.ID))
	if err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}

	w.progress(ctx, export.ID, stepThumbnail, "Rendering thumbnail", 90)
	thumbnailPath := w.generateThumbnail(ctx, export, outputPath)

	if err := w.store.FinishExport(ctx, export.ID, finalPath, thumbnailPath); err != nil {
		return fmt.Errorf("failed to finalize export: %w", err)
	}

	if err := w.store.UpdateProjectStatus(ctx, export.ProjectID, models.ProjectStatusComplete); err != nil {
		log.Printf("[Export] Failed to mark project %s complete: %v", export.ProjectID, err)
	}

	w.notifier.Publish(ctx, export.ProjectID, "export_completed", map[string]interface{}{
		"export_id": export.ID.String(),
		"url":       w.blob.URL(finalPath),
	})

	log.Printf("[Export] Export %s ready (%d scenes, %d transitions)", export.ID, len(videos), len(transitions))
	return nil
}

// generateTransitions attempts one AI transition per adjacent scene pair.
// Every pair is independent and best-effort: a failed pair logs, advances
// progress, and falls back to a hard cut at that boundary.
func (w *Worker) generateTransitions(ctx context.Context, export *models.Export, videos []models.Video, scenePaths []string, workDir string) map[int]string {
	pairs := len(scenePaths) - 1
	totalUnits := pairs * unitsPerPair

	transitions := make(map[int]string, pairs)
	var mu sync.Mutex
	doneUnits := 0

	tick := func(units int, detail string) {
		mu.Lock()
		doneUnits += units
		percent := transitionPhaseLo + (transitionPhaseHi-transitionPhaseLo)*doneUnits/totalUnits
		mu.Unlock()
		w.progress(ctx, export.ID, stepTransitions, detail, percent)
	}

	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			localPath, err := w.generateTransition(ctx, export, videos[i], videos[i+1],
				scenePaths[i], scenePaths[i+1], workDir, i, tick)
			if err != nil {
				log.Printf("[Export] Transition %d failed, falling back to hard cut: %v", i, err)
				return
			}

			mu.Lock()
			transitions[i] = localPath
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	return transitions
}

func (w *Worker) generateTransition(ctx context.Context, export *models.Export, from, to models.Video, fromPath, toPath, workDir string, index int, tick func(units int, detail string)) (string, error) {
	ticked := 0
	defer func() {
		if ticked < unitsPerPair {
			tick(unitsPerPair-ticked, fmt.Sprintf("Transition %d finished", index+1))
		}
	}()

	lastFrame, err := w.media.ExtractFrame(ctx, fromPath, services.FrameLast)
	if err != nil {
		return "", fmt.Errorf("failed to extract last frame: %w", err)
	}
	firstFrame, err := w.media.ExtractFrame(ctx, toPath, services.FrameFirst)
	if err != nil {
		return "", fmt.Errorf("failed to extract first frame: %w", err)
	}
	ticked += extractionUnits
	tick(extractionUnits, fmt.Sprintf("Generating transition %d", index+1))

	var clip []byte
	err = w.limiter.Do(ctx, OpVideoGeneration, func() error {
		return withRetry(ctx, "transition generation", func() error {
			var genErr error
			clip, genErr = w.video.GenerateTransition(ctx, lastFrame, firstFrame, transitionPrompt, transitionDuration)
			return genErr
		})
	})
	if err != nil {
		return "", err
	}

	blobPath, err := w.blob.Save(ctx, clip, storage.CategoryVideos, export.ProjectID, storage.RandomFilename(".mp4"))
	if err != nil {
		return "", fmt.Errorf("failed to save transition clip: %w", err)
	}

	// record the transition so it appears in the project's video list;
	// losing the row doesn't lose the export
	row := &models.Video{
		ID:              uuid.New(),
		ProjectID:       export.ProjectID,
		VideoType:       models.VideoTypeTransition,
		SourcePhotoID:   from.PhotoID,
		TargetPhotoID:   to.PhotoID,
		VideoPath:       strPtr(blobPath),
		Prompt:          strPtr(transitionPrompt),
		DurationSeconds: float64Ptr(transitionDuration),
		Status:          models.VideoStatusReady,
		IsSelected:      true,
	}
	if err := w.store.CreateVideo(ctx, row); err != nil {
		log.Printf("[Export] Failed to record transition row for pair %d: %v", index, err)
	}

	localPath := filepath.Join(workDir, fmt.Sprintf("transition_%d.mp4", index))
	if err := os.WriteFile(localPath, clip, 0o644); err != nil {
		return "", fmt.Errorf("failed to write transition to work dir: %w", err)
	}
	return localPath, nil
}

// generateThumbnail is best-effort: any failure logs and the export ships
// without a thumbnail.
func (w *Worker) generateThumbnail(ctx context.Context, export *models.Export, outputPath string) *string {
	frame, err := w.media.ExtractFrame(ctx, outputPath, services.FrameFirst)
	if err != nil {
		log.Printf("[Export] Thumbnail frame extraction failed for %s: %v", export.ID, err)
		return nil
	}

	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		log.Printf("[Export] Thumbnail decode failed for %s: %v", export.ID, err)
		return nil
	}

	thumb := imaging.Fit(img, thumbnailMaxSize, thumbnailMaxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		log.Printf("[Export] Thumbnail encode failed for %s: %v", export.ID, err)
		return nil
	}

	thumbPath, err := w.blob.Save(ctx, buf.Bytes(), storage.CategoryExports, export.ProjectID,
		fmt.Sprintf("thumb_%s.jpg", export.ID))
	if err != nil {
		log.Printf("[Export] Thumbnail save failed for %s: %v", export.ID, err)
		return nil
	}
	return &thumbPath
}

func (w *Worker) progress(ctx context.Context, exportID uuid.UUID, step, detail string, percent int) {
	if err := w.store.UpdateExportProgress(ctx, exportID, step, detail, percent); err != nil {
		log.Printf("[Export] Failed to persist progress for %s: %v", exportID, err)
	}
}

// interleave orders scene clips with their successful transitions:
// scene₀, transition₀, scene₁, transition₁, … A missing transition is a hard
// cut; the scene sequence is never altered.
func interleave(scenePaths []string, transitions map[int]string) []string {
	if len(scenePaths) == 0 {
		return nil
	}
	out := make([]string, 0, len(scenePaths)*2-1)
	for i, scene := range scenePaths {
		out = append(out, scene)
		if t, ok := transitions[i]; ok && i < len(scenePaths)-1 {
			out = append(out, t)
		}
	}
	return out
}
