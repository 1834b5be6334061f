package worker

import (
	"context"
	"log"
	"time"
)

const (
	orphanedJobMessage = "Server restarted while job was running"
	stuckJobMessage    = "Job timed out (stuck detection)"

	cleanupInterval = 24 * time.Hour
)

// ResetOrphanedJobs fails every job still marked running. Runs once at boot;
// anything running at that point belonged to the previous process.
func (w *Worker) ResetOrphanedJobs(ctx context.Context) error {
	n, err := w.store.ResetRunningJobs(ctx, orphanedJobMessage)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[Recovery] Marked %d orphaned jobs failed", n)
	}
	return nil
}

// ResumeStuckStyleTransfers re-submits photos left mid style-transfer by an
// unclean shutdown. A photo whose project has no configured style is in a
// contradictory state and is reset to uploaded instead of resumed.
func (w *Worker) ResumeStuckStyleTransfers(ctx context.Context) error {
	photos, err := w.store.GetStylingPhotos(ctx)
	if err != nil {
		return err
	}

	for _, photo := range photos {
		project, err := w.store.GetProject(ctx, photo.ProjectID)
		if err != nil {
			log.Printf("[Recovery] Could not load project for styling photo %s: %v", photo.ID, err)
			continue
		}

		if project.Style == nil || *project.Style == "" {
			log.Printf("[Recovery] Photo %s stuck styling with no project style, resetting to uploaded", photo.ID)
			w.revertPhoto(ctx, photo.ID)
			continue
		}

		log.Printf("[Recovery] Resuming style transfer for photo %s (style=%s)", photo.ID, *project.Style)
		w.LaunchPhotoStylize(project.UserID, project.ID, photo.ID, *project.Style, project.StylePrompt)
	}
	return nil
}

// SweepStuckJobs is one iteration of the periodic stuck detector: running
// jobs older than their class timeout are failed, and projects stuck in
// processing with no photo actually styling fall back to draft. Invoking it
// again immediately changes nothing.
func (w *Worker) SweepStuckJobs(ctx context.Context) (int, error) {
	now := time.Now()
	n, err := w.store.FailStuckJobs(ctx,
		now.Add(-w.cfg.StuckJobTimeout),
		now.Add(-w.cfg.StuckExportTimeout),
		stuckJobMessage,
	)
	if err != nil {
		return 0, err
	}

	if reset, err := w.store.ResetStalledProjects(ctx); err != nil {
		log.Printf("[Recovery] Failed to reset stalled projects: %v", err)
	} else if reset > 0 {
		log.Printf("[Recovery] Reset %d stalled projects to draft", reset)
	}

	return n, nil
}

// RunStuckJobLoop runs the stuck detector on a fixed interval until ctx is
// cancelled. A failing iteration is logged and never stops the loop.
func (w *Worker) RunStuckJobLoop(ctx context.Context) {
	log.Printf("[Recovery] Stuck-job sweep running every %v (timeouts: %v default, %v export)",
		w.cfg.StuckSweepInterval, w.cfg.StuckJobTimeout, w.cfg.StuckExportTimeout)

	ticker := time.NewTicker(w.cfg.StuckSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.SweepStuckJobs(ctx)
			if err != nil {
				log.Printf("[Recovery] Stuck-job sweep iteration failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[Recovery] Timed out %d stuck jobs", n)
			}
		}
	}
}

// CleanupExpiredExports deletes ready exports past the retention window,
// blobs first so a delete failure leaves the row for the next pass.
func (w *Worker) CleanupExpiredExports(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -w.cfg.ExportRetentionDays)
	exports, err := w.store.ListExpiredExports(ctx, cutoff)
	if err != nil {
		return err
	}

	removed := 0
	for _, export := range exports {
		if export.FilePath != nil {
			if err := w.blob.Delete(ctx, *export.FilePath); err != nil {
				log.Printf("[Recovery] Failed to delete export blob %s: %v", *export.FilePath, err)
				continue
			}
		}
		if export.ThumbnailPath != nil {
			if err := w.blob.Delete(ctx, *export.ThumbnailPath); err != nil {
				log.Printf("[Recovery] Failed to delete thumbnail %s: %v", *export.ThumbnailPath, err)
			}
		}
		if err := w.store.DeleteExport(ctx, export.ID); err != nil {
			log.Printf("[Recovery] Failed to delete export row %s: %v", export.ID, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("[Recovery] Removed %d expired exports (retention %d days)", removed, w.cfg.ExportRetentionDays)
	}
	return nil
}

// RunCleanupLoop runs retention cleanup daily. Disabled by config.
func (w *Worker) RunCleanupLoop(ctx context.Context) {
	if !w.cfg.CleanupEnabled {
		log.Printf("[Recovery] Export retention cleanup disabled")
		return
	}

	if err := w.CleanupExpiredExports(ctx); err != nil {
		log.Printf("[Recovery] Export cleanup failed: %v", err)
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.CleanupExpiredExports(ctx); err != nil {
				log.Printf("[Recovery] Export cleanup failed: %v", err)
			}
		}
	}
}
