package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

func TestResetOrphanedJobs(t *testing.T) {
	tw := newTestWorker(context.Background())
	ctx := context.Background()

	running := &models.Job{ID: uuid.New(), JobType: models.JobTypeStyleTransfer, Status: models.JobStatusRunning}
	done := &models.Job{ID: uuid.New(), JobType: models.JobTypeExport, Status: models.JobStatusRunning}
	tw.store.CreateJob(ctx, running)
	tw.store.CreateJob(ctx, done)
	tw.store.CompleteJob(ctx, done.ID)

	if err := tw.w.ResetOrphanedJobs(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orphaned := tw.store.jobs[running.ID]
	if orphaned.Status != models.JobStatusFailed {
		t.Errorf("expected running job failed, got %s", orphaned.Status)
	}
	if orphaned.ErrorMessage == nil || *orphaned.ErrorMessage != "Server restarted while job was running" {
		t.Errorf("expected restart message, got %v", orphaned.ErrorMessage)
	}
	if got := tw.store.jobs[done.ID].Status; got != models.JobStatusCompleted {
		t.Errorf("completed job must be untouched, got %s", got)
	}
}

func TestSweepStuckJobs(t *testing.T) {
	tw := newTestWorker(context.Background())
	ctx := context.Background()

	stuck := &models.Job{ID: uuid.New(), JobType: models.JobTypeStyleTransfer, Status: models.JobStatusRunning}
	fresh := &models.Job{ID: uuid.New(), JobType: models.JobTypeStyleTransfer, Status: models.JobStatusRunning}
	slowExport := &models.Job{ID: uuid.New(), JobType: models.JobTypeExport, Status: models.JobStatusRunning}
	tw.store.CreateJob(ctx, stuck)
	tw.store.CreateJob(ctx, fresh)
	tw.store.CreateJob(ctx, slowExport)

	// past the default timeout but inside the export timeout
	tw.store.jobs[stuck.ID].CreatedAt = time.Now().Add(-time.Hour)
	tw.store.jobs[slowExport.ID].CreatedAt = time.Now().Add(-time.Hour)

	n, err := tw.w.SweepStuckJobs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 timed-out job, got %d", n)
	}

	if got := tw.store.jobs[stuck.ID].Status; got != models.JobStatusFailed {
		t.Errorf("expected stuck job failed, got %s", got)
	}
	if msg := tw.store.jobs[stuck.ID].ErrorMessage; msg == nil || *msg != "Job timed out (stuck detection)" {
		t.Errorf("expected stuck message, got %v", msg)
	}
	if got := tw.store.jobs[fresh.ID].Status; got != models.JobStatusRunning {
		t.Errorf("fresh job must stay running, got %s", got)
	}
	if got := tw.store.jobs[slowExport.ID].Status; got != models.JobStatusRunning {
		t.Errorf("export inside its longer timeout must stay running, got %s", got)
	}

	// running again immediately is a no-op
	n, err = tw.w.SweepStuckJobs(ctx)
	if err != nil {
		t.Fatalf("unexpected error on second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("expected idempotent second sweep, got %d", n)
	}
}

func TestSweepResetsStalledProjects(t *testing.T) {
	tw := newTestWorker(context.Background())
	ctx := context.Background()

	stalled := seedProject(tw, models.ProjectStatusProcessing)
	active := seedProject(tw, models.ProjectStatusProcessing)
	photo := tw.seedPhoto(active.ID, 0, "beach")
	tw.store.photos[photo.ID].Status = models.PhotoStatusStyling

	if _, err := tw.w.SweepStuckJobs(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tw.store.projects[stalled.ID].Status; got != models.ProjectStatusDraft {
		t.Errorf("expected stalled project reset to draft, got %s", got)
	}
	if got := tw.store.projects[active.ID].Status; got != models.ProjectStatusProcessing {
		t.Errorf("project with a styling photo must stay processing, got %s", got)
	}
}

func TestResumeStuckStyleTransfers(t *testing.T) {
	tw := newTestWorker(context.Background())
	ctx := context.Background()

	style := "ghibli"
	withStyle := seedProject(tw, models.ProjectStatusProcessing)
	tw.store.projects[withStyle.ID].Style = &style
	resumable := tw.seedPhoto(withStyle.ID, 0, "beach")
	tw.store.photos[resumable.ID].Status = models.PhotoStatusStyling

	noStyle := seedProject(tw, models.ProjectStatusProcessing)
	contradictory := tw.seedPhoto(noStyle.ID, 0, "sunset")
	tw.store.photos[contradictory.ID].Status = models.PhotoStatusStyling

	if err := tw.w.ResumeStuckStyleTransfers(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tw.w.Wait()

	if got := tw.store.photos[resumable.ID].Status; got != models.PhotoStatusStyled {
		t.Errorf("expected resumed photo styled, got %s", got)
	}
	if got := tw.store.photos[contradictory.ID].Status; got != models.PhotoStatusUploaded {
		t.Errorf("expected photo without project style reset to uploaded, got %s", got)
	}
}

func TestCleanupExpiredExports(t *testing.T) {
	tw := newTestWorker(context.Background())
	ctx := context.Background()

	oldPath := "exports/old/export_old.mp4"
	thumbPath := "exports/old/thumb_old.jpg"
	tw.blob.put(oldPath, []byte("old reel"))
	tw.blob.put(thumbPath, []byte("old thumb"))

	expired := tw.store.addExport(models.Export{
		ID:            uuid.New(),
		ProjectID:     uuid.New(),
		Status:        models.ExportStatusReady,
		FilePath:      &oldPath,
		ThumbnailPath: &thumbPath,
		CreatedAt:     time.Now().AddDate(0, 0, -30),
	})

	freshPath := "exports/fresh/export_fresh.mp4"
	tw.blob.put(freshPath, []byte("fresh reel"))
	fresh := tw.store.addExport(models.Export{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Status:    models.ExportStatusReady,
		FilePath:  &freshPath,
		CreatedAt: time.Now(),
	})

	if err := tw.w.CleanupExpiredExports(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := tw.store.exports[expired.ID]; ok {
		t.Error("expected expired export row deleted")
	}
	if tw.blob.has(oldPath) || tw.blob.has(thumbPath) {
		t.Error("expected expired export blobs deleted")
	}

	if _, ok := tw.store.exports[fresh.ID]; !ok {
		t.Error("fresh export must survive cleanup")
	}
	if !tw.blob.has(freshPath) {
		t.Error("fresh export blob must survive cleanup")
	}
}
