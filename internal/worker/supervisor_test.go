package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

func launchTestJob(tw *testWorker, entityID uuid.UUID, fn func(ctx context.Context) error) *models.Job {
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		ProjectID:   uuid.New(),
		JobType:     models.JobTypeStyleTransfer,
		Description: "test task",
		Status:      models.JobStatusRunning,
	}
	tw.w.sup.Launch(entityID, OpStyleTransfer, job, fn)
	return job
}

func TestSupervisorCompletesJob(t *testing.T) {
	tw := newTestWorker(context.Background())

	job := launchTestJob(tw, uuid.New(), func(ctx context.Context) error { return nil })
	tw.w.Wait()

	stored := tw.store.jobs[job.ID]
	if stored == nil {
		t.Fatal("job was never recorded")
	}
	if stored.Status != models.JobStatusCompleted {
		t.Errorf("expected completed job, got %s", stored.Status)
	}

	events := tw.notifier.eventNames()
	if len(events) != 1 || events[0] != "job_completed" {
		t.Errorf("expected one job_completed event, got %v", events)
	}
}

func TestSupervisorFailsJobWithError(t *testing.T) {
	tw := newTestWorker(context.Background())

	job := launchTestJob(tw, uuid.New(), func(ctx context.Context) error {
		return fmt.Errorf("provider exploded")
	})
	tw.w.Wait()

	stored := tw.store.jobs[job.ID]
	if stored.Status != models.JobStatusFailed {
		t.Fatalf("expected failed job, got %s", stored.Status)
	}
	if stored.ErrorMessage == nil || *stored.ErrorMessage != "provider exploded" {
		t.Errorf("expected error message persisted, got %v", stored.ErrorMessage)
	}
	if len(tw.notifier.eventNames()) != 0 {
		t.Errorf("failed task must not publish job_completed")
	}
}

func TestSupervisorConvertsPanicToFailure(t *testing.T) {
	tw := newTestWorker(context.Background())

	job := launchTestJob(tw, uuid.New(), func(ctx context.Context) error {
		panic("nil map write")
	})
	tw.w.Wait()

	stored := tw.store.jobs[job.ID]
	if stored.Status != models.JobStatusFailed {
		t.Fatalf("expected failed job after panic, got %s", stored.Status)
	}
	if stored.ErrorMessage == nil {
		t.Fatal("expected panic message persisted")
	}
}

func TestSupervisorTracksInFlight(t *testing.T) {
	tw := newTestWorker(context.Background())
	entityID := uuid.New()

	release := make(chan struct{})
	launchTestJob(tw, entityID, func(ctx context.Context) error {
		<-release
		return nil
	})

	if !tw.w.sup.InFlight(entityID) {
		// the goroutine may not have started yet; trackStart runs before
		// Launch returns, so this must already be true
		t.Error("expected entity in flight after Launch")
	}
	close(release)
	tw.w.Wait()

	if tw.w.sup.InFlight(entityID) {
		t.Error("expected entity no longer in flight after Wait")
	}
}

func TestSupervisorRecentOutcomesBounded(t *testing.T) {
	tw := newTestWorker(context.Background())

	for i := 0; i < recentOutcomeCap+10; i++ {
		launchTestJob(tw, uuid.New(), func(ctx context.Context) error { return nil })
	}
	tw.w.Wait()

	outcomes := tw.w.sup.RecentOutcomes()
	if len(outcomes) != recentOutcomeCap {
		t.Errorf("expected outcome ring capped at %d, got %d", recentOutcomeCap, len(outcomes))
	}
}
