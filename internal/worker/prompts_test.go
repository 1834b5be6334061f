package worker

import (
	"context"
	"strings"
	"testing"

	"memoryreel-backend/internal/models"
)

func TestGeneratePromptsAllPhotos(t *testing.T) {
	tw := newTestWorker(context.Background())
	project := seedProject(tw, models.ProjectStatusDraft)

	p1 := tw.seedPhoto(project.ID, 0, "beach")
	p2 := tw.seedPhoto(project.ID, 1, "sunset")

	tw.w.LaunchPromptGeneration(project.UserID, project.ID)
	tw.w.Wait()

	for _, photo := range []*models.Photo{p1, p2} {
		stored := tw.store.photos[photo.ID]
		if stored.PromptStatus != models.PromptStatusCompleted {
			t.Errorf("photo %s: expected completed prompt, got %s", photo.ID, stored.PromptStatus)
		}
		if stored.AnimationPrompt == nil || *stored.AnimationPrompt == "" {
			t.Errorf("photo %s: expected animation prompt set", photo.ID)
		}
	}
}

func TestGeneratePromptsPartialFailure(t *testing.T) {
	tw := newTestWorker(context.Background())
	project := seedProject(tw, models.ProjectStatusDraft)

	good := tw.seedPhoto(project.ID, 0, "beach")
	bad := tw.seedPhoto(project.ID, 1, "glare")
	tw.prompter.failInput = "glare"

	tw.w.LaunchPromptGeneration(project.UserID, project.ID)
	tw.w.Wait()

	if got := tw.store.photos[good.ID].PromptStatus; got != models.PromptStatusCompleted {
		t.Errorf("healthy photo: expected completed, got %s", got)
	}
	if got := tw.store.photos[bad.ID].PromptStatus; got != models.PromptStatusFailed {
		t.Errorf("failed photo: expected failed prompt status, got %s", got)
	}

	job := tw.store.jobByType(models.JobTypePromptGeneration)
	if job == nil || job.Status != models.JobStatusFailed {
		t.Fatalf("expected failed aggregate job, got %+v", job)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "1 of 2 photos") {
		t.Errorf("expected partial-failure message, got %v", job.ErrorMessage)
	}
}

func TestGeneratePromptUsesStyledImage(t *testing.T) {
	tw := newTestWorker(context.Background())
	project := seedProject(tw, models.ProjectStatusDraft)

	photo := tw.seedPhoto(project.ID, 0, "beach")
	styledPath := "styled/" + project.ID.String() + "/beach.png"
	tw.blob.put(styledPath, []byte("styled-beach"))
	tw.store.photos[photo.ID].StyledPath = &styledPath

	tw.w.LaunchPhotoPrompt(project.UserID, project.ID, photo.ID)
	tw.w.Wait()

	stored := tw.store.photos[photo.ID]
	if stored.AnimationPrompt == nil || !strings.Contains(*stored.AnimationPrompt, "styled-beach") {
		t.Errorf("expected prompt generated from styled image, got %v", stored.AnimationPrompt)
	}
}

func TestGeneratePromptsEmptyProject(t *testing.T) {
	tw := newTestWorker(context.Background())
	project := seedProject(tw, models.ProjectStatusDraft)

	tw.w.LaunchPromptGeneration(project.UserID, project.ID)
	tw.w.Wait()

	job := tw.store.jobByType(models.JobTypePromptGeneration)
	if job == nil || job.Status != models.JobStatusCompleted {
		t.Errorf("expected empty project prompt job to complete, got %+v", job)
	}
}
