package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestPositionAssignments(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	assignments := PositionAssignments(ids)
	if len(assignments) != len(ids) {
		t.Fatalf("expected %d assignments, got %d", len(ids), len(assignments))
	}

	for i, a := range assignments {
		if a.PhotoID != ids[i] {
			t.Errorf("index %d: expected photo %s, got %s", i, ids[i], a.PhotoID)
		}
		if a.Position != i {
			t.Errorf("index %d: expected position %d, got %d", i, i, a.Position)
		}
	}
}

func TestPositionAssignmentsEmpty(t *testing.T) {
	assignments := PositionAssignments(nil)
	if len(assignments) != 0 {
		t.Errorf("expected no assignments, got %d", len(assignments))
	}
}

func TestProjectStatus(t *testing.T) {
	statuses := []ProjectStatus{
		ProjectStatusDraft,
		ProjectStatusProcessing,
		ProjectStatusComplete,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestPhotoStatus(t *testing.T) {
	statuses := []PhotoStatus{
		PhotoStatusUploaded,
		PhotoStatusStyling,
		PhotoStatusStyled,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestVideoStatus(t *testing.T) {
	statuses := []VideoStatus{
		VideoStatusPending,
		VideoStatusGenerating,
		VideoStatusReady,
		VideoStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestExportStatus(t *testing.T) {
	statuses := []ExportStatus{
		ExportStatusPending,
		ExportStatusProcessing,
		ExportStatusReady,
		ExportStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}
