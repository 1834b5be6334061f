package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusComplete   ProjectStatus = "complete"
)

type PhotoStatus string

const (
	PhotoStatusUploaded PhotoStatus = "uploaded"
	PhotoStatusStyling  PhotoStatus = "styling"
	PhotoStatusStyled   PhotoStatus = "styled"
)

type PromptStatus string

const (
	PromptStatusPending    PromptStatus = "pending"
	PromptStatusGenerating PromptStatus = "generating"
	PromptStatusCompleted  PromptStatus = "completed"
	PromptStatusFailed     PromptStatus = "failed"
)

type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusGenerating VideoStatus = "generating"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
)

type VideoType string

const (
	VideoTypeScene      VideoType = "scene"
	VideoTypeTransition VideoType = "transition"
)

type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusReady      ExportStatus = "ready"
	ExportStatusFailed     ExportStatus = "failed"
)

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

type JobType string

const (
	JobTypeStyleTransfer    JobType = "style_transfer"
	JobTypePromptGeneration JobType = "prompt_generation"
	JobTypeVideoGeneration  JobType = "video_generation"
	JobTypeExport           JobType = "export"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	GoogleID  *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`

	// Google OAuth tokens, kept for the Photos Picker integration. Never
	// serialized to clients.
	GoogleAccessToken  *string    `json:"-"`
	GoogleRefreshToken *string    `json:"-"`
	GoogleTokenExpiry  *time.Time `json:"-"`
}

type Project struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	Name        string        `json:"name"`
	Style       *string       `json:"style,omitempty"`
	StylePrompt *string       `json:"style_prompt,omitempty"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Photo struct {
	ID              uuid.UUID    `json:"id"`
	ProjectID       uuid.UUID    `json:"project_id"`
	OriginalPath    string       `json:"original_path"`
	StyledPath      *string      `json:"styled_path,omitempty"`
	AnimationPrompt *string      `json:"animation_prompt,omitempty"`
	PromptStatus    PromptStatus `json:"prompt_status"`
	Position        int          `json:"position"`
	Status          PhotoStatus  `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
}

// StyledVariant is one historical style-transfer output for a photo. At most
// one variant per photo is selected; the photo's styled_path mirrors it.
type StyledVariant struct {
	ID         uuid.UUID `json:"id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	StyledPath string    `json:"styled_path"`
	Style      string    `json:"style"`
	IsSelected bool      `json:"is_selected"`
	CreatedAt  time.Time `json:"created_at"`
}

type Video struct {
	ID              uuid.UUID   `json:"id"`
	ProjectID       uuid.UUID   `json:"project_id"`
	PhotoID         *uuid.UUID  `json:"photo_id,omitempty"`
	VideoType       VideoType   `json:"video_type"`
	SourcePhotoID   *uuid.UUID  `json:"source_photo_id,omitempty"`
	TargetPhotoID   *uuid.UUID  `json:"target_photo_id,omitempty"`
	VideoPath       *string     `json:"video_path,omitempty"`
	Prompt          *string     `json:"prompt,omitempty"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
	Position        *int        `json:"position,omitempty"`
	Status          VideoStatus `json:"status"`
	IsSelected      bool        `json:"is_selected"`
	CreatedAt       time.Time   `json:"created_at"`
}

type Export struct {
	ID              uuid.UUID    `json:"id"`
	ProjectID       uuid.UUID    `json:"project_id"`
	FilePath        *string      `json:"file_path,omitempty"`
	ThumbnailPath   *string      `json:"thumbnail_path,omitempty"`
	Status          ExportStatus `json:"status"`
	ProgressStep    *string      `json:"progress_step,omitempty"`
	ProgressDetail  *string      `json:"progress_detail,omitempty"`
	ProgressPercent int          `json:"progress_percent"`
	ErrorMessage    *string      `json:"error_message,omitempty"`
	IsMain          bool         `json:"is_main"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Job is a user-visible audit record for one background operation. It is not
// authoritative for business state; the owning entity's status is.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	JobType      JobType    `json:"job_type"`
	Description  string     `json:"description"`
	Status       JobStatus  `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// PhotoPosition pairs a photo id with its new ordinal position.
type PhotoPosition struct {
	PhotoID  uuid.UUID `json:"photo_id"`
	Position int       `json:"position"`
}

// PositionAssignments maps an ordered list of photo ids to contiguous
// positions starting at zero. The list order is authoritative.
func PositionAssignments(photoIDs []uuid.UUID) []PhotoPosition {
	assignments := make([]PhotoPosition, len(photoIDs))
	for i, id := range photoIDs {
		assignments[i] = PhotoPosition{PhotoID: id, Position: i}
	}
	return assignments
}
