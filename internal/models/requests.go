package models

import "github.com/google/uuid"

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Style       *string `json:"style,omitempty"`
	StylePrompt *string `json:"style_prompt,omitempty"`
}

type StylizeRequest struct {
	Style       string  `json:"style"`
	StylePrompt *string `json:"style_prompt,omitempty"`
}

type ReorderPhotosRequest struct {
	PhotoIDs []uuid.UUID `json:"photo_ids"`
}

type GenerateVideoRequest struct {
	Prompt          *string  `json:"prompt,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

type CreateExportRequest struct {
	IncludeTransitions *bool `json:"include_transitions,omitempty"`
}

type GoogleAuthRequest struct {
	Code string `json:"code"`
}

type ImportGooglePhotosRequest struct {
	SessionID string `json:"session_id"`
}

// ImportPhotoError reports one picked photo that could not be imported.
type ImportPhotoError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type ImportGooglePhotosResponse struct {
	ImportedCount int                `json:"imported_count"`
	Photos        []PhotoResponse    `json:"photos"`
	Errors        []ImportPhotoError `json:"errors"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type JobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type PhotoResponse struct {
	Photo
	OriginalURL string  `json:"original_url"`
	StyledURL   *string `json:"styled_url,omitempty"`
}

type VideoResponse struct {
	Video
	VideoURL *string `json:"video_url,omitempty"`
}

type ExportResponse struct {
	Export
	FileURL      *string `json:"file_url,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

type ProjectResponse struct {
	Project
	PhotoCount int `json:"photo_count"`
}

type StyleStatusResponse struct {
	ProjectStatus ProjectStatus `json:"project_status"`
	Total         int           `json:"total"`
	Styling       int           `json:"styling"`
	Styled        int           `json:"styled"`
}
