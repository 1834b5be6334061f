package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"memoryreel-backend/internal/db"
	"memoryreel-backend/internal/models"
	"memoryreel-backend/internal/notify"
	"memoryreel-backend/internal/services"
	"memoryreel-backend/internal/storage"
	"memoryreel-backend/internal/worker"
)

const maxUploadBytes = 20 << 20 // 20 MB per photo

// GoogleConfig carries the OAuth client settings for the auth handlers.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Handler struct {
	db        *db.DB
	blob      storage.Store
	worker    *worker.Worker
	notifier  *notify.Publisher
	picker    *services.GooglePhotosService
	jwtSecret string
	google    GoogleConfig
}

func NewHandler(database *db.DB, blob storage.Store, w *worker.Worker, notifier *notify.Publisher, jwtSecret string, google GoogleConfig) *Handler {
	return &Handler{
		db:        database,
		blob:      blob,
		worker:    w,
		notifier:  notifier,
		picker:    services.NewGooglePhotosService(),
		jwtSecret: jwtSecret,
		google:    google,
	}
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// CreateProject handles POST /v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.Style != nil && !services.IsValidStyle(*req.Style) {
		respondError(w, http.StatusBadRequest, "Unknown style")
		return
	}

	project := &models.Project{
		ID:          uuid.New(),
		UserID:      currentUserID(r),
		Name:        req.Name,
		Style:       req.Style,
		StylePrompt: req.StylePrompt,
		Status:      models.ProjectStatusDraft,
	}

	if err := h.db.CreateProject(r.Context(), project); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

// ListProjects handles GET /v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.db.ListUserProjects(r.Context(), currentUserID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}

	responses := make([]models.ProjectResponse, 0, len(projects))
	for _, project := range projects {
		count, _ := h.db.CountProjectPhotos(r.Context(), project.ID)
		responses = append(responses, models.ProjectResponse{Project: project, PhotoCount: count})
	}

	respondJSON(w, http.StatusOK, responses)
}

// GetProject handles GET /v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	count, _ := h.db.CountProjectPhotos(r.Context(), project.ID)
	respondJSON(w, http.StatusOK, models.ProjectResponse{Project: *project, PhotoCount: count})
}

// DeleteProject handles DELETE /v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteProject(r.Context(), project.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete project")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---------------------------------------------------------------------------
// Photos
// ---------------------------------------------------------------------------

// UploadPhoto handles POST /v1/projects/{id}/photos (multipart form, "file")
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	ext := ".jpg"
	if i := strings.LastIndex(header.Filename, "."); i >= 0 {
		ext = strings.ToLower(header.Filename[i:])
	}

	path, err := h.blob.Save(r.Context(), data, storage.CategoryOriginals, project.ID, storage.RandomFilename(ext))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store photo")
		return
	}

	position, err := h.db.NextPhotoPosition(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to assign position")
		return
	}

	photo := &models.Photo{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		OriginalPath: path,
		PromptStatus: models.PromptStatusPending,
		Position:     position,
		Status:       models.PhotoStatusUploaded,
	}
	if err := h.db.CreatePhoto(r.Context(), photo); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create photo")
		return
	}

	respondJSON(w, http.StatusCreated, h.photoResponse(*photo))
}

// ListPhotos handles GET /v1/projects/{id}/photos
func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	photos, err := h.db.GetProjectPhotos(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list photos")
		return
	}

	responses := make([]models.PhotoResponse, 0, len(photos))
	for _, photo := range photos {
		responses = append(responses, h.photoResponse(photo))
	}
	respondJSON(w, http.StatusOK, responses)
}

// ReorderPhotos handles PUT /v1/projects/{id}/photos/reorder
func (h *Handler) ReorderPhotos(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req models.ReorderPhotosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.PhotoIDs) == 0 {
		respondError(w, http.StatusBadRequest, "photo_ids is required")
		return
	}

	count, err := h.db.CountProjectPhotos(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count photos")
		return
	}
	if count != len(req.PhotoIDs) {
		respondError(w, http.StatusBadRequest, "photo_ids must include every photo in the project exactly once")
		return
	}

	assignments := models.PositionAssignments(req.PhotoIDs)
	if err := h.db.ReorderPhotos(r.Context(), project.ID, assignments); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to reorder photos")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

// DeletePhoto handles DELETE /v1/photos/{id}
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.ownedPhoto(w, r)
	if !ok {
		return
	}

	if err := h.db.DeletePhoto(r.Context(), photo.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete photo")
		return
	}
	if err := h.blob.Delete(r.Context(), photo.OriginalPath); err != nil {
		log.Printf("[API] Failed to delete blob for photo %s: %v", photo.ID, err)
	}
	if photo.StyledPath != nil {
		if err := h.blob.Delete(r.Context(), *photo.StyledPath); err != nil {
			log.Printf("[API] Failed to delete styled blob for photo %s: %v", photo.ID, err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---------------------------------------------------------------------------
// Style transfer
// ---------------------------------------------------------------------------

// StylizeProject handles POST /v1/projects/{id}/stylize — validates, moves
// the project to processing, launches the fan-out, returns immediately.
func (h *Handler) StylizeProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req models.StylizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !services.IsValidStyle(req.Style) {
		respondError(w, http.StatusBadRequest, "Unknown style")
		return
	}
	if req.Style == "custom" && (req.StylePrompt == nil || *req.StylePrompt == "") {
		respondError(w, http.StatusBadRequest, "style_prompt is required for custom style")
		return
	}

	if err := h.db.UpdateProjectStyle(r.Context(), project.ID, req.Style, req.StylePrompt); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update project")
		return
	}

	h.worker.LaunchProjectStylize(project.UserID, project.ID, req.Style, req.StylePrompt)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

// StylizePhoto handles POST /v1/photos/{id}/stylize (regenerate one photo)
func (h *Handler) StylizePhoto(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.ownedPhoto(w, r)
	if !ok {
		return
	}

	var req models.StylizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !services.IsValidStyle(req.Style) {
		respondError(w, http.StatusBadRequest, "Unknown style")
		return
	}

	h.worker.LaunchPhotoStylize(currentUserID(r), photo.ProjectID, photo.ID, req.Style, req.StylePrompt)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "styling"})
}

// StyleStatus handles GET /v1/projects/{id}/style-status
func (h *Handler) StyleStatus(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	total, err := h.db.CountProjectPhotos(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count photos")
		return
	}
	styling, _ := h.db.CountPhotosInStatus(r.Context(), project.ID, models.PhotoStatusStyling)
	styled, _ := h.db.CountPhotosInStatus(r.Context(), project.ID, models.PhotoStatusStyled)

	respondJSON(w, http.StatusOK, models.StyleStatusResponse{
		ProjectStatus: project.Status,
		Total:         total,
		Styling:       styling,
		Styled:        styled,
	})
}

// ListVariants handles GET /v1/photos/{id}/variants
func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.ownedPhoto(w, r)
	if !ok {
		return
	}

	variants, err := h.db.GetPhotoVariants(r.Context(), photo.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list variants")
		return
	}
	respondJSON(w, http.StatusOK, variants)
}

// SelectVariant handles POST /v1/variants/{id}/select
func (h *Handler) SelectVariant(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid variant ID")
		return
	}

	if err := h.db.SelectVariant(r.Context(), variantID); err != nil {
		respondError(w, http.StatusNotFound, "Variant not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

// GeneratePrompts handles POST /v1/projects/{id}/prompts
func (h *Handler) GeneratePrompts(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	h.worker.LaunchPromptGeneration(project.UserID, project.ID)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "generating"})
}

// GeneratePhotoPrompt handles POST /v1/photos/{id}/prompt
func (h *Handler) GeneratePhotoPrompt(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.ownedPhoto(w, r)
	if !ok {
		return
	}

	h.worker.LaunchPhotoPrompt(currentUserID(r), photo.ProjectID, photo.ID)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "generating"})
}

// ---------------------------------------------------------------------------
// Videos
// ---------------------------------------------------------------------------

// GenerateVideo handles POST /v1/photos/{id}/video — creates a pending scene
// video row and launches generation.
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.ownedPhoto(w, r)
	if !ok {
		return
	}

	var req models.GenerateVideoRequest
	if r.Body != nil {
		// body is optional; decode failures on an empty body are fine
		json.NewDecoder(r.Body).Decode(&req)
	}

	position := photo.Position
	video := &models.Video{
		ID:              uuid.New(),
		ProjectID:       photo.ProjectID,
		PhotoID:         &photo.ID,
		VideoType:       models.VideoTypeScene,
		Prompt:          req.Prompt,
		DurationSeconds: req.DurationSeconds,
		Position:        &position,
		Status:          models.VideoStatusPending,
	}
	if err := h.db.CreateVideo(r.Context(), video); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create video")
		return
	}

	h.worker.LaunchVideoGeneration(currentUserID(r), photo.ProjectID, video.ID)
	respondJSON(w, http.StatusAccepted, h.videoResponse(*video))
}

// ListVideos handles GET /v1/projects/{id}/videos
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	videos, err := h.db.GetProjectVideos(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	responses := make([]models.VideoResponse, 0, len(videos))
	for _, video := range videos {
		responses = append(responses, h.videoResponse(video))
	}
	respondJSON(w, http.StatusOK, responses)
}

// SelectVideo handles POST /v1/videos/{id}/select
func (h *Handler) SelectVideo(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	if err := h.db.SelectVideo(r.Context(), videoID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

// ---------------------------------------------------------------------------
// Exports
// ---------------------------------------------------------------------------

// CreateExport handles POST /v1/projects/{id}/export
func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req models.CreateExportRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	includeTransitions := true
	if req.IncludeTransitions != nil {
		includeTransitions = *req.IncludeTransitions
	}

	export := &models.Export{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    models.ExportStatusPending,
	}
	if err := h.db.CreateExport(r.Context(), export); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create export")
		return
	}

	h.worker.LaunchExport(project.UserID, project.ID, export.ID, includeTransitions)
	respondJSON(w, http.StatusAccepted, h.exportResponse(*export))
}

// GetExport handles GET /v1/exports/{id} — the status-poll endpoint.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	exportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid export ID")
		return
	}

	export, err := h.db.GetExport(r.Context(), exportID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Export not found")
		return
	}
	if _, err := h.db.GetProjectForUser(r.Context(), export.ProjectID, currentUserID(r)); err != nil {
		respondError(w, http.StatusNotFound, "Export not found")
		return
	}

	respondJSON(w, http.StatusOK, h.exportResponse(*export))
}

// ListExports handles GET /v1/projects/{id}/exports
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	exports, err := h.db.ListProjectExports(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list exports")
		return
	}

	responses := make([]models.ExportResponse, 0, len(exports))
	for _, export := range exports {
		responses = append(responses, h.exportResponse(export))
	}
	respondJSON(w, http.StatusOK, responses)
}

// SetMainExport handles POST /v1/exports/{id}/main
func (h *Handler) SetMainExport(w http.ResponseWriter, r *http.Request) {
	exportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid export ID")
		return
	}

	export, err := h.db.GetExport(r.Context(), exportID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Export not found")
		return
	}
	if _, err := h.db.GetProjectForUser(r.Context(), export.ProjectID, currentUserID(r)); err != nil {
		respondError(w, http.StatusNotFound, "Export not found")
		return
	}

	if err := h.db.SetMainExport(r.Context(), exportID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "main"})
}

// ---------------------------------------------------------------------------
// Jobs (notification history)
// ---------------------------------------------------------------------------

// ListJobs handles GET /v1/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.db.ListUserJobs(r.Context(), currentUserID(r), 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

// ListProjectJobs handles GET /v1/projects/{id}/jobs
func (h *Handler) ListProjectJobs(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	jobs, err := h.db.ListProjectJobs(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// ownedProject loads the {id} project and enforces ownership. Writes the
// error response itself; callers just bail on !ok.
func (h *Handler) ownedProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return nil, false
	}

	project, err := h.db.GetProjectForUser(r.Context(), projectID, currentUserID(r))
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return nil, false
	}
	return project, true
}

func (h *Handler) ownedPhoto(w http.ResponseWriter, r *http.Request) (*models.Photo, bool) {
	photoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid photo ID")
		return nil, false
	}

	photo, err := h.db.GetPhoto(r.Context(), photoID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Photo not found")
		return nil, false
	}
	if _, err := h.db.GetProjectForUser(r.Context(), photo.ProjectID, currentUserID(r)); err != nil {
		respondError(w, http.StatusNotFound, "Photo not found")
		return nil, false
	}
	return photo, true
}

func (h *Handler) photoResponse(photo models.Photo) models.PhotoResponse {
	resp := models.PhotoResponse{
		Photo:       photo,
		OriginalURL: h.blob.URL(photo.OriginalPath),
	}
	if photo.StyledPath != nil {
		url := h.blob.URL(*photo.StyledPath)
		resp.StyledURL = &url
	}
	return resp
}

func (h *Handler) videoResponse(video models.Video) models.VideoResponse {
	resp := models.VideoResponse{Video: video}
	if video.VideoPath != nil {
		url := h.blob.URL(*video.VideoPath)
		resp.VideoURL = &url
	}
	return resp
}

func (h *Handler) exportResponse(export models.Export) models.ExportResponse {
	resp := models.ExportResponse{Export: export}
	if export.FilePath != nil {
		url := h.blob.URL(*export.FilePath)
		resp.FileURL = &url
	}
	if export.ThumbnailPath != nil {
		url := h.blob.URL(*export.ThumbnailPath)
		resp.ThumbnailURL = &url
	}
	return resp
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
