package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
	"memoryreel-backend/internal/services"
	"memoryreel-backend/internal/storage"
)

// Google Photos Picker import. The frontend creates a session, sends the user
// to the picker URI, polls session state, then asks us to pull the selected
// photos into a project.

var googlePhotoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// CreatePickerSession handles POST /v1/google-photos/session
func (h *Handler) CreatePickerSession(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := h.googleAccessToken(w, r)
	if !ok {
		return
	}

	session, err := h.picker.CreateSession(r.Context(), accessToken)
	if err != nil {
		respondPickerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GetPickerSession handles GET /v1/google-photos/session/{sessionID}
func (h *Handler) GetPickerSession(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := h.googleAccessToken(w, r)
	if !ok {
		return
	}

	session, err := h.picker.GetSession(r.Context(), accessToken, pickerSessionID(r))
	if err != nil {
		respondPickerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// ImportGooglePhotos handles POST /v1/projects/{id}/import-google-photos:
// pulls every photo the user selected in a finished picker session into the
// project. Each photo is independent; failures are reported per photo and
// never abort the rest of the import.
func (h *Handler) ImportGooglePhotos(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req models.ImportGooglePhotosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	accessToken, ok := h.googleAccessToken(w, r)
	if !ok {
		return
	}

	session, err := h.picker.GetSession(r.Context(), accessToken, req.SessionID)
	if err != nil {
		respondPickerError(w, err)
		return
	}
	if !session.MediaItemsSet {
		respondError(w, http.StatusBadRequest, "User has not finished selecting photos yet")
		return
	}

	picked, err := h.picker.ListAllPhotos(r.Context(), accessToken, req.SessionID)
	if err != nil {
		respondPickerError(w, err)
		return
	}

	imported := make([]models.PhotoResponse, 0, len(picked))
	importErrors := make([]models.ImportPhotoError, 0)

	for _, item := range picked {
		photo, err := h.importPickedPhoto(r, project.ID, accessToken, item)
		if err != nil {
			log.Printf("[GooglePhotos] Failed to import photo %s: %v", item.ID, err)
			importErrors = append(importErrors, models.ImportPhotoError{ID: item.ID, Error: err.Error()})
			continue
		}
		imported = append(imported, h.photoResponse(*photo))
	}

	// imported photos get animation prompts in the background, same as uploads
	for _, photo := range imported {
		h.worker.LaunchPhotoPrompt(currentUserID(r), project.ID, photo.ID)
	}

	// the session has served its purpose; cleanup failures are harmless
	if err := h.picker.DeleteSession(r.Context(), accessToken, req.SessionID); err != nil {
		log.Printf("[GooglePhotos] Failed to delete picker session %s: %v", req.SessionID, err)
	}

	respondJSON(w, http.StatusOK, models.ImportGooglePhotosResponse{
		ImportedCount: len(imported),
		Photos:        imported,
		Errors:        importErrors,
	})
}

func (h *Handler) importPickedPhoto(r *http.Request, projectID uuid.UUID, accessToken string, item services.PickedPhoto) (*models.Photo, error) {
	data, err := h.picker.Download(r.Context(), accessToken, item.DownloadURL)
	if err != nil {
		return nil, err
	}

	ext, ok := googlePhotoExtensions[item.MimeType]
	if !ok {
		ext = ".jpg"
	}

	path, err := h.blob.Save(r.Context(), data, storage.CategoryOriginals, projectID, storage.RandomFilename(ext))
	if err != nil {
		return nil, err
	}

	position, err := h.db.NextPhotoPosition(r.Context(), projectID)
	if err != nil {
		return nil, err
	}

	photo := &models.Photo{
		ID:           uuid.New(),
		ProjectID:    projectID,
		OriginalPath: path,
		PromptStatus: models.PromptStatusPending,
		Position:     position,
		Status:       models.PhotoStatusUploaded,
	}
	if err := h.db.CreatePhoto(r.Context(), photo); err != nil {
		return nil, err
	}
	return photo, nil
}

// googleAccessToken loads the caller's stored Google token, refreshing it if
// expired. Responds 401 itself when the account has no usable token.
func (h *Handler) googleAccessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := h.db.GetUser(r.Context(), currentUserID(r))
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return "", false
	}

	if user.GoogleAccessToken == nil || *user.GoogleAccessToken == "" {
		respondError(w, http.StatusUnauthorized, "Google Photos not connected. Please authorize access first.")
		return "", false
	}

	if user.GoogleTokenExpiry != nil && user.GoogleTokenExpiry.Before(time.Now()) {
		refreshed, err := h.refreshGoogleAccessToken(r, user)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Google token expired. Please re-authorize.")
			return "", false
		}
		return refreshed, true
	}

	return *user.GoogleAccessToken, true
}

func pickerSessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

// respondPickerError translates picker API failures: a 404 means the session
// is gone, a 400 means the user has not finished picking, anything else is a
// bad gateway.
func respondPickerError(w http.ResponseWriter, err error) {
	var pe *services.ProviderError
	if errors.As(err, &pe) {
		switch pe.StatusCode {
		case http.StatusNotFound:
			respondError(w, http.StatusNotFound, "Session not found or expired")
			return
		case http.StatusBadRequest:
			respondError(w, http.StatusBadRequest, "User has not finished selecting photos yet")
			return
		}
	}
	log.Printf("[GooglePhotos] Picker API error: %v", err)
	respondError(w, http.StatusBadGateway, "Failed to reach Google Photos Picker API")
}
