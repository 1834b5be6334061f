package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Google Photos Picker API
// The picker flow is session-based: create a session → the user opens the
// returned picker URI and selects photos → poll the session until
// mediaItemsSet → list and download the selected items. The old Library API
// scopes were retired, so the picker is the only import path.
// ---------------------------------------------------------------------------

const (
	googlePhotosPickerBaseURL = "https://photospicker.googleapis.com/v1"
	pickerMaxPageSize         = 100
)

// GooglePhotosService talks to the Photos Picker API on behalf of a user's
// OAuth access token.
type GooglePhotosService struct {
	baseURL    string
	httpClient *http.Client
}

func NewGooglePhotosService() *GooglePhotosService {
	return &GooglePhotosService{
		baseURL: googlePhotosPickerBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// PickerSession is the state of one picker flow.
type PickerSession struct {
	ID            string `json:"session_id"`
	PickerURI     string `json:"picker_uri"`
	MediaItemsSet bool   `json:"media_items_set"`
	ExpireTime    string `json:"expire_time,omitempty"`
}

// PickedPhoto is one photo the user selected in the picker. DownloadURL
// carries the "=d" suffix that makes Google serve the original bytes.
type PickedPhoto struct {
	ID          string `json:"id"`
	MimeType    string `json:"mimeType"`
	BaseURL     string `json:"baseUrl"`
	DownloadURL string `json:"downloadUrl"`
}

type pickerSessionPayload struct {
	ID            string `json:"id"`
	PickerURI     string `json:"pickerUri"`
	MediaItemsSet bool   `json:"mediaItemsSet"`
	ExpireTime    string `json:"expireTime"`
}

type pickerMediaItemsPayload struct {
	MediaItems []struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		MediaFile struct {
			BaseURL  string `json:"baseUrl"`
			MimeType string `json:"mimeType"`
		} `json:"mediaFile"`
	} `json:"mediaItems"`
	NextPageToken string `json:"nextPageToken"`
}

// CreateSession starts a new picker session for the user.
func (s *GooglePhotosService) CreateSession(ctx context.Context, accessToken string) (*PickerSession, error) {
	endpoint := fmt.Sprintf("%s/sessions?requestId=%s", s.baseURL, uuid.New())

	body, err := s.do(ctx, "POST", endpoint, accessToken, "createSession")
	if err != nil {
		return nil, err
	}

	var payload pickerSessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w (body: %s)", err, truncate(string(body), 300))
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("no session id in response: %s", truncate(string(body), 300))
	}

	log.Printf("[GooglePhotos] Picker session created: %s", payload.ID)
	return sessionFromPayload(&payload), nil
}

// GetSession returns the current state of a picker session. The session is
// ready for import once MediaItemsSet is true.
func (s *GooglePhotosService) GetSession(ctx context.Context, accessToken, sessionID string) (*PickerSession, error) {
	endpoint := fmt.Sprintf("%s/sessions/%s", s.baseURL, url.PathEscape(sessionID))

	body, err := s.do(ctx, "GET", endpoint, accessToken, "getSession")
	if err != nil {
		return nil, err
	}

	var payload pickerSessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w (body: %s)", err, truncate(string(body), 300))
	}

	return sessionFromPayload(&payload), nil
}

// ListPhotos returns one page of the photos the user selected. Videos and
// other media types are filtered out.
func (s *GooglePhotosService) ListPhotos(ctx context.Context, accessToken, sessionID string, pageSize int, pageToken string) ([]PickedPhoto, string, error) {
	if pageSize <= 0 || pageSize > pickerMaxPageSize {
		pageSize = pickerMaxPageSize
	}

	params := url.Values{
		"sessionId": {sessionID},
		"pageSize":  {strconv.Itoa(pageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	body, err := s.do(ctx, "GET", s.baseURL+"/mediaItems?"+params.Encode(), accessToken, "listMediaItems")
	if err != nil {
		return nil, "", err
	}

	var payload pickerMediaItemsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", fmt.Errorf("failed to parse media items response: %w (body: %s)", err, truncate(string(body), 300))
	}

	var photos []PickedPhoto
	for _, item := range payload.MediaItems {
		if item.Type != "PHOTO" || item.MediaFile.BaseURL == "" {
			continue
		}
		mimeType := item.MediaFile.MimeType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		photos = append(photos, PickedPhoto{
			ID:          item.ID,
			MimeType:    mimeType,
			BaseURL:     item.MediaFile.BaseURL,
			DownloadURL: item.MediaFile.BaseURL + "=d",
		})
	}

	return photos, payload.NextPageToken, nil
}

// ListAllPhotos pages through every selected photo in the session.
func (s *GooglePhotosService) ListAllPhotos(ctx context.Context, accessToken, sessionID string) ([]PickedPhoto, error) {
	var all []PickedPhoto
	pageToken := ""

	for {
		photos, next, err := s.ListPhotos(ctx, accessToken, sessionID, pickerMaxPageSize, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, photos...)

		if next == "" {
			return all, nil
		}
		pageToken = next
	}
}

// DeleteSession tears down a finished session. Callers treat failures as
// best-effort cleanup.
func (s *GooglePhotosService) DeleteSession(ctx context.Context, accessToken, sessionID string) error {
	endpoint := fmt.Sprintf("%s/sessions/%s", s.baseURL, url.PathEscape(sessionID))
	_, err := s.do(ctx, "DELETE", endpoint, accessToken, "deleteSession")
	return err
}

// Download fetches the original bytes of one picked photo.
func (s *GooglePhotosService) Download(ctx context.Context, accessToken, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkProviderError("google-photos", "download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewHTTPProviderError("google-photos", "download", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo bytes: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded photo is empty (0 bytes)")
	}
	return data, nil
}

func (s *GooglePhotosService) do(ctx context.Context, method, endpoint, accessToken, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if method == "POST" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkProviderError("google-photos", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPProviderError("google-photos", op, resp.StatusCode, string(body))
	}

	return body, nil
}

func sessionFromPayload(p *pickerSessionPayload) *PickerSession {
	return &PickerSession{
		ID:            p.ID,
		PickerURI:     p.PickerURI,
		MediaItemsSet: p.MediaItemsSet,
		ExpireTime:    p.ExpireTime,
	}
}
