package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// fal.ai Kling Video Generation Service
// Generates short clips from a still image (scenes) or a pair of boundary
// frames (transitions). Follows a deferred request pattern: submit to the
// fal queue → poll by request_id → download the result.
// ---------------------------------------------------------------------------

const (
	falQueueBaseURL      = "https://queue.fal.run"
	falSceneModel        = "fal-ai/kling-video/v2.1/pro/image-to-video"
	falInitialDelay      = 15 * time.Second // Kling clips typically take 1-3 minutes
	falPollMinInterval   = 5 * time.Second
	falPollMaxInterval   = 20 * time.Second
	falPollBackoffFactor = 1.5
	falMaxPollDuration   = 8 * time.Minute
	falDefaultDuration   = 5.0
)

// KlingVideoService handles video generation via fal.ai's Kling models.
type KlingVideoService struct {
	apiKey     string
	httpClient *http.Client
}

func NewKlingVideoService(apiKey string) *KlingVideoService {
	return &KlingVideoService{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // per HTTP call, not the full poll cycle
		},
	}
}

// falSubmitRequest is the body for POST /{model}
type falSubmitRequest struct {
	Prompt       string `json:"prompt"`
	ImageURL     string `json:"image_url"`
	TailImageURL string `json:"tail_image_url,omitempty"`
	Duration     string `json:"duration,omitempty"`
	AspectRatio  string `json:"aspect_ratio,omitempty"`
}

type falSubmitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// falStatusResponse is returned while polling status_url.
// Status is IN_QUEUE, IN_PROGRESS, or COMPLETED.
type falStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type falResultResponse struct {
	Video struct {
		URL string `json:"url"`
	} `json:"video"`
}

// GenerateVideo generates a scene clip from a still image and motion prompt.
// Blocks the calling goroutine through submit, poll and download; callers run
// it under the video-generation gate.
func (s *KlingVideoService) GenerateVideo(ctx context.Context, imageData []byte, mimeType, prompt string, durationSec float64) ([]byte, error) {
	if durationSec <= 0 {
		durationSec = falDefaultDuration
	}

	req := falSubmitRequest{
		Prompt:      prompt,
		ImageURL:    dataURL(imageData, mimeType),
		Duration:    fmt.Sprintf("%d", int(durationSec)),
		AspectRatio: "16:9",
	}

	log.Printf("[Kling] Starting scene generation (promptLen=%d, imageSize=%d bytes, duration=%.0fs)",
		len(prompt), len(imageData), durationSec)

	return s.run(ctx, falSceneModel, req)
}

// GenerateTransition generates a clip that morphs from startFrame to endFrame.
// Used by the export pipeline between adjacent scene clips.
func (s *KlingVideoService) GenerateTransition(ctx context.Context, startFrame, endFrame []byte, prompt string, durationSec float64) ([]byte, error) {
	if durationSec <= 0 {
		durationSec = falDefaultDuration
	}

	req := falSubmitRequest{
		Prompt:       prompt,
		ImageURL:     dataURL(startFrame, "image/png"),
		TailImageURL: dataURL(endFrame, "image/png"),
		Duration:     fmt.Sprintf("%d", int(durationSec)),
		AspectRatio:  "16:9",
	}

	log.Printf("[Kling] Starting transition generation (frames=%d+%d bytes, duration=%.0fs)",
		len(startFrame), len(endFrame), durationSec)

	return s.run(ctx, falSceneModel, req)
}

func (s *KlingVideoService) run(ctx context.Context, model string, reqBody falSubmitRequest) ([]byte, error) {
	submitted, err := s.submit(ctx, model, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to submit generation: %w", err)
	}

	log.Printf("[Kling] Generation submitted, request_id=%s", submitted.RequestID)

	if err := s.pollUntilComplete(ctx, submitted); err != nil {
		return nil, err
	}

	videoURL, err := s.fetchResultURL(ctx, submitted)
	if err != nil {
		return nil, err
	}

	videoBytes, err := s.download(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}
	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[Kling] Video downloaded successfully (%d bytes)", len(videoBytes))
	return videoBytes, nil
}

func (s *KlingVideoService) submit(ctx context.Context, model string, reqBody falSubmitRequest) (*falSubmitResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", falQueueBaseURL+"/"+model, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkProviderError("fal", "submit", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return nil, NewHTTPProviderError("fal", "submit", resp.StatusCode, string(body))
	}

	var submitted falSubmitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return nil, fmt.Errorf("failed to parse submit response: %w (body: %s)", err, truncate(string(body), 300))
	}
	if submitted.RequestID == "" {
		return nil, fmt.Errorf("no request_id in submit response: %s", truncate(string(body), 300))
	}

	return &submitted, nil
}

// pollUntilComplete polls status_url with exponential backoff: 5s → 7.5s →
// 11.25s → 16.8s → 20s (capped), after an initial 15s wait. Hard timeout
// applies per clip.
func (s *KlingVideoService) pollUntilComplete(ctx context.Context, submitted *falSubmitResponse) error {
	deadline := time.Now().Add(falMaxPollDuration)
	pollCount := 0
	currentInterval := falPollMinInterval

	select {
	case <-ctx.Done():
		return fmt.Errorf("video generation cancelled during initial wait: %w", ctx.Err())
	case <-time.After(falInitialDelay):
	}

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("video generation timed out after %v (polled %d times, request_id=%s)",
				falMaxPollDuration, pollCount, submitted.RequestID)
		}

		pollCount++

		status, err := s.getStatus(ctx, submitted.StatusURL)
		if err != nil {
			return fmt.Errorf("failed to poll video status (attempt %d): %w", pollCount, err)
		}

		switch status.Status {
		case "COMPLETED":
			log.Printf("[Kling] Poll %d: completed", pollCount)
			return nil

		case "IN_QUEUE", "IN_PROGRESS":
			log.Printf("[Kling] Poll %d: status=%s (next poll in %v)", pollCount, status.Status, currentInterval)

			select {
			case <-ctx.Done():
				return fmt.Errorf("video generation cancelled: %w", ctx.Err())
			case <-time.After(currentInterval):
			}

			next := time.Duration(float64(currentInterval) * falPollBackoffFactor)
			if next > falPollMaxInterval {
				next = falPollMaxInterval
			}
			currentInterval = next

		default:
			errMsg := status.Error
			if errMsg == "" {
				errMsg = "unknown error"
			}
			return fmt.Errorf("video generation failed: %s (status=%s, request_id=%s)",
				errMsg, status.Status, submitted.RequestID)
		}
	}
}

func (s *KlingVideoService) getStatus(ctx context.Context, statusURL string) (*falStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkProviderError("fal", "status", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, NewHTTPProviderError("fal", "status", resp.StatusCode, string(body))
	}

	var status falStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w (body: %s)", err, truncate(string(body), 300))
	}

	return &status, nil
}

func (s *KlingVideoService) fetchResultURL(ctx context.Context, submitted *falSubmitResponse) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", submitted.ResponseURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", NewNetworkProviderError("fal", "result", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", NewHTTPProviderError("fal", "result", resp.StatusCode, string(body))
	}

	var result falResultResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse result response: %w (body: %s)", err, truncate(string(body), 300))
	}
	if result.Video.URL == "" {
		return "", fmt.Errorf("no video url in result: %s", truncate(string(body), 300))
	}

	return result.Video.URL, nil
}

func (s *KlingVideoService) download(ctx context.Context, videoURL string) ([]byte, error) {
	// Generated clips can be large; use a longer timeout than the poll calls
	downloadClient := &http.Client{Timeout: 180 * time.Second}

	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func dataURL(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
