package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const geminiImageModel = "gemini-2.5-flash-image"

// StylePrompts maps the built-in style names to the instruction text sent to
// the image model. "custom" uses the project's own style prompt instead.
var StylePrompts = map[string]string{
	"ghibli":    "Transform this photo into a Studio Ghibli style illustration: soft watercolor textures, warm natural lighting, hand-painted look, gentle pastel palette. Keep every person, face, and object recognizable and in the same position.",
	"lego":      "Transform this photo into a LEGO brick world: every person and object rebuilt from glossy plastic LEGO bricks and minifigures, bright saturated colors, studio lighting. Keep the composition and poses recognizable.",
	"minecraft": "Transform this photo into a Minecraft scene: blocky voxel geometry, pixelated cube textures, characters as Minecraft-style figures. Keep the composition and subjects recognizable.",
	"simpsons":  "Transform this photo into The Simpsons cartoon style: yellow skin tones, bold flat colors, thick outlines, the show's characteristic character design. Keep every person and the scene layout recognizable.",
}

// ResolveStylePrompt returns the instruction text for a style, preferring a
// custom prompt when supplied. Unknown styles with no custom prompt are
// rejected before any task is launched.
func ResolveStylePrompt(style string, customPrompt *string) (string, error) {
	if customPrompt != nil && *customPrompt != "" {
		return *customPrompt, nil
	}
	prompt, ok := StylePrompts[style]
	if !ok {
		return "", fmt.Errorf("unknown style %q", style)
	}
	return prompt, nil
}

// IsValidStyle reports whether style is a built-in style name or "custom".
func IsValidStyle(style string) bool {
	if style == "custom" {
		return true
	}
	_, ok := StylePrompts[style]
	return ok
}

// GeminiService performs image-to-image style transfer through the Gemini
// generateContent endpoint.
type GeminiService struct {
	apiKey string
	client *http.Client
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 300 * time.Second},
	}
}

// Gemini API request/response structures
type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ApplyStyle sends the source photo plus the style instruction and returns
// the restyled image bytes. Each call is independent and safe to run in
// parallel across photos.
func (s *GeminiService) ApplyStyle(ctx context.Context, imageData []byte, mimeType, stylePrompt string) ([]byte, error) {
	reqBody := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: stylePrompt},
					{
						InlineData: &geminiInlineData{
							MimeType: mimeType,
							Data:     base64.StdEncoding.EncodeToString(imageData),
						},
					},
				},
			},
		},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	return s.doGenerateContent(ctx, reqBody)
}

func (s *GeminiService) doGenerateContent(ctx context.Context, reqBody geminiGenerateContentRequest) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", geminiImageModel, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewNetworkProviderError("gemini", "generateContent", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPProviderError("gemini", "generateContent", resp.StatusCode, string(bodyBytes))
	}

	var geminiResp geminiGenerateContentResponse
	if err := json.Unmarshal(bodyBytes, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	var textParts []string
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			imageData, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 image: %w", err)
			}
			return imageData, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, fmt.Errorf("gemini returned text instead of image: %s", truncate(textParts[0], 200))
	}
	return nil, fmt.Errorf("no image data found in response (got %d parts, none with inlineData)", len(geminiResp.Candidates[0].Content.Parts))
}
