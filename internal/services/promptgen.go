package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// PromptProvider generates an animation prompt describing how a still photo
// should move as a short clip. Two implementations exist (Gemini via the
// Gen AI SDK, OpenAI vision); the active one is chosen by config.
type PromptProvider interface {
	GeneratePrompt(ctx context.Context, imageData []byte, mimeType string, style *string) (string, error)
}

const geminiPromptModel = "gemini-2.5-flash"

// animationPromptInstruction is shared by both providers so switching
// providers does not change the product voice.
const animationPromptInstruction = `Look at this image and write a short video-animation prompt (2-3 sentences) describing subtle, natural motion that would bring it to life: gentle camera drift, ambient movement (hair, fabric, foliage, water), soft light changes. Keep every subject recognizable and in place. Avoid dramatic action, morphing, or scene changes. Respond with the prompt text only.`

// GeminiPromptService generates animation prompts with the Gen AI SDK.
type GeminiPromptService struct {
	apiKey string
	model  string
}

func NewGeminiPromptService(apiKey string) *GeminiPromptService {
	return &GeminiPromptService{apiKey: apiKey, model: geminiPromptModel}
}

func (s *GeminiPromptService) GeneratePrompt(ctx context.Context, imageData []byte, mimeType string, style *string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	instruction := animationPromptInstruction
	if style != nil && *style != "" {
		instruction += fmt.Sprintf(" The image is rendered in a %s art style; the motion should suit that style.", *style)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(imageData, mimeType),
		genai.NewPartFromText(instruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return "", NewNetworkProviderError("gemini", "generatePrompt", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty prompt from gemini")
	}

	log.Printf("[PromptGen] Gemini produced prompt (%d chars)", len(text))
	return text, nil
}
