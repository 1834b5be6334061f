package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIPromptService generates animation prompts with an OpenAI vision model.
type OpenAIPromptService struct {
	client *openai.Client
	model  string
}

func NewOpenAIPromptService(apiKey string) *OpenAIPromptService {
	return &OpenAIPromptService{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4o,
	}
}

func (s *OpenAIPromptService) GeneratePrompt(ctx context.Context, imageData []byte, mimeType string, style *string) (string, error) {
	instruction := animationPromptInstruction
	if style != nil && *style != "" {
		instruction += fmt.Sprintf(" The image is rendered in a %s art style; the motion should suit that style.", *style)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: instruction},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		MaxTokens: 200,
	})
	if err != nil {
		return "", classifyOpenAIError("generatePrompt", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty prompt from openai")
	}

	log.Printf("[PromptGen] OpenAI produced prompt (%d chars)", len(text))
	return text, nil
}

func classifyOpenAIError(op string, err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		return &ProviderError{
			Provider:   "openai",
			Op:         op,
			StatusCode: apiErr.HTTPStatusCode,
			Retryable:  retryableStatus(apiErr.HTTPStatusCode),
			Err:        err,
		}
	}
	return NewNetworkProviderError("openai", op, err)
}
