package ai

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/snapnote/internal/errors"
)

type openAIVision struct {
	client      *openai.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
}

func newOpenAIVision(cfg *VisionConfig) *openAIVision {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &openAIVision{
		client:      openai.NewClientWithConfig(clientConfig),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (o *openAIVision) Extract(ctx context.Context, image []byte, mediaType string) (string, error) {
	if o.apiKey == "" {
		return "", errors.CredentialMissing("openai")
	}

	dataURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: visionSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh},
					},
					{Type: openai.ChatMessagePartTypeText, Text: visionInstruction},
					{Type: openai.ChatMessagePartTypeText, Text: visionSchemaPrompt},
				},
			},
		},
	})
	if err != nil {
		return "", errors.InferenceUnavailable("openai chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.InferenceUnavailable("openai returned no choices", nil)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.InferenceUnavailable("openai returned empty content", nil)
	}
	return text, nil
}
