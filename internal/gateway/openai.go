package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"oneverse/internal/models"
)

const DefaultOpenAIBaseURL = "https://openrouter.ai/api/v1"

// OpenAIBackend talks to any OpenAI-compatible endpoint (OpenRouter by default)
type OpenAIBackend struct {
	client openai.Client
}

func NewOpenAIBackend(apiKey, baseURL string) *OpenAIBackend {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHeader("X-Title", "OneVerse"),
	)
	return &OpenAIBackend{client: client}
}

// OpenAIFactory returns a BackendFactory bound to baseURL
func OpenAIFactory(baseURL string) BackendFactory {
	return func(_ context.Context, apiKey string) (Backend, error) {
		return NewOpenAIBackend(apiKey, baseURL), nil
	}
}

func (b *OpenAIBackend) StreamChat(ctx context.Context, model string, history []Turn, text string) iter.Seq2[string, error] {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	for _, t := range history {
		if t.Role == RoleModel {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}
	messages = append(messages, openai.UserMessage(text))

	return func(yield func(string, error) bool) {
		stream := b.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:    model,
			Messages: messages,
		})
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("openai stream: %w", err))
		}
	}
}

func (b *OpenAIBackend) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *OpenAIBackend) GenerateImage(ctx context.Context, model, prompt string, ratio models.AspectRatio) (Image, error) {
	resp, err := b.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          model,
		N:              openai.Int(1),
		Size:           openAISize(ratio),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return Image{}, fmt.Errorf("openai generate image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Image{}, fmt.Errorf("openai returned no image")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Image{}, fmt.Errorf("decode image payload: %w", err)
	}
	return Image{Bytes: data, MIMEType: defaultImageMIME}, nil
}

func openAISize(ratio models.AspectRatio) openai.ImageGenerateParamsSize {
	switch ratio {
	case models.AspectPortrait:
		return openai.ImageGenerateParamsSize1024x1792
	case models.AspectLandscape:
		return openai.ImageGenerateParamsSize1792x1024
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}
