package gateway

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"oneverse/internal/models"
)

// GeminiBackend talks to the Gemini API
type GeminiBackend struct {
	client *genai.Client
}

func NewGeminiBackend(ctx context.Context, apiKey string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiBackend{client: client}, nil
}

// GeminiFactory adapts NewGeminiBackend to a BackendFactory
func GeminiFactory() BackendFactory {
	return func(ctx context.Context, apiKey string) (Backend, error) {
		return NewGeminiBackend(ctx, apiKey)
	}
}

func (b *GeminiBackend) StreamChat(ctx context.Context, model string, history []Turn, text string) iter.Seq2[string, error] {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.RoleUser
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(role)))
	}
	contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))

	return func(yield func(string, error) bool) {
		for resp, err := range b.client.Models.GenerateContentStream(ctx, model, contents, nil) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}

func (b *GeminiBackend) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	res, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func (b *GeminiBackend) GenerateImage(ctx context.Context, model, prompt string, ratio models.AspectRatio) (Image, error) {
	res, err := b.client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: defaultImageMIME,
		AspectRatio:    string(ratio),
	})
	if err != nil {
		return Image{}, fmt.Errorf("gemini generate images: %w", err)
	}
	if len(res.GeneratedImages) == 0 || res.GeneratedImages[0].Image == nil {
		return Image{}, fmt.Errorf("gemini returned no image")
	}
	img := res.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = defaultImageMIME
	}
	return Image{Bytes: img.ImageBytes, MIMEType: mime}, nil
}
