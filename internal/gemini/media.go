package gemini

import (
	"context"
	"fmt"
	log "log/slog"

	"google.golang.org/genai"

	"eryon/internal/mode"
)

// AnalyzeMedia sends f followed by prompt. Video goes to the stronger model.
func (s *Service) AnalyzeMedia(ctx context.Context, prompt string, f *File) (string, error) {
	model := s.models.Analyze
	if f.IsVideo() {
		model = s.models.AnalyzeVideo
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{f.part(), genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	log.Debug("Analyzing media", "model", model, "mime", f.MIMEType, "bytes", len(f.Data))

	resp, err := s.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("analyze media: %w", err)
	}
	return resp.Text(), nil
}

// Transcribe asks the API for a verbatim transcript of an audio attachment.
func (s *Service) Transcribe(ctx context.Context, f *File) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{f.part(), genai.NewPartFromText(s.transcribePrompt)}, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.models.Transcribe, contents, nil)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return resp.Text(), nil
}

// GenerateImage returns PNG bytes.
func (s *Service) GenerateImage(ctx context.Context, prompt string, aspect mode.AspectRatio) ([]byte, error) {
	resp, err := s.client.Models.GenerateImages(ctx, s.models.Image, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
		AspectRatio:    string(aspect),
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, ErrNoImage
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}

// EditImage returns the first image part of the response.
func (s *Service) EditImage(ctx context.Context, prompt string, img *File) ([]byte, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{img.part(), genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.models.EditImage, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	})
	if err != nil {
		return nil, fmt.Errorf("edit image: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil {
		return nil, ErrNoImage
	}
	return blob.Data, nil
}
