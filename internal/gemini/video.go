package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"eryon/internal/mode"
)

type VideoRequest struct {
	// APIKey is the key selected for video generation. Each request builds a
	// fresh client from it so a newly selected key takes effect at once.
	APIKey string
	Prompt string
	Image  *File
	Aspect mode.AspectRatio
	// OnProgress is called with 0, 1, 2, ... before each poll wait.
	OnProgress func(step int)
}

type videoBackend interface {
	start(ctx context.Context, apiKey, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (videoPoller, *genai.GenerateVideosOperation, error)
}

type videoPoller interface {
	poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
}

type sdkVideos struct {
	s *Service
}

type sdkPoller struct {
	client *genai.Client
}

func (v *sdkVideos) start(ctx context.Context, apiKey, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (videoPoller, *genai.GenerateVideosOperation, error) {
	client, err := v.s.newClient(ctx, apiKey)
	if err != nil {
		return nil, nil, err
	}

	op, err := client.Models.GenerateVideos(ctx, model, prompt, image, cfg)
	if err != nil {
		return nil, nil, err
	}
	return &sdkPoller{client: client}, op, nil
}

func (p *sdkPoller) poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return p.client.Operations.GetVideosOperation(ctx, op, nil)
}

// GenerateVideo starts a long-running generation, polls it to completion and
// downloads the MP4.
func (s *Service) GenerateVideo(ctx context.Context, req VideoRequest) ([]byte, error) {
	if req.APIKey == "" {
		return nil, ErrNoVideoKey
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = s.video.FallbackPrompt
	}

	var image *genai.Image
	if req.Image != nil {
		image = &genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MIMEType}
	}

	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     s.video.Resolution,
		AspectRatio:    string(mode.VideoAspect(req.Aspect)),
	}

	poller, op, err := s.videos.start(ctx, req.APIKey, s.models.Video, prompt, image, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate video: %w", err)
	}

	for step := 0; !op.Done; step++ {
		if req.OnProgress != nil {
			req.OnProgress(step)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.video.PollInterval):
		}

		op, err = poller.poll(ctx, op)
		if err != nil {
			return nil, fmt.Errorf("poll video operation: %w", err)
		}
		log.Debug("Polled video operation", "name", op.Name, "done", op.Done)
	}

	if len(op.Error) > 0 {
		return nil, fmt.Errorf("video generation failed: %v", op.Error["message"])
	}

	uri := videoURI(op)
	if uri == "" {
		return nil, ErrNoVideoLink
	}

	return s.download(ctx, uri, req.APIKey)
}

func videoURI(op *genai.GenerateVideosOperation) string {
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return ""
	}
	v := op.Response.GeneratedVideos[0]
	if v == nil || v.Video == nil {
		return ""
	}
	return v.Video.URI
}

func (s *Service) download(ctx context.Context, uri, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download video: %d %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("download video: empty body")
	}
	return data, nil
}
