package gemini

import (
	"context"
	"fmt"
	log "log/slog"

	"google.golang.org/genai"

	"eryon/internal/chat"
	"eryon/internal/config"
	"eryon/internal/geo"
	"eryon/internal/mode"
)

type TextResult struct {
	Text      string
	Grounding []chat.GroundingChunk
}

// textRequest picks the model and generation config for a single-turn text mode.
func textRequest(models config.Models, m mode.Mode, loc *geo.Coordinates) (string, *genai.GenerateContentConfig) {
	model := models.Chat
	cfg := &genai.GenerateContentConfig{}

	switch m {
	case mode.Thinking:
		model = models.Thinking
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(models.ThinkingBudget),
		}
	case mode.Fast:
		model = models.Fast
	case mode.Search:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case mode.Maps:
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
		if loc != nil {
			cfg.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{
						Latitude:  genai.Ptr(loc.Latitude),
						Longitude: genai.Ptr(loc.Longitude),
					},
				},
			}
		}
	}

	return model, cfg
}

func (s *Service) GenerateText(ctx context.Context, prompt string, m mode.Mode, loc *geo.Coordinates) (TextResult, error) {
	model, cfg := textRequest(s.models, m, loc)

	log.Debug("Generating text", "mode", m, "model", model)

	resp, err := s.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return TextResult{}, fmt.Errorf("generate content: %w", err)
	}

	return TextResult{
		Text:      resp.Text(),
		Grounding: groundingFrom(resp),
	}, nil
}

func groundingFrom(resp *genai.GenerateContentResponse) []chat.GroundingChunk {
	c := firstCandidate(resp)
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}

	var out []chat.GroundingChunk
	for _, g := range c.GroundingMetadata.GroundingChunks {
		if g == nil {
			continue
		}
		var chunk chat.GroundingChunk
		if g.Web != nil {
			chunk.Web = &chat.Source{URI: g.Web.URI, Title: g.Web.Title}
		}
		if g.Maps != nil {
			chunk.Maps = &chat.Source{URI: g.Maps.URI, Title: g.Maps.Title}
		}
		if chunk.Web == nil && chunk.Maps == nil {
			continue
		}
		out = append(out, chunk)
	}
	return out
}
