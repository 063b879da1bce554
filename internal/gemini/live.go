package gemini

import (
	"context"
	"fmt"
	log "log/slog"

	"google.golang.org/genai"
)

func (s *Service) liveConfig(system string) *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		SpeechConfig:             speechConfig(s.voices.Live),
		SystemInstruction:        systemInstruction(system),
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
}

// ConnectLive opens a bidirectional audio session on the native-audio model.
func (s *Service) ConnectLive(ctx context.Context, system string) (*genai.Session, error) {
	log.Debug("Connecting live session", "model", s.models.Live, "voice", s.voices.Live)

	session, err := s.client.Live.Connect(ctx, s.models.Live, s.liveConfig(system))
	if err != nil {
		return nil, fmt.Errorf("connect live: %w", err)
	}
	return session, nil
}
