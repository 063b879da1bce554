package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// SpeechRate is the sample rate of PCM returned by TextToSpeech.
const SpeechRate = 24000

func speechConfig(voice string) *genai.SpeechConfig {
	return &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
		},
	}
}

// TextToSpeech returns raw mono PCM16 at SpeechRate.
func (s *Service) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.models.TTS, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig:       speechConfig(s.voices.TTS),
	})
	if err != nil {
		return nil, fmt.Errorf("text to speech: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil {
		return nil, ErrNoAudio
	}
	return blob.Data, nil
}
