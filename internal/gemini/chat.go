package gemini

import (
	"context"
	"fmt"
	log "log/slog"

	"google.golang.org/genai"
)

// StartChat opens a fresh multi-turn chat, discarding any previous history.
func (s *Service) StartChat(ctx context.Context, system string) error {
	chat, err := s.client.Chats.Create(ctx, s.models.Chat, &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(system),
	}, nil)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	s.mu.Lock()
	s.chat = chat
	s.mu.Unlock()

	log.Debug("Chat started", "model", s.models.Chat)
	return nil
}

func (s *Service) SendChat(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chat == nil {
		return "", ErrChatNotStarted
	}

	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("send chat: %w", err)
	}

	return resp.Text(), nil
}
