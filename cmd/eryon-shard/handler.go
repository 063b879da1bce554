package main

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	"eryon/internal/bus"
	"eryon/internal/errmap"
	"eryon/internal/gemini"
	"eryon/internal/mode"
)

type answerer interface {
	Answer(ctx context.Context, m mode.Mode, text string) (gemini.TextResult, error)
}

type speaker interface {
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
}

// newHandler answers bus messages whose kind names a mode. An empty kind
// means chat and "tts" replies with raw PCM in Audio.
func newHandler(name string, a answerer, sp speaker) bus.Handler {
	return func(ctx context.Context, m *bus.Message) *bus.Message {
		kind := strings.TrimSpace(m.Kind)
		if kind == "" {
			kind = mode.Chat.Slug()
		}

		md, err := mode.Parse(kind)
		if err != nil {
			return m.Reply(name, bus.KindError, err.Error())
		}

		if md == mode.TTS {
			pcm, err := sp.TextToSpeech(ctx, m.Content)
			if err != nil {
				return failure(name, m, err)
			}
			r := m.Reply(name, bus.KindReply, fmt.Sprintf("audio/pcm;rate=%d", gemini.SpeechRate))
			r.Audio = pcm
			return r
		}

		res, err := a.Answer(ctx, md, m.Content)
		if err != nil {
			return failure(name, m, err)
		}
		return m.Reply(name, bus.KindReply, withSources(res))
	}
}

func failure(name string, m *bus.Message, err error) *bus.Message {
	log.Error("Failed to answer", "from", m.From, "kind", m.Kind, "err", err)
	text, _ := errmap.Friendly(err)
	return m.Reply(name, bus.KindError, text)
}

func withSources(res gemini.TextResult) string {
	if len(res.Grounding) == 0 {
		return res.Text
	}

	var b strings.Builder
	b.WriteString(res.Text)
	b.WriteString("\n\nSources:")
	for _, g := range res.Grounding {
		fmt.Fprintf(&b, "\n- %s %s", g.Label(), g.Link())
	}
	return b.String()
}
