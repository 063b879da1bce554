package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eryon/internal/bus"
	"eryon/internal/chat"
	"eryon/internal/errmap"
	"eryon/internal/gemini"
	"eryon/internal/mode"
)

type fakeAnswerer struct {
	res  gemini.TextResult
	err  error
	mode mode.Mode
}

func (f *fakeAnswerer) Answer(_ context.Context, m mode.Mode, _ string) (gemini.TextResult, error) {
	f.mode = m
	return f.res, f.err
}

type fakeSpeaker struct{ pcm []byte }

func (f fakeSpeaker) TextToSpeech(context.Context, string) ([]byte, error) {
	return f.pcm, nil
}

func TestHandlerDefaultsToChat(t *testing.T) {
	a := &fakeAnswerer{res: gemini.TextResult{Text: "hello"}}
	h := newHandler("eryon", a, fakeSpeaker{})

	r := h(context.Background(), &bus.Message{From: "hub", To: "eryon", Content: "hi"})
	require.NotNil(t, r)
	assert.Equal(t, mode.Chat, a.mode)
	assert.Equal(t, &bus.Message{From: "eryon", To: "hub", Kind: bus.KindReply, Content: "hello"}, r)
}

func TestHandlerAppendsSources(t *testing.T) {
	a := &fakeAnswerer{res: gemini.TextResult{
		Text:      "Rain later.",
		Grounding: []chat.GroundingChunk{{Web: &chat.Source{URI: "https://weather.example", Title: "Weather"}}},
	}}
	h := newHandler("eryon", a, fakeSpeaker{})

	r := h(context.Background(), &bus.Message{From: "hub", To: "eryon", Kind: "search", Content: "weather"})
	assert.Equal(t, mode.Search, a.mode)
	assert.Equal(t, "Rain later.\n\nSources:\n- Weather https://weather.example", r.Content)
}

func TestHandlerErrors(t *testing.T) {
	a := &fakeAnswerer{err: errors.New("googleapi: Error 429: quota")}
	h := newHandler("eryon", a, fakeSpeaker{})

	r := h(context.Background(), &bus.Message{From: "hub", Kind: "fast", Content: "hi"})
	assert.Equal(t, bus.KindError, r.Kind)
	assert.Equal(t, errmap.MsgQuota, r.Content)

	r = h(context.Background(), &bus.Message{From: "hub", Kind: "juggle", Content: "hi"})
	assert.Equal(t, bus.KindError, r.Kind)
	assert.Contains(t, r.Content, "unknown mode")
}

func TestHandlerSpeech(t *testing.T) {
	h := newHandler("eryon", &fakeAnswerer{}, fakeSpeaker{pcm: []byte{1, 2, 3, 4}})

	r := h(context.Background(), &bus.Message{From: "hub", Kind: "tts", Content: "Welcome"})
	assert.Equal(t, bus.KindReply, r.Kind)
	assert.Equal(t, "audio/pcm;rate=24000", r.Content)
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Audio)
}
