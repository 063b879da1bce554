package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"eryon/internal/config"
	"eryon/internal/geo"
	"eryon/internal/mode"
)

func TestTextRequest(t *testing.T) {
	models := config.Default().Models

	model, cfg := textRequest(models, mode.Chat, nil)
	assert.Equal(t, models.Chat, model)
	assert.Nil(t, cfg.ThinkingConfig)
	assert.Empty(t, cfg.Tools)

	model, cfg = textRequest(models, mode.Thinking, nil)
	assert.Equal(t, models.Thinking, model)
	require.NotNil(t, cfg.ThinkingConfig)
	require.NotNil(t, cfg.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, int32(32768), *cfg.ThinkingConfig.ThinkingBudget)

	model, _ = textRequest(models, mode.Fast, nil)
	assert.Equal(t, models.Fast, model)

	_, cfg = textRequest(models, mode.Search, nil)
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	assert.Nil(t, cfg.ToolConfig)
}

func TestTextRequestMaps(t *testing.T) {
	models := config.Default().Models

	_, cfg := textRequest(models, mode.Maps, nil)
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleMaps)
	assert.Nil(t, cfg.ToolConfig, "no location, no retrieval config")

	_, cfg = textRequest(models, mode.Maps, &geo.Coordinates{Latitude: 52.52, Longitude: 13.405})
	require.NotNil(t, cfg.ToolConfig)
	ll := cfg.ToolConfig.RetrievalConfig.LatLng
	assert.Equal(t, 52.52, *ll.Latitude)
	assert.Equal(t, 13.405, *ll.Longitude)
}

func TestGroundingFrom(t *testing.T) {
	assert.Nil(t, groundingFrom(nil))
	assert.Nil(t, groundingFrom(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://go.dev", Title: "Go"}},
					nil,
					{},
					{Maps: &genai.GroundingChunkMaps{URI: "https://maps.example/x", Title: "Cafe"}},
				},
			},
		}},
	}

	got := groundingFrom(resp)
	require.Len(t, got, 2)
	assert.Equal(t, "https://go.dev", got[0].Web.URI)
	assert.Nil(t, got[0].Maps)
	assert.Equal(t, "Cafe", got[1].Maps.Title)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "pic.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\nrest"), 0o644))

	f, err := LoadFile(png)
	require.NoError(t, err)
	assert.Equal(t, "pic.png", f.Name)
	assert.Equal(t, "image/png", f.MIMEType)
	assert.False(t, f.IsVideo())

	noext := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(noext, []byte("plain words"), 0o644))
	f, err = LoadFile(noext)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", f.MIMEType)

	empty := filepath.Join(dir, "empty.mp4")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadFile(empty)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileKinds(t *testing.T) {
	assert.True(t, (&File{MIMEType: "video/mp4"}).IsVideo())
	assert.True(t, (&File{MIMEType: "audio/wav"}).IsAudio())
	assert.False(t, (&File{MIMEType: "image/jpeg"}).IsAudio())
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	s, err := New(context.Background(), Options{
		APIKey:     "test-key",
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL + "/",
		Models:     cfg.Models,
		Voices:     cfg.Voices,
		Video:      cfg.Video,
	})
	require.NoError(t, err)
	return s
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGenerateTextOverHTTP(t *testing.T) {
	var path atomic.Value
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		writeJSON(t, w, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "Hello from the model"}},
				},
			}},
		})
	})

	res, err := s.GenerateText(context.Background(), "hi", mode.Fast, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello from the model", res.Text)
	assert.Empty(t, res.Grounding)
	assert.Contains(t, path.Load().(string), config.Default().Models.Fast)
}

func TestTextToSpeechOverHTTP(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role": "model",
					"parts": []any{map[string]any{
						"inlineData": map[string]any{"mimeType": "audio/L16;rate=24000", "data": pcm},
					}},
				},
			}},
		})
	})

	got, err := s.TextToSpeech(context.Background(), "say it")
	require.NoError(t, err)
	assert.Equal(t, pcm, got)
}

func TestEditImageNoImage(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "I can't draw that"}},
				},
			}},
		})
	})

	_, err := s.EditImage(context.Background(), "make it blue", &File{MIMEType: "image/png", Data: []byte{1}})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestSendChatNotStarted(t *testing.T) {
	s := &Service{}
	_, err := s.SendChat(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrChatNotStarted)
}

type fakeVideos struct {
	polls  int
	doneAt int
	uri    string
	opErr  map[string]any

	prompt string
	cfg    *genai.GenerateVideosConfig
	image  *genai.Image
}

func (f *fakeVideos) start(_ context.Context, _, _, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (videoPoller, *genai.GenerateVideosOperation, error) {
	f.prompt = prompt
	f.cfg = cfg
	f.image = image
	return f, &genai.GenerateVideosOperation{Name: "operations/1"}, nil
}

func (f *fakeVideos) poll(_ context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	f.polls++
	next := &genai.GenerateVideosOperation{Name: op.Name}
	if f.polls >= f.doneAt {
		next.Done = true
		next.Error = f.opErr
		if f.uri != "" {
			next.Response = &genai.GenerateVideosResponse{
				GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: f.uri}}},
			}
		}
	}
	return next, nil
}

func videoService(t *testing.T, backend videoBackend, client *http.Client) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Video.PollInterval = time.Millisecond
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{
		httpClient: client,
		models:     cfg.Models,
		video:      cfg.Video,
		videos:     backend,
	}
}

func TestGenerateVideo(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	backend := &fakeVideos{doneAt: 3, uri: srv.URL + "/video.mp4"}
	s := videoService(t, backend, srv.Client())

	var steps []int
	data, err := s.GenerateVideo(context.Background(), VideoRequest{
		APIKey:     "video-key",
		Image:      &File{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}},
		Aspect:     mode.Portrait,
		OnProgress: func(step int) { steps = append(steps, step) },
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("mp4-bytes"), data)
	assert.Equal(t, "video-key", gotKey)
	assert.Equal(t, []int{0, 1, 2}, steps)
	assert.Equal(t, 3, backend.polls)

	assert.Equal(t, "Animate this image beautifully.", backend.prompt)
	assert.Equal(t, "720p", backend.cfg.Resolution)
	assert.Equal(t, "9:16", backend.cfg.AspectRatio)
	assert.Equal(t, int32(1), backend.cfg.NumberOfVideos)
	require.NotNil(t, backend.image)
	assert.Equal(t, "image/jpeg", backend.image.MIMEType)
}

func TestGenerateVideoErrors(t *testing.T) {
	s := videoService(t, &fakeVideos{doneAt: 1}, nil)

	_, err := s.GenerateVideo(context.Background(), VideoRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoVideoKey)

	_, err = s.GenerateVideo(context.Background(), VideoRequest{APIKey: "k", Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoVideoLink)

	s = videoService(t, &fakeVideos{doneAt: 1, opErr: map[string]any{"message": "Requested entity was not found."}}, nil)
	_, err = s.GenerateVideo(context.Background(), VideoRequest{APIKey: "k", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Requested entity was not found.")
}

func TestGenerateVideoCancelled(t *testing.T) {
	s := videoService(t, &fakeVideos{doneAt: 1000}, nil)
	s.video.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.GenerateVideo(ctx, VideoRequest{
		APIKey:     "k",
		Prompt:     "waves",
		OnProgress: func(int) { cancel() },
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDownloadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := videoService(t, nil, srv.Client())
	_, err := s.download(context.Background(), srv.URL, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
