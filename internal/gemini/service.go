package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"google.golang.org/genai"

	"eryon/internal/config"
)

var (
	ErrChatNotStarted = errors.New("chat not initialized")
	ErrNoImage        = errors.New("no image generated")
	ErrNoAudio        = errors.New("TTS failed to generate audio")
	ErrNoVideoLink    = errors.New("video generation failed, no download link")
	ErrNoVideoKey     = errors.New("no video API key selected")
)

// File is an attachment sent inline with a request.
type File struct {
	Name     string
	Path     string
	MIMEType string
	Data     []byte
}

func (f *File) IsVideo() bool {
	return strings.HasPrefix(f.MIMEType, "video/")
}

func (f *File) IsAudio() bool {
	return strings.HasPrefix(f.MIMEType, "audio/")
}

func (f *File) part() *genai.Part {
	return genai.NewPartFromBytes(f.Data, f.MIMEType)
}

// LoadFile reads an attachment from disk and guesses its MIME type.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	return &File{
		Name:     filepath.Base(path),
		Path:     path,
		MIMEType: mt,
		Data:     data,
	}, nil
}

type Options struct {
	APIKey     string
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint; empty means the SDK default.
	BaseURL string

	Models           config.Models
	Voices           config.Voices
	Video            config.VideoConfig
	TranscribePrompt string
}

// Service wraps the genai SDK for every mode the assistant offers.
type Service struct {
	client     *genai.Client
	httpClient *http.Client
	baseURL    string

	models           config.Models
	voices           config.Voices
	video            config.VideoConfig
	transcribePrompt string

	videos videoBackend

	mu   sync.Mutex
	chat *genai.Chat
}

func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.TranscribePrompt == "" {
		opts.TranscribePrompt = config.TranscribePrompt
	}

	s := &Service{
		httpClient:       opts.HTTPClient,
		baseURL:          opts.BaseURL,
		models:           opts.Models,
		voices:           opts.Voices,
		video:            opts.Video,
		transcribePrompt: opts.TranscribePrompt,
	}

	client, err := s.newClient(ctx, opts.APIKey)
	if err != nil {
		return nil, err
	}
	s.client = client
	s.videos = &sdkVideos{s: s}

	return s, nil
}

func (s *Service) newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

func systemInstruction(text string) *genai.Content {
	if text == "" {
		return nil
	}
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

func firstCandidate(resp *genai.GenerateContentResponse) *genai.Candidate {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	return resp.Candidates[0]
}

// firstInlineData returns the first inline blob of the first candidate.
func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	c := firstCandidate(resp)
	if c == nil || c.Content == nil {
		return nil
	}
	for _, p := range c.Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}
