// Package assistant turns one user submission into a chat exchange: it records
// the user message, asks the service for the mode's answer and resolves the
// placeholder reply with text, media or a friendly error.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"eryon/internal/chat"
	"eryon/internal/errmap"
	"eryon/internal/gemini"
	"eryon/internal/geo"
	"eryon/internal/mode"
	"eryon/pkg/audioconv"
)

var (
	ErrEmptyInput       = errors.New("nothing to send")
	ErrBusy             = errors.New("a request is already in progress")
	ErrLiveActive       = errors.New("live conversation is active")
	ErrFileRequired     = errors.New("this mode needs an attached file")
	ErrVideoKeyRequired = errors.New("video generation requires an API key")
	ErrTextOnly         = errors.New("mode is not available here")
)

// VideoLoadingMessages cycle on the placeholder while a video renders.
var VideoLoadingMessages = []string{
	"Contacting the visual cortex...",
	"Rendering digital light...",
	"Composing cinematic sequences...",
	"Almost there, the pixels are settling...",
	"Finalizing the motion picture...",
	"This is taking a bit longer than usual, but great art takes time!",
}

// Service is the generative backend. *gemini.Service implements it.
type Service interface {
	SendChat(ctx context.Context, text string) (string, error)
	GenerateText(ctx context.Context, prompt string, m mode.Mode, loc *geo.Coordinates) (gemini.TextResult, error)
	AnalyzeMedia(ctx context.Context, prompt string, f *gemini.File) (string, error)
	Transcribe(ctx context.Context, f *gemini.File) (string, error)
	GenerateImage(ctx context.Context, prompt string, aspect mode.AspectRatio) ([]byte, error)
	EditImage(ctx context.Context, prompt string, img *gemini.File) ([]byte, error)
	GenerateVideo(ctx context.Context, req gemini.VideoRequest) ([]byte, error)
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
}

// Transcriber transcribes audio files locally.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

type Options struct {
	Service      Service
	Conversation *chat.Conversation
	Locator      geo.Locator
	OutputDir    string
	VideoAPIKey  string

	// Optional.
	Transcriber Transcriber
	LiveActive  func() bool
	OnUpdate    func()
}

type Request struct {
	Text   string
	File   *gemini.File
	Mode   mode.Mode
	Aspect mode.AspectRatio
}

type Assistant struct {
	svc         Service
	conv        *chat.Conversation
	locator     geo.Locator
	transcriber Transcriber
	outputDir   string
	liveActive  func() bool
	onUpdate    func()

	mu       sync.Mutex
	busy     bool
	videoKey string
}

func New(opts Options) *Assistant {
	if opts.Conversation == nil {
		opts.Conversation = chat.NewConversation("")
	}
	return &Assistant{
		svc:         opts.Service,
		conv:        opts.Conversation,
		locator:     opts.Locator,
		transcriber: opts.Transcriber,
		outputDir:   opts.OutputDir,
		liveActive:  opts.LiveActive,
		onUpdate:    opts.OnUpdate,
		videoKey:    opts.VideoAPIKey,
	}
}

func (a *Assistant) Conversation() *chat.Conversation { return a.conv }

func (a *Assistant) SelectVideoKey(key string) {
	a.mu.Lock()
	a.videoKey = strings.TrimSpace(key)
	a.mu.Unlock()
}

func (a *Assistant) VideoKeySelected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.videoKey != ""
}

func (a *Assistant) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}

func (a *Assistant) currentVideoKey() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.videoKey
}

func (a *Assistant) notify() {
	if a.onUpdate != nil {
		a.onUpdate()
	}
}

// Check reports why req would be rejected without touching the conversation.
func (a *Assistant) Check(req Request) error {
	if strings.TrimSpace(req.Text) == "" && req.File == nil {
		return ErrEmptyInput
	}
	if a.liveActive != nil && a.liveActive() {
		return ErrLiveActive
	}
	if a.Busy() {
		return ErrBusy
	}
	if req.Mode.NeedsFile() && req.File == nil {
		return ErrFileRequired
	}
	if req.Mode.IsVideo() && !a.VideoKeySelected() {
		return ErrVideoKeyRequired
	}
	return nil
}

// Send runs one exchange and returns the resolved Eryon message. Rejected
// requests leave the conversation untouched. Failures after that point are
// recorded as a friendly message and also returned.
func (a *Assistant) Send(ctx context.Context, req Request) (chat.Message, error) {
	if err := a.Check(req); err != nil {
		return chat.Message{}, err
	}

	a.mu.Lock()
	if a.busy {
		a.mu.Unlock()
		return chat.Message{}, ErrBusy
	}
	a.busy = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.busy = false
		a.mu.Unlock()
		a.notify()
	}()

	text := strings.TrimSpace(req.Text)
	a.conv.Add(chat.Message{Author: chat.User, Text: text})
	id := a.conv.AddLoading()
	a.notify()

	log.Debug("Sending", "mode", req.Mode, "file", req.File != nil)

	resp, err := a.dispatch(ctx, id, text, req)
	if err != nil {
		msg, reset := errmap.Friendly(err)
		if reset {
			a.SelectVideoKey("")
		}
		log.Error("Request failed", "mode", req.Mode, "err", err)
		a.conv.Fail(id, msg)
	} else {
		a.conv.Resolve(id, resp)
	}

	m, _ := a.conv.Get(id)
	return m, err
}

func (a *Assistant) dispatch(ctx context.Context, id, text string, req Request) (chat.Response, error) {
	var resp chat.Response

	switch req.Mode {
	case mode.Chat:
		out, err := a.svc.SendChat(ctx, text)
		if err != nil {
			return resp, err
		}
		resp.Text = out

	case mode.GenerateImage:
		img, err := a.svc.GenerateImage(ctx, text, req.Aspect)
		if err != nil {
			return resp, err
		}
		resp.ImagePath, err = a.save("image", id, ".png", img)
		return resp, err

	case mode.EditImage:
		img, err := a.svc.EditImage(ctx, text, req.File)
		if err != nil {
			return resp, err
		}
		resp.ImagePath, err = a.save("image", id, ".png", img)
		return resp, err

	case mode.GenerateVideo, mode.AnimateImage:
		video, err := a.svc.GenerateVideo(ctx, gemini.VideoRequest{
			APIKey: a.currentVideoKey(),
			Prompt: text,
			Image:  imageOnly(req.File),
			Aspect: req.Aspect,
			OnProgress: func(step int) {
				a.conv.SetText(id, VideoLoadingMessages[step%len(VideoLoadingMessages)])
				a.notify()
			},
		})
		if err != nil {
			return resp, err
		}
		resp.VideoPath, err = a.save("video", id, ".mp4", video)
		return resp, err

	case mode.AnalyzeVideo:
		out, err := a.svc.AnalyzeMedia(ctx, text, req.File)
		if err != nil {
			return resp, err
		}
		resp.Text = out

	case mode.Transcribe:
		out, err := a.transcribe(ctx, req.File)
		if err != nil {
			return resp, err
		}
		resp.Text = out

	case mode.TTS:
		pcm, err := a.svc.TextToSpeech(ctx, text)
		if err != nil {
			return resp, err
		}
		resp.AudioPath, err = a.saveSpeech(id, pcm)
		return resp, err

	default:
		res, err := a.answerText(ctx, req.Mode, text)
		if err != nil {
			return resp, err
		}
		resp.Text = res.Text
		resp.Grounding = res.Grounding
	}

	return resp, nil
}

func (a *Assistant) answerText(ctx context.Context, m mode.Mode, text string) (gemini.TextResult, error) {
	var loc *geo.Coordinates
	if m == mode.Maps {
		c, err := geo.Locate(ctx, a.locator)
		if err != nil {
			return gemini.TextResult{}, err
		}
		loc = &c
	}
	return a.svc.GenerateText(ctx, text, m, loc)
}

// Answer serves a single text request outside the conversation. Only modes
// that answer with text are accepted.
func (a *Assistant) Answer(ctx context.Context, m mode.Mode, text string) (gemini.TextResult, error) {
	if strings.TrimSpace(text) == "" {
		return gemini.TextResult{}, ErrEmptyInput
	}

	switch m {
	case mode.Chat:
		out, err := a.svc.SendChat(ctx, text)
		return gemini.TextResult{Text: out}, err
	case mode.Thinking, mode.Fast, mode.Search, mode.Maps:
		return a.answerText(ctx, m, text)
	default:
		return gemini.TextResult{}, fmt.Errorf("%w: %s", ErrTextOnly, m)
	}
}

func (a *Assistant) transcribe(ctx context.Context, f *gemini.File) (string, error) {
	if a.transcriber != nil && f.Path != "" {
		out, err := a.transcriber.TranscribeFile(ctx, f.Path)
		if err == nil {
			return out, nil
		}
		log.Warn("Local transcription failed, asking the API", "file", f.Name, "err", err)
	}
	return a.svc.Transcribe(ctx, f)
}

func imageOnly(f *gemini.File) *gemini.File {
	if f == nil || !strings.HasPrefix(f.MIMEType, "image/") {
		return nil
	}
	return f
}

func (a *Assistant) mediaPath(kind, id, ext string) (string, error) {
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return filepath.Join(a.outputDir, kind+"-"+id+ext), nil
}

func (a *Assistant) save(kind, id, ext string, data []byte) (string, error) {
	path, err := a.mediaPath(kind, id, ext)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", kind, err)
	}
	log.Debug("Saved media", "path", path, "bytes", len(data))
	return path, nil
}

func (a *Assistant) saveSpeech(id string, pcm []byte) (string, error) {
	path, err := a.mediaPath("speech", id, ".wav")
	if err != nil {
		return "", err
	}
	if err := audioconv.WriteWAVFile(path, pcm, gemini.SpeechRate); err != nil {
		return "", fmt.Errorf("save speech: %w", err)
	}
	return path, nil
}
