package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"eryon/pkg/audioconv"
)

// maxSamples caps a local transcription at ten minutes of 16 kHz audio.
const maxSamples = 10 * 60 * audioconv.TargetRate

type Options struct {
	Language        string // "auto", "en", "ru", ...
	TranslateToEn   bool
	Threads         int // <=0 => NumCPU()
	InitialPrompt   string
	TokenTimestamps bool
	MaxTokens       uint
	MaxSegmentChars uint
	BeamSize        int // >0 enables beam search
	AudioCtx        uint
	SplitOnWord     bool
	EntropyThold    float32
	TokenSumThold   float32
	Temperature     float32
	TemperatureStep float32
	Offset          time.Duration
	Duration        time.Duration
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string // detected or forced
}

// Transcriber runs whisper.cpp locally. It is used by Transcribe Audio mode
// when a model path is configured, instead of a round trip to the API.
type Transcriber struct {
	model    whisper.Model
	defaults Options
}

func NewTranscriber(modelPath string, defaults Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m, defaults: defaults}, nil
}

// TranscribeFile decodes an audio file and returns its text.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{MaxSamples: maxSamples})
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	res, err := t.TranscribePCM(ctx, pcm, t.defaults)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(res.Text), nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// pcm16k must be mono @ 16 kHz, float32 in [-1, 1]
func (t *Transcriber) TranscribePCM(ctx context.Context, pcm16k []float32, opt Options) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	if opt.Language == "" {
		opt.Language = "auto"
	}
	if err := wctx.SetLanguage(opt.Language); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(opt.TranslateToEn)

	if opt.Offset > 0 {
		wctx.SetOffset(opt.Offset)
	}
	if opt.Duration > 0 {
		wctx.SetDuration(opt.Duration)
	}

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.SplitOnWord {
		wctx.SetSplitOnWord(true)
	}
	if opt.TokenTimestamps {
		wctx.SetTokenTimestamps(true)
	}
	if opt.MaxTokens > 0 {
		wctx.SetMaxTokensPerSegment(opt.MaxTokens)
	}
	if opt.MaxSegmentChars > 0 {
		wctx.SetMaxSegmentLength(opt.MaxSegmentChars)
	}
	if opt.AudioCtx > 0 {
		wctx.SetAudioCtx(opt.AudioCtx)
	}
	if opt.BeamSize > 0 {
		wctx.SetBeamSize(opt.BeamSize)
	}
	if opt.EntropyThold != 0 {
		wctx.SetEntropyThold(opt.EntropyThold)
	}
	if opt.TokenSumThold != 0 {
		wctx.SetTokenSumThreshold(opt.TokenSumThold)
	}
	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}
	if opt.Temperature != 0 {
		wctx.SetTemperature(opt.Temperature)
	}
	if opt.TemperatureStep != 0 {
		wctx.SetTemperatureFallback(opt.TemperatureStep)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var (
		segs     []Segment
		fullText string
	)
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		if fullText == "" {
			fullText = s.Text
		} else {
			fullText += " " + s.Text
		}
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return Result{
		Text:     fullText,
		Segments: segs,
		Language: lang,
	}, nil
}
