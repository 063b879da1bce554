package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"eryon/internal/assistant"
	"eryon/internal/audio"
	"eryon/internal/chat"
	"eryon/internal/config"
	"eryon/internal/gemini"
	"eryon/internal/geo"
	"eryon/internal/ipc"
	"eryon/internal/live"
	"eryon/internal/notify"
	"eryon/internal/proxy"
	"eryon/internal/ui"
	"eryon/pkg/audioconv"
	"eryon/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type options struct {
	configPath string
	envFile    string
	logLevel   string
	logFile    string
	noVoice    bool
}

func main() {
	var opts options
	cli.StringVarP(&opts.configPath, "config", "c", "eryon.yaml", "Config file path")
	cli.StringVarP(&opts.envFile, "env", "e", ".env", "Env file path")
	cli.StringVarP(&opts.logLevel, "log", "l", "info", "Log level")
	cli.StringVar(&opts.logFile, "log-file", "eryon.log", "Log file; the terminal belongs to the UI")
	cli.BoolVar(&opts.noVoice, "no-voice", false, "Disable microphone and speaker features")
	cli.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run owns every resource it opens, so all of them are released before main
// decides the exit code.
func run(ctx context.Context, opts options) error {
	lf, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer lf.Close()

	log.SetDefault(log.New(tint.NewHandler(lf, &tint.Options{
		Level:   logLevelMap[opts.logLevel],
		NoColor: true,
	})))

	log.Info("Booting up")

	godotenv.Load(opts.envFile)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return failed("Failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return failed("Invalid config", err)
	}

	log.Debug("Loaded config", "path", opts.configPath)

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return failed("Failed to dial socks proxy", err, "proxy", cfg.Proxy)
	}

	svc, err := gemini.New(ctx, gemini.Options{
		APIKey:     cfg.APIKey,
		HTTPClient: httpClient,
		Models:     cfg.Models,
		Voices:     cfg.Voices,
		Video:      cfg.Video,
	})
	if err != nil {
		return failed("Failed to create client", err)
	}
	if err := svc.StartChat(ctx, cfg.SystemPrompt); err != nil {
		return failed("Failed to start chat", err)
	}

	log.Debug("Loaded client")

	locator, err := geo.NewStatic(cfg.Maps.Location, cfg.Maps.Disabled)
	if err != nil {
		return failed("Bad maps location", err, "location", cfg.Maps.Location)
	}

	var p *tea.Program
	send := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}

	var conv *live.Conversation
	asstOpts := assistant.Options{
		Service:      svc,
		Conversation: chat.NewConversation(config.Greeting),
		Locator:      locator,
		OutputDir:    cfg.OutputDir,
		VideoAPIKey:  cfg.VideoAPIKey,
		LiveActive: func() bool {
			return conv != nil && conv.State() != live.Idle
		},
		OnUpdate: func() { send(ui.RefreshMsg{}) },
	}

	if cfg.Whisper.ModelPath != "" {
		whisper, err := stt.NewTranscriber(cfg.Whisper.ModelPath, stt.Options{Language: cfg.Whisper.Language})
		if err != nil {
			log.Warn("Local transcription disabled", "model", cfg.Whisper.ModelPath, "err", err)
		} else {
			defer whisper.Close()
			asstOpts.Transcriber = whisper
			log.Debug("Loaded whisper")
		}
	}

	asst := assistant.New(asstOpts)
	uiOpts := ui.Options{Context: ctx, Assistant: asst}

	if !opts.noVoice {
		rec := audio.NewRecorder()
		if err := rec.Init(); err != nil {
			log.Warn("Audio disabled", "err", err)
		} else {
			defer rec.Close()

			notifier := notify.New(cfg.Live.BeepFile)
			conv = newLive(cfg, svc, rec, notifier)
			// Runs before rec.Close so the streams are gone before portaudio terminates.
			defer conv.Stop()
			uiOpts.Live = conv
			uiOpts.Record = func(context.Context) (string, error) {
				return recordMemo(rec, cfg.OutputDir)
			}
			uiOpts.Play = notifier.PlayWAV

			log.Debug("Loaded audio")
		}
	}

	p = tea.NewProgram(ui.New(uiOpts), tea.WithAltScreen(), tea.WithContext(ctx))

	srv, err := ipc.Listen(cfg.SocketPath, func(m ipc.ControlMessage) error {
		msg, err := ui.ControlCommand(m)
		if err != nil {
			return err
		}
		send(msg)
		return nil
	})
	if err != nil {
		log.Warn("Control socket disabled", "path", cfg.SocketPath, "err", err)
	} else {
		defer srv.Close()
	}

	log.Info("Boot up - successful")

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return failed("UI exited", err)
	}

	log.Info("Bye")
	return nil
}

func newLive(cfg *config.Config, svc *gemini.Service, rec *audio.Recorder, notifier *notify.Notifier) *live.Conversation {
	opts := live.Options{
		InputRate:  cfg.Live.InputRate,
		OutputRate: cfg.Live.OutputRate,
		Connect: func(ctx context.Context) (live.Session, error) {
			s, err := svc.ConnectLive(ctx, cfg.SystemPrompt)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		OpenSource: func() (live.Source, error) {
			return rec.OpenCapture(cfg.Live.FrameSize)
		},
		OpenSink: func(rate int) (live.Sink, error) {
			// 20ms device buffer.
			return rec.OpenSpeaker(rate, rate/50)
		},
	}
	if cfg.Live.Duck {
		opts.Ducker = audio.NewDucker([]string{"eryon"}, cfg.Live.DuckMin, cfg.Live.DuckFactor)
	}
	if cfg.Live.Tones {
		opts.OnTone = func(start bool) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := notifier.Tone(ctx, start); err != nil {
				log.Warn("Failed to play tone", "err", err)
			}
		}
	}
	return live.NewConversation(opts)
}

// recordMemo records until silence and saves a 16 kHz WAV for attaching.
func recordMemo(rec *audio.Recorder, dir string) (string, error) {
	pcm, err := rec.RecordAuto()
	if err != nil {
		return "", err
	}

	log.Info("Recorded", "samples", len(pcm), "duration", audioconv.Duration(len(pcm), audioconv.TargetRate))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "memo-"+time.Now().Format("20060102-150405")+".wav")
	if err := audioconv.WriteWAVFile(path, audioconv.Float32ToPCM16(pcm), audioconv.TargetRate); err != nil {
		return "", err
	}
	return path, nil
}

func failed(msg string, err error, args ...any) error {
	log.Error(msg, append(args, "err", err)...)
	return fmt.Errorf("%s: %w", msg, err)
}
