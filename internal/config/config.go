package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey       string `yaml:"api_key"`
	VideoAPIKey  string `yaml:"video_api_key"`
	Proxy        string `yaml:"proxy"`
	OutputDir    string `yaml:"output_dir"`
	SocketPath   string `yaml:"socket_path"`
	SystemPrompt string `yaml:"system_prompt"`

	Models  Models        `yaml:"models"`
	Voices  Voices        `yaml:"voices"`
	Video   VideoConfig   `yaml:"video"`
	Live    LiveConfig    `yaml:"live"`
	Maps    MapsConfig    `yaml:"maps"`
	Whisper WhisperConfig `yaml:"whisper"`
	Bus     BusConfig     `yaml:"bus"`
}

// Models names the vendor model used by every mode.
type Models struct {
	Chat           string `yaml:"chat"`
	Thinking       string `yaml:"thinking"`
	ThinkingBudget int32  `yaml:"thinking_budget"`
	Fast           string `yaml:"fast"`
	Analyze        string `yaml:"analyze"`
	AnalyzeVideo   string `yaml:"analyze_video"`
	Image          string `yaml:"image"`
	EditImage      string `yaml:"edit_image"`
	Video          string `yaml:"video"`
	TTS            string `yaml:"tts"`
	Live           string `yaml:"live"`
	Transcribe     string `yaml:"transcribe"`
}

type Voices struct {
	TTS  string `yaml:"tts"`
	Live string `yaml:"live"`
}

type VideoConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	Resolution     string        `yaml:"resolution"`
	FallbackPrompt string        `yaml:"fallback_prompt"`
}

type LiveConfig struct {
	InputRate  int     `yaml:"input_rate"`
	OutputRate int     `yaml:"output_rate"`
	FrameSize  int     `yaml:"frame_size"`
	Tones      bool    `yaml:"tones"`
	BeepFile   string  `yaml:"beep_file"`
	Duck       bool    `yaml:"duck"`
	DuckFactor float64 `yaml:"duck_factor"`
	DuckMin    int     `yaml:"duck_min"`
}

type MapsConfig struct {
	// Location is "lat,lng".
	Location string `yaml:"location"`
	Disabled bool   `yaml:"disabled"`
}

type WhisperConfig struct {
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type BusConfig struct {
	URL       string        `yaml:"url"`
	Shard     string        `yaml:"shard"`
	Reconnect time.Duration `yaml:"reconnect"`
}

func Default() *Config {
	return &Config{
		OutputDir:    "eryon-media",
		SocketPath:   "/tmp/eryon.sock",
		SystemPrompt: SystemPrompt,
		Models: Models{
			Chat:           "gemini-2.5-flash",
			Thinking:       "gemini-2.5-pro",
			ThinkingBudget: 32768,
			Fast:           "gemini-2.5-flash-lite",
			Analyze:        "gemini-2.5-flash",
			AnalyzeVideo:   "gemini-2.5-pro",
			Image:          "imagen-4.0-generate-001",
			EditImage:      "gemini-2.5-flash-image",
			Video:          "veo-3.1-fast-generate-preview",
			TTS:            "gemini-2.5-flash-preview-tts",
			Live:           "gemini-2.5-flash-native-audio-preview-09-2025",
			Transcribe:     "gemini-2.5-flash",
		},
		Voices: Voices{
			TTS:  "Kore",
			Live: "Zephyr",
		},
		Video: VideoConfig{
			PollInterval:   10 * time.Second,
			Resolution:     "720p",
			FallbackPrompt: "Animate this image beautifully.",
		},
		Live: LiveConfig{
			InputRate:  16000,
			OutputRate: 24000,
			FrameSize:  4096,
			Tones:      true,
			DuckFactor: 0.3,
			DuckMin:    10,
		},
		Bus: BusConfig{
			URL:       "ws://localhost:8092/ws",
			Shard:     "eryon",
			Reconnect: time.Second,
		},
	}
}

// Load reads an optional YAML file over the defaults and applies env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.APIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" {
		c.APIKey = key
	}
	if key := os.Getenv("ERYON_VIDEO_API_KEY"); key != "" {
		c.VideoAPIKey = key
	}
	if v := os.Getenv("ERYON_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("ERYON_LOCATION"); v != "" {
		c.Maps.Location = v
	}
	if v := os.Getenv("BUS_URL"); v != "" {
		c.Bus.URL = v
	}
}

// fillDefaults repairs zero values a partial YAML file may leave behind.
func (c *Config) fillDefaults() {
	d := Default()

	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	if c.Video.PollInterval <= 0 {
		c.Video.PollInterval = d.Video.PollInterval
	}
	if c.Live.InputRate <= 0 {
		c.Live.InputRate = d.Live.InputRate
	}
	if c.Live.OutputRate <= 0 {
		c.Live.OutputRate = d.Live.OutputRate
	}
	if c.Live.FrameSize <= 0 {
		c.Live.FrameSize = d.Live.FrameSize
	}
	if c.Bus.Reconnect <= 0 {
		c.Bus.Reconnect = d.Bus.Reconnect
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("api key not set (GEMINI_API_KEY or API_KEY)")
	}
	if c.Models.ThinkingBudget < 0 {
		return fmt.Errorf("invalid thinking budget %d", c.Models.ThinkingBudget)
	}
	return nil
}
