package mode

import (
	"fmt"
	"strings"
)

type Mode string

const (
	Chat          Mode = "Chat"
	GenerateImage Mode = "Generate Image"
	EditImage     Mode = "Edit Image"
	GenerateVideo Mode = "Generate Video"
	AnimateImage  Mode = "Animate Image"
	Search        Mode = "Web Search"
	Maps          Mode = "Maps Search"
	AnalyzeVideo  Mode = "Analyze Video"
	Thinking      Mode = "Thinking Mode"
	Fast          Mode = "Fast Mode"
	Live          Mode = "Live Conversation"
	TTS           Mode = "Text-to-Speech"
	Transcribe    Mode = "Transcribe Audio"
)

var all = []Mode{
	Chat,
	Live,
	Thinking,
	Fast,
	Search,
	Maps,
	GenerateImage,
	EditImage,
	GenerateVideo,
	AnimateImage,
	AnalyzeVideo,
	TTS,
	Transcribe,
}

var slugs = map[Mode]string{
	Chat:          "chat",
	GenerateImage: "image",
	EditImage:     "edit",
	GenerateVideo: "video",
	AnimateImage:  "animate",
	Search:        "search",
	Maps:          "maps",
	AnalyzeVideo:  "analyze",
	Thinking:      "think",
	Fast:          "fast",
	Live:          "live",
	TTS:           "tts",
	Transcribe:    "transcribe",
}

// All returns every mode in display order.
func All() []Mode {
	return append([]Mode(nil), all...)
}

// Selectable returns the modes shown in the mode bar. Live is toggled on its own.
func Selectable() []Mode {
	out := make([]Mode, 0, len(all)-1)
	for _, m := range all {
		if m != Live {
			out = append(out, m)
		}
	}
	return out
}

func Parse(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for _, m := range all {
		if strings.EqualFold(s, string(m)) || strings.EqualFold(s, slugs[m]) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

func (m Mode) Slug() string {
	return slugs[m]
}

func (m Mode) String() string {
	return string(m)
}

func (m Mode) NeedsFile() bool {
	switch m {
	case EditImage, AnimateImage, AnalyzeVideo, Transcribe:
		return true
	}
	return false
}

func (m Mode) IsVideo() bool {
	return m == GenerateVideo || m == AnimateImage
}

// HasAspect reports whether the mode takes an aspect ratio.
func (m Mode) HasAspect() bool {
	return m == GenerateImage || m.IsVideo()
}

func (m Mode) AspectRatios() []AspectRatio {
	switch {
	case m == GenerateImage:
		return append([]AspectRatio(nil), imageRatios...)
	case m.IsVideo():
		return append([]AspectRatio(nil), videoRatios...)
	}
	return nil
}

// Next returns the selectable mode after m, wrapping around.
func (m Mode) Next() Mode {
	sel := Selectable()
	for i, s := range sel {
		if s == m {
			return sel[(i+1)%len(sel)]
		}
	}
	return sel[0]
}
