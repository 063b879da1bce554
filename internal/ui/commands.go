package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"eryon/internal/chat"
	"eryon/internal/gemini"
	"eryon/internal/ipc"
	"eryon/internal/mode"
)

const helpText = `Commands:
  /mode <name>     switch mode (Tab cycles)
  /modes           list modes
  /file <path>     attach an image, video or audio file
  /drop            remove the attached file
  /aspect <ratio>  set the aspect ratio for image and video modes
  /live            start or stop the live voice conversation (ctrl+l)
  /key [key]       select the API key used for video generation
  /record          record a voice memo and attach it
  /play            play the latest spoken reply
  /help            show this help
  /quit            exit (ctrl+c)`

type command struct {
	name string
	arg  string
}

// parseCommand splits "/name arg..." into its parts.
func parseCommand(s string) (command, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "/") || len(s) < 2 {
		return command{}, false
	}
	name, arg, _ := strings.Cut(s[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// Control messages delivered from the control socket.
type (
	toggleLiveMsg struct{}
	stopLiveMsg   struct{}
	setModeMsg    struct{ mode mode.Mode }
)

// ControlCommand validates a control-socket message and converts it into a
// message for the running program.
func ControlCommand(m ipc.ControlMessage) (tea.Msg, error) {
	switch m.Cmd {
	case ipc.CmdLive:
		return toggleLiveMsg{}, nil
	case ipc.CmdStop:
		return stopLiveMsg{}, nil
	case ipc.CmdMode:
		md, err := mode.Parse(m.Arg)
		if err != nil {
			return nil, err
		}
		return setModeMsg{mode: md}, nil
	}
	return nil, fmt.Errorf("unknown command %q", m.Cmd)
}

func (m Model) runCommand(c command) (tea.Model, tea.Cmd) {
	switch c.name {
	case "help", "?":
		m.system(helpText)

	case "quit", "exit", "q":
		return m.quit()

	case "modes":
		var b strings.Builder
		b.WriteString("Modes:")
		for _, md := range mode.All() {
			marker := "  "
			if md == m.mode {
				marker = "* "
			}
			fmt.Fprintf(&b, "\n%s%-12s %s", marker, md.Slug(), md)
		}
		m.system(b.String())

	case "mode":
		md, err := mode.Parse(c.arg)
		if err != nil {
			m.system(err.Error())
			break
		}
		return m.setMode(md)

	case "file":
		if c.arg == "" {
			m.system("Usage: /file <path>")
			break
		}
		f, err := gemini.LoadFile(expandHome(c.arg))
		if err != nil {
			m.system(fmt.Sprintf("Could not attach file: %v", err))
			break
		}
		m.file = f
		m.syncPlaceholder()
		m.system(fmt.Sprintf("%s is ready (%s).", f.Name, f.MIMEType))

	case "drop":
		if m.file == nil {
			m.system("No file attached.")
			break
		}
		m.file = nil
		m.syncPlaceholder()
		m.system("Attachment removed.")

	case "aspect":
		if !m.mode.HasAspect() {
			m.system(fmt.Sprintf("%s does not use an aspect ratio.", m.mode))
			break
		}
		r, err := mode.ParseAspect(c.arg)
		if err != nil || !slices.Contains(m.mode.AspectRatios(), r) {
			m.system(fmt.Sprintf("Aspect ratio for %s must be one of %s.", m.mode, joinRatios(m.mode.AspectRatios())))
			break
		}
		m.aspect = r

	case "live":
		return m.toggleLive()

	case "key":
		if c.arg != "" {
			m.asst.SelectVideoKey(c.arg)
			m.system("Video API key selected.")
			break
		}
		m.keyPrompt = true
		m.input.EchoMode = textinput.EchoPassword
		m.input.Placeholder = "Paste the API key for video generation, Esc to cancel"

	case "record":
		if m.record == nil {
			m.system("Recording is not available.")
			break
		}
		m.recording = true
		m.system("Listening... speak now.")
		ctx, record := m.ctx, m.record
		return m, func() tea.Msg {
			path, err := record(ctx)
			return recordedMsg{path: path, err: err}
		}

	case "play":
		if m.play == nil {
			m.system("Playback is not available.")
			break
		}
		path := m.lastAudio()
		if path == "" {
			m.system("Nothing to play yet. Try Text-to-Speech mode.")
			break
		}
		ctx, play := m.ctx, m.play
		return m, func() tea.Msg {
			return playedMsg{err: play(ctx, path)}
		}

	default:
		m.system(fmt.Sprintf("Unknown command /%s. Type /help.", c.name))
	}

	return m, nil
}

func (m Model) lastAudio() string {
	msgs := m.asst.Conversation().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].AudioPath != "" {
			return msgs[i].AudioPath
		}
	}
	return ""
}

type (
	recordedMsg struct {
		path string
		err  error
	}
	playedMsg struct{ err error }
)

func joinRatios(rs []mode.AspectRatio) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// system appends a local notice to the conversation.
func (m *Model) system(text string) {
	m.asst.Conversation().Add(chat.Message{Author: chat.System, Text: text})
	m.refresh()
}

func ignoreCancel(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
