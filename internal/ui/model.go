// Package ui is the terminal chat window: a scrolling conversation, a mode
// bar and a single input line driving the assistant and the live voice
// conversation.
package ui

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"eryon/internal/assistant"
	"eryon/internal/errmap"
	"eryon/internal/gemini"
	"eryon/internal/live"
	"eryon/internal/mode"
)

// Live is the voice conversation controller. *live.Conversation implements it.
type Live interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan live.Event
}

type Options struct {
	Context   context.Context
	Assistant *assistant.Assistant

	// Optional.
	Live   Live
	Record func(ctx context.Context) (string, error)
	Play   func(ctx context.Context, path string) error
}

// RefreshMsg asks the model to re-read the conversation.
type RefreshMsg struct{}

type (
	sendDoneMsg struct{ err error }
	liveEventMsg struct {
		ev live.Event
		ok bool
	}
	liveStartedMsg struct{ err error }
	liveStoppedMsg struct{}
)

const (
	headerHeight = 3
	footerHeight = 4
)

type Model struct {
	ctx    context.Context
	asst   *assistant.Assistant
	live   Live
	record func(ctx context.Context) (string, error)
	play   func(ctx context.Context, path string) error

	mode      mode.Mode
	aspect    mode.AspectRatio
	file      *gemini.File
	liveEv    live.Event
	loading   bool
	recording bool
	keyPrompt bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   styles

	width, height int
	ready         bool
	quitting      bool
}

func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	in := textinput.New()
	in.Prompt = "› "
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:      opts.Context,
		asst:     opts.Assistant,
		live:     opts.Live,
		record:   opts.Record,
		play:     opts.Play,
		mode:     mode.Chat,
		aspect:   mode.Square,
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		styles:   defaultStyles(),
	}
	m.syncPlaceholder()
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.live != nil {
		cmds = append(cmds, waitForLive(m.live.Events()))
	}
	return tea.Batch(cmds...)
}

func waitForLive(ch <-chan live.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return liveEventMsg{ev: ev, ok: ok}
	}
}

func (m Model) liveBusy() bool {
	return m.liveEv.State != live.Idle
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m.quit()
		case tea.KeyCtrlL:
			return m.toggleLive()
		case tea.KeyEsc:
			if m.keyPrompt {
				m.endKeyPrompt()
				return m, nil
			}
		case tea.KeyTab:
			if !m.loading && !m.liveBusy() && !m.keyPrompt {
				return m.setMode(m.mode.Next())
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if m.loading {
			return m, nil
		}

	case RefreshMsg:
		m.refresh()
		return m, nil

	case sendDoneMsg:
		m.loading = false
		if msg.err != nil {
			log.Debug("Send finished with error", "err", msg.err)
		}
		m.syncPlaceholder()
		m.refresh()
		return m, nil

	case liveEventMsg:
		if !msg.ok {
			return m, nil
		}
		prev := m.liveEv.State
		m.liveEv = msg.ev
		if msg.ev.Err != nil {
			text, _ := errmap.Friendly(msg.ev.Err)
			m.system("Live conversation ended: " + text)
		}
		if prev != msg.ev.State {
			log.Debug("Live state", "state", msg.ev.State)
		}
		m.syncPlaceholder()
		m.refresh()
		return m, waitForLive(m.live.Events())

	case liveStartedMsg:
		if err := ignoreCancel(m.ctx, msg.err); err != nil {
			log.Error("Live start failed", "err", err)
		}
		if msg.err != nil && m.liveEv.State == live.Connecting {
			m.liveEv = live.Event{}
			m.syncPlaceholder()
			m.refresh()
		}
		return m, nil

	case liveStoppedMsg:
		// The idle event may have been dropped by a full channel.
		m.liveEv = live.Event{}
		m.syncPlaceholder()
		m.refresh()
		return m, nil

	case toggleLiveMsg:
		return m.toggleLive()

	case stopLiveMsg:
		return m, m.stopLive()

	case setModeMsg:
		return m.setMode(msg.mode)

	case recordedMsg:
		m.recording = false
		if msg.err != nil {
			m.system(fmt.Sprintf("Recording failed: %v", msg.err))
			return m, nil
		}
		f, err := gemini.LoadFile(msg.path)
		if err != nil {
			m.system(fmt.Sprintf("Recording failed: %v", err))
			return m, nil
		}
		m.file = f
		m.system(fmt.Sprintf("%s is ready.", f.Name))
		m.syncPlaceholder()
		return m, nil

	case playedMsg:
		if err := ignoreCancel(m.ctx, msg.err); err != nil {
			m.system(fmt.Sprintf("Playback failed: %v", err))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading && !m.recording && m.liveEv.State != live.Connecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())

	if m.keyPrompt {
		m.input.SetValue("")
		m.endKeyPrompt()
		if text == "" {
			return m, nil
		}
		m.asst.SelectVideoKey(text)
		m.system("Video API key selected.")
		return m, nil
	}

	if c, ok := parseCommand(text); ok {
		m.input.SetValue("")
		return m.runCommand(c)
	}

	if m.loading {
		return m, nil
	}
	if m.liveBusy() {
		if text != "" {
			m.system(m.rejection(assistant.ErrLiveActive))
		}
		return m, nil
	}

	req := assistant.Request{Text: text, File: m.file, Mode: m.mode, Aspect: m.aspect}
	if err := m.asst.Check(req); err != nil {
		if !errors.Is(err, assistant.ErrEmptyInput) {
			m.system(m.rejection(err))
		}
		return m, nil
	}

	m.input.SetValue("")
	m.file = nil
	m.loading = true
	m.syncPlaceholder()

	ctx, asst := m.ctx, m.asst
	send := func() tea.Msg {
		_, err := asst.Send(ctx, req)
		return sendDoneMsg{err: err}
	}
	return m, tea.Batch(send, m.spinner.Tick)
}

func (m Model) rejection(err error) string {
	switch {
	case errors.Is(err, assistant.ErrFileRequired):
		return fmt.Sprintf("%s needs a file. Attach one with /file <path>.", m.mode)
	case errors.Is(err, assistant.ErrVideoKeyRequired):
		return "Video generation requires an API key. Select one with /key."
	case errors.Is(err, assistant.ErrLiveActive):
		return "Live conversation is active. Stop it with /live first."
	case errors.Is(err, assistant.ErrBusy):
		return "Eryon is still working on the previous request."
	}
	return err.Error()
}

// setMode switches mode, drops the attachment and leaves live mode. Choosing
// Live starts the voice conversation instead.
func (m Model) setMode(md mode.Mode) (tea.Model, tea.Cmd) {
	if md == mode.Live {
		if m.liveBusy() {
			return m, nil
		}
		return m.toggleLive()
	}

	var cmd tea.Cmd
	if m.liveBusy() {
		cmd = m.stopLive()
	}

	if md != m.mode {
		m.mode = md
		m.file = nil
		if rs := md.AspectRatios(); len(rs) > 0 && !slices.Contains(rs, m.aspect) {
			m.aspect = rs[0]
		}
	}
	m.syncPlaceholder()
	m.refresh()
	return m, cmd
}

func (m Model) toggleLive() (tea.Model, tea.Cmd) {
	if m.live == nil {
		m.system("Live conversation is not available.")
		return m, nil
	}
	if m.liveBusy() {
		return m, m.stopLive()
	}
	if m.loading {
		m.system("Wait for the current reply before going live.")
		return m, nil
	}

	m.liveEv.State = live.Connecting
	m.syncPlaceholder()

	ctx, l := m.ctx, m.live
	start := func() tea.Msg {
		return liveStartedMsg{err: l.Start(ctx)}
	}
	return m, tea.Batch(start, m.spinner.Tick)
}

func (m Model) stopLive() tea.Cmd {
	if m.live == nil {
		return nil
	}
	l := m.live
	return func() tea.Msg {
		l.Stop()
		return liveStoppedMsg{}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if stop := m.stopLive(); stop != nil && m.liveBusy() {
		return m, tea.Sequence(stop, tea.Quit)
	}
	return m, tea.Quit
}

func (m *Model) endKeyPrompt() {
	m.keyPrompt = false
	m.input.EchoMode = textinput.EchoNormal
	m.syncPlaceholder()
}

func (m *Model) syncPlaceholder() {
	switch {
	case m.keyPrompt:
		return
	case m.liveEv.State == live.Connecting:
		m.input.Placeholder = "Connecting..."
	case m.liveEv.State == live.Active:
		m.input.Placeholder = "Live conversation is active..."
	case m.file != nil:
		m.input.Placeholder = m.file.Name + " is ready."
	default:
		m.input.Placeholder = fmt.Sprintf("Message Eryon in %s mode...", m.mode)
	}
}

func (m *Model) resize(w, h int) {
	if w < 20 {
		w = 20
	}
	if h < headerHeight+footerHeight+3 {
		h = headerHeight + footerHeight + 3
	}
	m.width, m.height = w, h

	m.viewport.Width = w
	m.input.Width = w - 4

	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(w-4),
	)
	m.ready = true
	m.refresh()
}

func (m Model) bannerHeight() int {
	if m.showKeyBanner() {
		return 1
	}
	return 0
}

func (m Model) showKeyBanner() bool {
	return m.mode.IsVideo() && !m.asst.VideoKeySelected()
}

// refresh re-renders the scrollback into the viewport.
func (m *Model) refresh() {
	if m.asst == nil {
		return
	}
	if m.ready {
		m.viewport.Height = max(1, m.height-headerHeight-footerHeight-m.bannerHeight())
	}
	if m.hasLiveContent() {
		m.viewport.SetContent(m.renderTranscripts())
	} else {
		m.viewport.SetContent(m.renderMessages())
	}
	m.viewport.GotoBottom()
}

func (m Model) hasLiveContent() bool {
	return len(m.liveEv.Transcripts) > 0 || !m.liveEv.Interim.Empty()
}
