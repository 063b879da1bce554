package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"eryon/internal/chat"
	"eryon/internal/live"
	"eryon/internal/mode"
)

var (
	purple = lipgloss.Color("#9B59B6")
	cyan   = lipgloss.Color("#00FFD1")
	grey   = lipgloss.Color("#8A8A8A")
	red    = lipgloss.Color("#FF5F87")
)

type styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	User     lipgloss.Style
	Eryon    lipgloss.Style
	System   lipgloss.Style
	Muted    lipgloss.Style
	Mode     lipgloss.Style
	Active   lipgloss.Style
	Banner   lipgloss.Style
	Live     lipgloss.Style
	Link     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(cyan),
		Subtitle: lipgloss.NewStyle().Foreground(grey),
		User:     lipgloss.NewStyle().Bold(true).Foreground(purple),
		Eryon:    lipgloss.NewStyle().Bold(true).Foreground(cyan),
		System:   lipgloss.NewStyle().Italic(true).Foreground(grey),
		Muted:    lipgloss.NewStyle().Foreground(grey),
		Mode:     lipgloss.NewStyle().Foreground(grey).Padding(0, 1),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(cyan).Padding(0, 1),
		Banner:   lipgloss.NewStyle().Bold(true).Foreground(red),
		Live:     lipgloss.NewStyle().Bold(true).Foreground(red),
		Link:     lipgloss.NewStyle().Underline(true).Foreground(purple),
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.showKeyBanner() {
		b.WriteString(m.styles.Banner.Render("Video generation requires an API key. Select one with /key."))
		b.WriteString("\n")
	}
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.styles.Title.Render("ERYON") + " " + m.styles.Subtitle.Render("A&G Tech automation assistant")
	return title + "\n" + m.renderModeBar()
}

func (m Model) renderModeBar() string {
	var parts []string
	for _, md := range mode.Selectable() {
		if md == m.mode {
			parts = append(parts, m.styles.Active.Render(md.String()))
			continue
		}
		parts = append(parts, m.styles.Mode.Render(md.Slug()))
	}
	bar := strings.Join(parts, "")
	if m.width > 0 {
		bar = lipgloss.NewStyle().MaxWidth(m.width).Render(bar)
	}
	return bar
}

func (m Model) renderFooter() string {
	var status []string

	switch m.liveEv.State {
	case live.Connecting:
		status = append(status, m.spinner.View()+" Connecting...")
	case live.Active:
		status = append(status, m.styles.Live.Render("● LIVE")+m.styles.Muted.Render(" /live to stop"))
	}
	if m.loading {
		status = append(status, m.spinner.View()+" Eryon is working...")
	}
	if m.recording {
		status = append(status, m.spinner.View()+" Recording...")
	}
	if m.mode.HasAspect() {
		status = append(status, m.renderAspect())
	}
	if m.file != nil {
		status = append(status, m.styles.Muted.Render("📎 "+m.file.Name))
	}

	help := m.styles.Muted.Render("tab mode • enter send • ctrl+l live • /help")
	return strings.Join(status, "  ") + "\n" + m.input.View() + "\n" + help
}

func (m Model) renderAspect() string {
	var parts []string
	for _, r := range m.mode.AspectRatios() {
		if r == m.aspect {
			parts = append(parts, m.styles.Active.Render(string(r)))
			continue
		}
		parts = append(parts, m.styles.Mode.Render(string(r)))
	}
	return m.styles.Muted.Render("aspect ") + strings.Join(parts, "")
}

func (m Model) renderMessages() string {
	var b strings.Builder

	for _, msg := range m.asst.Conversation().Messages() {
		switch msg.Author {
		case chat.User:
			b.WriteString(m.styles.User.Render("You") + "\n")
			b.WriteString(msg.Text + "\n\n")

		case chat.System:
			b.WriteString(m.styles.System.Render(msg.Text) + "\n\n")

		default:
			b.WriteString(m.styles.Eryon.Render("Eryon") + "\n")
			b.WriteString(m.renderReply(msg))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderReply(msg chat.Message) string {
	var b strings.Builder

	if msg.Loading {
		text := msg.Text
		if text == "" {
			text = "Thinking..."
		}
		b.WriteString(m.spinner.View() + " " + m.styles.Muted.Render(text) + "\n")
		return b.String()
	}

	if msg.Text != "" {
		b.WriteString(m.renderMarkdown(msg.Text))
	}
	if msg.ImagePath != "" {
		fmt.Fprintf(&b, "Image saved to %s\n", m.styles.Link.Render(msg.ImagePath))
	}
	if msg.VideoPath != "" {
		fmt.Fprintf(&b, "Video saved to %s\n", m.styles.Link.Render(msg.VideoPath))
	}
	if msg.AudioPath != "" {
		fmt.Fprintf(&b, "Speech saved to %s %s\n", m.styles.Link.Render(msg.AudioPath), m.styles.Muted.Render("(/play)"))
	}
	if len(msg.Grounding) > 0 {
		b.WriteString(m.styles.Muted.Render("Sources:") + "\n")
		for _, g := range msg.Grounding {
			fmt.Fprintf(&b, "  • %s %s\n", g.Label(), m.styles.Link.Render(g.Link()))
		}
	}
	return b.String()
}

// renderMarkdown falls back to plain text before the first resize or when
// glamour fails.
func (m Model) renderMarkdown(text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = text + "\n"
		}
	}()

	if m.renderer != nil {
		if rendered, err := m.renderer.Render(text); err == nil {
			return rendered
		}
	}
	return text + "\n"
}

func (m Model) renderTranscripts() string {
	var b strings.Builder

	turn := func(t chat.Transcript, interim bool) {
		style := lipgloss.NewStyle()
		if interim {
			style = m.styles.Muted
		}
		if t.User != "" {
			b.WriteString(m.styles.User.Render("You") + "  " + style.Render(t.User) + "\n")
		}
		if t.Eryon != "" {
			b.WriteString(m.styles.Eryon.Render("Eryon") + "  " + style.Render(t.Eryon) + "\n")
		}
		b.WriteString("\n")
	}

	for _, t := range m.liveEv.Transcripts {
		turn(t, false)
	}
	if !m.liveEv.Interim.Empty() {
		turn(m.liveEv.Interim, true)
	}
	return b.String()
}
