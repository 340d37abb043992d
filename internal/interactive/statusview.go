package interactive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bmad-assist/bmad-assist-go/internal/dashboard"
)

// maxStatusEntries bounds the terminal event log's ring buffer.
const maxStatusEntries = 500

// eventCategory classifies a logged entry for colour-coded display.
type eventCategory int

const (
	categoryInfo eventCategory = iota
	categorySuccess
	categoryWarning
	categoryError
)

var (
	styleTimestamp = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
	styleInfo      = lipgloss.NewStyle()
	styleSuccess   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"})
	styleWarning   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"})
	styleError     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"})
	styleHeader    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"})
)

func (c eventCategory) style() lipgloss.Style {
	switch c {
	case categorySuccess:
		return styleSuccess
	case categoryWarning:
		return styleWarning
	case categoryError:
		return styleError
	default:
		return styleInfo
	}
}

type statusEntry struct {
	timestamp time.Time
	category  eventCategory
	message   string
}

// busEventMsg wraps one dashboard.Event for the Bubble Tea update loop.
type busEventMsg dashboard.Event

// StatusView is a terminal live view of dashboard.Bus traffic, for operators
// running `bmad-assist serve --tui` who want a scrolling log of phase
// activity alongside the HTTP/SSE surface. It is a single scrollable log
// plus a one-line header, following the Elm-architecture Model shape
// (Init/Update/View).
type StatusView struct {
	ctx    context.Context
	events <-chan dashboard.Event
	host   string
	port   int

	width, height int
	entries       []statusEntry
	vp            viewport.Model
	quitting      bool
}

// NewStatusView creates a StatusView that reads from events until ctx is
// done or the channel closes.
func NewStatusView(ctx context.Context, events <-chan dashboard.Event, host string, port int) *StatusView {
	return &StatusView{
		ctx:    ctx,
		events: events,
		host:   host,
		port:   port,
		vp:     viewport.New(0, 0),
	}
}

func (v *StatusView) Init() tea.Cmd {
	return busEventCmd(v.ctx, v.events)
}

func busEventCmd(ctx context.Context, ch <-chan dashboard.Event) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			return busEventMsg(ev)
		}
	}
}

func (v *StatusView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case busEventMsg:
		v.addEntry(classifyDashboardEvent(dashboard.Event(msg)))
		return v, busEventCmd(v.ctx, v.events)

	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.vp.Width = msg.Width
		vpHeight := msg.Height - 2
		if vpHeight < 0 {
			vpHeight = 0
		}
		v.vp.Height = vpHeight
		v.rebuild()
		return v, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			v.quitting = true
			return v, tea.Quit
		case tea.KeyUp:
			v.vp.ScrollUp(1)
		case tea.KeyDown:
			v.vp.ScrollDown(1)
		case tea.KeyRunes:
			switch string(msg.Runes) {
			case "q":
				v.quitting = true
				return v, tea.Quit
			case "k":
				v.vp.ScrollUp(1)
			case "j":
				v.vp.ScrollDown(1)
			case "g":
				v.vp.GotoTop()
			case "G":
				v.vp.GotoBottom()
			}
		}
	}
	return v, nil
}

func (v *StatusView) addEntry(cat eventCategory, text string) {
	v.entries = append(v.entries, statusEntry{timestamp: time.Now(), category: cat, message: text})
	if len(v.entries) > maxStatusEntries {
		v.entries = v.entries[len(v.entries)-maxStatusEntries:]
	}
	v.rebuild()
	v.vp.GotoBottom()
}

func (v *StatusView) rebuild() {
	lines := make([]string, len(v.entries))
	for i, e := range v.entries {
		ts := styleTimestamp.Render(e.timestamp.Format("15:04:05"))
		lines[i] = ts + " " + e.category.style().Render(e.message)
	}
	v.vp.SetContent(strings.Join(lines, "\n"))
}

func (v *StatusView) View() string {
	if v.quitting {
		return ""
	}
	header := styleHeader.Render(fmt.Sprintf("bmad-assist dashboard — http://%s:%d", v.host, v.port))
	help := styleTimestamp.Render("q quit · j/k scroll · g/G top/bottom")
	body := "waiting for events..."
	if len(v.entries) > 0 {
		body = v.vp.View()
	}
	return header + "\n" + body + "\n" + help
}

// classifyDashboardEvent maps a dashboard.Event's Type discriminator to a
// display category and human-readable line, keyword-matching the free-form
// string type field rather than switching on a typed enum (dashboard.Event
// deliberately keeps Type as a free-form string to match the DASHBOARD_EVENT
// wire format).
func classifyDashboardEvent(ev dashboard.Event) (eventCategory, string) {
	t := strings.ToLower(ev.Type)
	cat := categoryInfo
	switch {
	case strings.Contains(t, "error") || strings.Contains(t, "halt") || strings.Contains(t, "fail"):
		cat = categoryError
	case strings.Contains(t, "pause") || strings.Contains(t, "wait"):
		cat = categoryWarning
	case strings.Contains(t, "complete") || strings.Contains(t, "done") || strings.Contains(t, "success"):
		cat = categorySuccess
	}

	text := ev.Type
	if ev.RunID != "" {
		text = fmt.Sprintf("%s (run %s)", text, ev.RunID)
	}
	return cat, text
}
