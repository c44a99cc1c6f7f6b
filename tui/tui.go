// Package tui is a terminal front end: search box, result table and a
// now-playing footer driving the in-process player.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tunemux/core/player"
	"tunemux/model"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	normalColor = lipgloss.Color("#6c6c6c")
	activeColor = lipgloss.Color("#ff79c6")
	errorColor  = lipgloss.Color("#ff5555")
)

var (
	sectionStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(activeColor)
	helpStyle    = lipgloss.NewStyle().Foreground(normalColor)
	errStyle     = lipgloss.NewStyle().Foreground(errorColor)
)

// Searcher runs a multi-source search.
type Searcher interface {
	Search(ctx context.Context, query, sourceFilter string) []model.Track
}

// Controller is the part of the player the UI drives.
type Controller interface {
	PlayTrack(ctx context.Context, track model.Track) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Pause() error
	Resume() error
	Status() player.Status
}

var _ Controller = (*player.Player)(nil)

type focus int

const (
	focusInput focus = iota
	focusResults
)

type searchMsg struct {
	query  string
	tracks []model.Track
}

type statusMsg player.Status

type errMsg struct{ err error }

type tickMsg time.Time

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	search Searcher
	player Controller

	input   textinput.Model
	results table.Model
	tracks  []model.Track
	query   string

	status    player.Status
	focus     focus
	searching bool
	err       error
	width     int
}

func New(ctx context.Context, s Searcher, p Controller) Model {
	in := textinput.New()
	in.Placeholder = "search youtube, soundcloud, audius, netease..."
	in.Prompt = "/ "
	in.CharLimit = 200
	in.Focus()

	columns := []table.Column{
		{Title: "Source", Width: 10},
		{Title: "Title", Width: 36},
		{Title: "Artist", Width: 24},
		{Title: "Length", Width: 7},
	}
	return Model{
		ctx:     ctx,
		search:  s,
		player:  p,
		input:   in,
		results: table.New(table.WithColumns(columns), table.WithHeight(12)),
		width:   80,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func (m Model) runSearch(query string) tea.Cmd {
	return func() tea.Msg {
		return searchMsg{query: query, tracks: m.search.Search(m.ctx, query, "")}
	}
}

// act runs a player call off the update loop and reports the new status.
func (m Model) act(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return statusMsg(m.player.Status())
	}
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	if f == focusInput {
		m.results.Blur()
		return m.input.Focus()
	}
	m.input.Blur()
	m.results.Focus()
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.results.SetHeight(max(msg.Height-10, 3))
		return m, nil

	case tickMsg:
		m.status = m.player.Status()
		return m, tick()

	case statusMsg:
		m.status = player.Status(msg)
		m.err = nil
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case searchMsg:
		m.searching = false
		m.query = msg.query
		m.tracks = msg.tracks
		m.results.SetRows(rows(msg.tracks))
		m.results.SetCursor(0)
		if len(msg.tracks) == 0 {
			return m, nil
		}
		return m, m.setFocus(focusResults)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.focus == focusInput {
			return m.updateInput(msg)
		}
		return m.updateResults(msg)
	}

	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if q == "" || m.searching {
			return m, nil
		}
		m.searching = true
		m.err = nil
		return m, m.runSearch(q)
	case "tab", "esc":
		if len(m.tracks) > 0 {
			return m, m.setFocus(focusResults)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/", "tab":
		return m, m.setFocus(focusInput)
	case "enter":
		i := m.results.Cursor()
		if i < 0 || i >= len(m.tracks) {
			return m, nil
		}
		track := m.tracks[i]
		return m, m.act(func() error { return m.player.PlayTrack(m.ctx, track) })
	case "n":
		return m, m.act(func() error { return m.player.Next(m.ctx) })
	case "p":
		return m, m.act(func() error { return m.player.Previous(m.ctx) })
	case " ", "space":
		if m.status.State == player.StatePlaying {
			return m, m.act(m.player.Pause)
		}
		return m, m.act(m.player.Resume)
	}
	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func rows(tracks []model.Track) []table.Row {
	out := make([]table.Row, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, table.Row{string(t.Source), t.Title, t.Artist, clock(time.Duration(t.Duration) * time.Second)})
	}
	return out
}

func clock(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// progressBar renders pos/dur as a fixed-width bar.
func progressBar(width int, pos, dur time.Duration) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if dur > 0 {
		filled = int(float64(width) * float64(pos) / float64(dur))
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat("▓", filled) + strings.Repeat("░", width-filled)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tunemux"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	border := normalColor
	if m.focus == focusResults {
		border = activeColor
	}
	body := m.results.View()
	switch {
	case m.searching:
		body = "searching..."
	case m.query != "" && len(m.tracks) == 0:
		body = fmt.Sprintf("no results for %q", m.query)
	}
	b.WriteString(sectionStyle.BorderForeground(border).Render(body))
	b.WriteString("\n")

	b.WriteString(m.nowPlaying())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter play · space pause · n/p next/prev · / search · q quit"))
	return b.String()
}

func (m Model) nowPlaying() string {
	st := m.status
	if st.Track == nil {
		return helpStyle.Render(string(player.StateIdle))
	}
	icon := "▶"
	if st.State != player.StatePlaying {
		icon = "⏸"
	}
	line := fmt.Sprintf("%s %s - %s  %s / %s", icon, st.Track.Artist, st.Track.Title, clock(st.Position), clock(st.Duration))
	bar := progressBar(max(m.width-4, 10), st.Position, st.Duration)
	return lipgloss.JoinVertical(lipgloss.Left, line, helpStyle.Render(bar))
}
