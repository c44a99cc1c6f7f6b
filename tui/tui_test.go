package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tunemux/core/player"
	"tunemux/model"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeSearcher struct {
	queries []string
	tracks  []model.Track
}

func (f *fakeSearcher) Search(_ context.Context, q, _ string) []model.Track {
	f.queries = append(f.queries, q)
	return f.tracks
}

type fakeController struct {
	played  []model.Track
	calls   []string
	status  player.Status
	nextErr error
}

func (f *fakeController) PlayTrack(_ context.Context, t model.Track) error {
	f.played = append(f.played, t)
	f.status = player.Status{State: player.StatePlaying, Track: &t}
	return nil
}

func (f *fakeController) Next(context.Context) error {
	f.calls = append(f.calls, "next")
	return f.nextErr
}

func (f *fakeController) Previous(context.Context) error {
	f.calls = append(f.calls, "prev")
	return nil
}

func (f *fakeController) Pause() error {
	f.calls = append(f.calls, "pause")
	f.status.State = player.StatePaused
	return nil
}

func (f *fakeController) Resume() error {
	f.calls = append(f.calls, "resume")
	f.status.State = player.StatePlaying
	return nil
}

func (f *fakeController) Status() player.Status { return f.status }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send feeds msg to m and drops any command.
func send(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// step feeds msg to m and, when a command comes back, feeds its result too.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	if out := cmd(); out != nil {
		next, _ = m.Update(out)
		m = next.(Model)
	}
	return m
}

func TestSearchThenPlay(t *testing.T) {
	s := &fakeSearcher{tracks: []model.Track{
		{ID: "1", Title: "Night Drive", Artist: "Lumen", Source: model.SourceAudius, Duration: 215},
		{ID: "2", Title: "Dawn", Artist: "Lumen", Source: model.SourceSoundCloud},
	}}
	c := &fakeController{}
	m := New(context.Background(), s, c)

	m = send(m, runes("lumen"))
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(s.queries) != 1 || s.queries[0] != "lumen" {
		t.Fatalf("queries = %v", s.queries)
	}
	if m.focus != focusResults || len(m.tracks) != 2 {
		t.Fatalf("focus = %v tracks = %d", m.focus, len(m.tracks))
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(c.played) != 1 || c.played[0].ID != "1" {
		t.Fatalf("played = %v", c.played)
	}
	if m.status.State != player.StatePlaying {
		t.Errorf("state = %v", m.status.State)
	}
	if !strings.Contains(m.View(), "Lumen - Night Drive") {
		t.Errorf("view missing now playing line:\n%s", m.View())
	}
}

func TestBlankQueryDoesNotSearch(t *testing.T) {
	s := &fakeSearcher{}
	m := New(context.Background(), s, &fakeController{})

	m = send(m, runes("   "))
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(s.queries) != 0 || m.searching {
		t.Errorf("blank query searched: %v", s.queries)
	}
}

func TestTransportKeys(t *testing.T) {
	track := model.Track{ID: "1", Title: "Night Drive", Source: model.SourceAudius}
	c := &fakeController{status: player.Status{State: player.StatePlaying, Track: &track}}
	m := New(context.Background(), &fakeSearcher{tracks: []model.Track{track}}, c)
	m = step(t, m, searchMsg{query: "x", tracks: []model.Track{track}})
	m.status = c.status

	m = step(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m = step(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m = step(t, m, runes("p"))

	c.nextErr = errors.New("nothing to play")
	m = step(t, m, runes("n"))

	want := []string{"pause", "resume", "prev", "next"}
	if strings.Join(c.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", c.calls, want)
	}
	if m.err == nil || !strings.Contains(m.View(), "nothing to play") {
		t.Error("player error not shown")
	}
}

func TestProgressBar(t *testing.T) {
	cases := []struct {
		pos, dur time.Duration
		filled   int
	}{
		{0, time.Minute, 0},
		{30 * time.Second, time.Minute, 5},
		{2 * time.Minute, time.Minute, 10},
		{time.Second, 0, 0},
	}
	for _, c := range cases {
		bar := progressBar(10, c.pos, c.dur)
		if got := strings.Count(bar, "▓"); got != c.filled {
			t.Errorf("progressBar(%v, %v) filled %d, want %d", c.pos, c.dur, got, c.filled)
		}
		if n := len([]rune(bar)); n != 10 {
			t.Errorf("bar width = %d", n)
		}
	}
}
