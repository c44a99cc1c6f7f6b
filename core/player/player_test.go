package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tunemux/core/queue"
	"tunemux/model"
)

type fakePlayback struct {
	mu      sync.Mutex
	loads   []string
	plays   int
	pauses  int
	seeks   []float64
	volume  float64
	failFor map[string]bool
	events  chan Event
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{failFor: map[string]bool{}, events: make(chan Event, 16)}
}

func (f *fakePlayback) Load(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	if f.failFor[url] {
		return errors.New("decode error")
	}
	return nil
}

func (f *fakePlayback) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakePlayback) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakePlayback) Seek(fraction float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, fraction)
	return nil
}

func (f *fakePlayback) SetVolume(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (f *fakePlayback) Events() <-chan Event { return f.events }
func (f *fakePlayback) Close() error         { return nil }

func (f *fakePlayback) loaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

type fakeResolver struct{}

func (fakeResolver) GetStreamURL(ctx context.Context, t model.Track) (string, error) {
	if strings.HasPrefix(t.ID, "dead") {
		return "", errors.New("unresolvable")
	}
	return "http://stream/" + t.ID, nil
}

type fakeLibrary struct {
	mu         sync.Mutex
	history    []string
	downloaded map[string]bool
}

func (l *fakeLibrary) AddToHistory(ctx context.Context, t model.Track) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, t.ID)
	return nil
}

func (l *fakeLibrary) IsDownloaded(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.downloaded[key], nil
}

func tr(id string) model.Track {
	return model.Track{ID: id, Source: model.SourceAudius, Title: id, Duration: 200}
}

func setup() (*Player, *fakePlayback, *fakeLibrary) {
	pb := newFakePlayback()
	lib := &fakeLibrary{downloaded: map[string]bool{}}
	return New(queue.New(), pb, fakeResolver{}, lib), pb, lib
}

func TestPlayTrackLoadsAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	p, pb, lib := setup()

	if err := p.PlayTrack(ctx, tr("a")); err != nil {
		t.Fatal(err)
	}
	if got := pb.loaded(); len(got) != 1 || got[0] != "http://stream/a" {
		t.Errorf("loads = %v", got)
	}
	if len(lib.history) != 1 || lib.history[0] != "a" {
		t.Errorf("history = %v", lib.history)
	}
	st := p.Status()
	if st.State != StatePlaying || st.Track == nil || st.Track.ID != "a" || st.Duration != 200*time.Second {
		t.Errorf("status = %+v", st)
	}
}

func TestDownloadedTrackPlaysOffline(t *testing.T) {
	ctx := context.Background()
	p, pb, lib := setup()
	lib.downloaded["audius_a"] = true

	if err := p.PlayTrack(ctx, tr("a")); err != nil {
		t.Fatal(err)
	}
	if got := pb.loaded(); got[0] != "offline:audius_a" {
		t.Errorf("load = %q, want offline url", got[0])
	}
}

func TestLocalTrackPlaysFromPath(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()

	local := model.Track{ID: "x", Source: model.SourceLocal, URL: "/music/x.mp3"}
	if err := p.PlayTrack(ctx, local); err != nil {
		t.Fatal(err)
	}
	if got := pb.loaded(); got[0] != "/music/x.mp3" {
		t.Errorf("load = %q", got[0])
	}
}

func TestEndedAdvancesThenStops(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()
	p.Queue().Add(tr("a"))
	p.Queue().Add(tr("b"))

	if err := p.PlayCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	p.HandleEvent(ctx, Event{Type: EventEnded})
	if got := pb.loaded(); len(got) != 2 || got[1] != "http://stream/b" {
		t.Fatalf("loads = %v", got)
	}

	p.HandleEvent(ctx, Event{Type: EventEnded})
	if st := p.Status(); st.State != StateStopped {
		t.Errorf("state at end = %s", st.State)
	}
	if len(pb.loaded()) != 2 {
		t.Error("loaded past the end of the queue")
	}

	// A stray Ended while stopped is ignored.
	p.HandleEvent(ctx, Event{Type: EventEnded})
	if len(pb.loaded()) != 2 {
		t.Error("stray ended event moved the queue")
	}
}

func TestRepeatOneRestarts(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()
	p.Queue().SetRepeat(queue.RepeatOne)
	p.PlayTrack(ctx, tr("a"))

	p.HandleEvent(ctx, Event{Type: EventEnded})
	if len(pb.loaded()) != 1 || len(pb.seeks) != 1 || pb.seeks[0] != 0 {
		t.Errorf("loads = %v seeks = %v", pb.loaded(), pb.seeks)
	}
}

func TestPreviousUsesElapsedTime(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()
	p.Queue().Add(tr("a"))
	p.Queue().Add(tr("b"))
	p.PlayIndex(ctx, 1)

	p.HandleEvent(ctx, Event{Type: EventTimeUpdate, Position: 10 * time.Second})
	if err := p.Previous(ctx); err != nil {
		t.Fatal(err)
	}
	if len(pb.seeks) != 1 {
		t.Fatalf("expected restart seek, got %v", pb.seeks)
	}

	p.HandleEvent(ctx, Event{Type: EventTimeUpdate, Position: time.Second})
	if err := p.Previous(ctx); err != nil {
		t.Fatal(err)
	}
	loads := pb.loaded()
	if loads[len(loads)-1] != "http://stream/a" {
		t.Errorf("loads = %v", loads)
	}
}

func TestErrorSkipsBrokenTrack(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()
	p.Queue().Add(tr("a"))
	p.Queue().Add(tr("b"))
	p.PlayCurrent(ctx)

	p.HandleEvent(ctx, Event{Type: EventError, Err: errors.New("network")})
	loads := pb.loaded()
	if loads[len(loads)-1] != "http://stream/b" {
		t.Errorf("loads = %v", loads)
	}
}

func TestBrokenQueueStops(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()
	p.Queue().SetRepeat(queue.RepeatAll)
	for _, id := range []string{"dead1", "dead2", "dead3"} {
		p.Queue().Add(tr(id))
	}

	err := p.PlayCurrent(ctx)
	if err == nil {
		t.Fatal("expected an error for an unresolvable track")
	}
	if st := p.Status(); st.State != StateStopped {
		t.Errorf("state = %s, want stopped", st.State)
	}
	if len(pb.loaded()) != 0 {
		t.Errorf("loads = %v", pb.loaded())
	}
}

func TestRemoveCurrentStartsNext(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()
	p.Queue().Add(tr("a"))
	p.Queue().Add(tr("b"))
	p.PlayCurrent(ctx)

	removed, err := p.Remove(ctx, 0)
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	loads := pb.loaded()
	if loads[len(loads)-1] != "http://stream/b" {
		t.Errorf("loads = %v", loads)
	}

	p.Remove(ctx, 0)
	if st := p.Status(); st.State != StateStopped {
		t.Errorf("state after emptying = %s", st.State)
	}
}

func TestRemoveOtherTrackKeepsPlaying(t *testing.T) {
	ctx := context.Background()
	p, pb, _ := setup()
	for _, id := range []string{"a", "b", "c", "d"} {
		p.Queue().Add(tr(id))
	}
	p.PlayIndex(ctx, 2)

	for _, idx := range []int{3, 0} {
		removed, err := p.Remove(ctx, idx)
		if err != nil || !removed {
			t.Fatalf("remove %d = %v, %v", idx, removed, err)
		}
	}
	if loads := pb.loaded(); len(loads) != 1 || loads[0] != "http://stream/c" {
		t.Errorf("loads = %v", loads)
	}
	st := p.Status()
	if st.State != StatePlaying || st.Track == nil || st.Track.ID != "c" {
		t.Errorf("status = %+v", st)
	}
	if snap := p.Queue().Snapshot(); snap.CurrentIndex != 1 {
		t.Errorf("current index = %d, want 1", snap.CurrentIndex)
	}

	if removed, _ := p.Remove(ctx, 9); removed {
		t.Error("out of range remove reported success")
	}
}

func TestVolumeClamped(t *testing.T) {
	p, pb, _ := setup()
	p.SetVolume(1.7)
	if pb.volume != 1 || p.Status().Volume != 1 {
		t.Errorf("volume = %v", pb.volume)
	}
	p.SetVolume(-2)
	if pb.volume != 0 {
		t.Errorf("volume = %v", pb.volume)
	}
	if err := p.Seek(1.5); err == nil {
		t.Error("seek out of range accepted")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p, pb, _ := setup()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	pb.events <- Event{Type: EventDurationChange, Duration: time.Minute}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
