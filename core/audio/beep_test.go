package audio

import (
	"errors"
	"testing"
	"time"

	"tunemux/core/player"

	"github.com/gopxl/beep"
	"go.uber.org/zap"
)

type fakeStream struct {
	pos, n int
	err    error
}

func (f *fakeStream) Stream(samples [][2]float64) (int, bool) { return 0, false }
func (f *fakeStream) Err() error                              { return f.err }
func (f *fakeStream) Len() int                                { return f.n }
func (f *fakeStream) Position() int                           { return f.pos }
func (f *fakeStream) Seek(p int) error                        { f.pos = p; return nil }
func (f *fakeStream) Close() error                            { return nil }

// loadedBeep returns a playback with s loaded and playing, without opening
// the sound card.
func loadedBeep(s *fakeStream) *BeepPlayback {
	b := &BeepPlayback{
		log:    zap.NewNop(),
		level:  1,
		events: newEventSink(4),
	}
	b.streamer = s
	b.format = beep.Format{SampleRate: speakerRate, NumChannels: 2, Precision: 2}
	b.ctrl = &beep.Ctrl{Streamer: s}
	b.live = b.gen.Add(1)
	return b
}

func nextEvent(t *testing.T, b *BeepPlayback) player.Event {
	t.Helper()
	select {
	case ev := <-b.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return player.Event{}
	}
}

func expectQuiet(t *testing.T, b *BeepPlayback) {
	t.Helper()
	select {
	case ev := <-b.Events():
		t.Errorf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBeepStopsReportingAfterEnd(t *testing.T) {
	b := loadedBeep(&fakeStream{pos: int(speakerRate), n: 2 * int(speakerRate)})
	defer b.events.close()

	b.report()
	if ev := nextEvent(t, b); ev.Type != player.EventTimeUpdate || ev.Position != time.Second {
		t.Fatalf("event = %+v", ev)
	}

	gen := b.live
	b.ended(gen)
	if ev := nextEvent(t, b); ev.Type != player.EventEnded {
		t.Fatalf("event = %+v, want ended", ev)
	}

	b.report()
	b.ended(gen)
	expectQuiet(t, b)
}

func TestBeepReportsStreamErrorOnce(t *testing.T) {
	boom := errors.New("truncated frame")
	b := loadedBeep(&fakeStream{n: 100, err: boom})
	defer b.events.close()

	b.report()
	if ev := nextEvent(t, b); ev.Type != player.EventError || !errors.Is(ev.Err, boom) {
		t.Fatalf("event = %+v", ev)
	}
	b.report()
	expectQuiet(t, b)
}

func TestBeepPausedTrackIsQuiet(t *testing.T) {
	b := loadedBeep(&fakeStream{n: 100})
	defer b.events.close()

	b.ctrl.Paused = true
	b.report()
	expectQuiet(t, b)
}
