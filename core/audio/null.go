package audio

import (
	"context"
	"sync"
	"time"

	"tunemux/core/player"
)

// NullPlayback satisfies player.Playback without an output device. It keeps
// a wall-clock position so status and history work on headless hosts where
// clients play the resolved stream themselves.
type NullPlayback struct {
	mu      sync.Mutex
	loaded  bool
	playing bool
	since   time.Time
	offset  time.Duration

	events *eventSink
}

func NewNullPlayback() *NullPlayback {
	n := &NullPlayback{
		events: newEventSink(16),
	}
	go n.tick()
	return n
}

func (n *NullPlayback) Events() <-chan player.Event {
	return n.events.ch
}

func (n *NullPlayback) Load(ctx context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loaded = true
	n.playing = false
	n.offset = 0
	return nil
}

func (n *NullPlayback) Play() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return errNotLoaded
	}
	if !n.playing {
		n.playing = true
		n.since = time.Now()
	}
	return nil
}

func (n *NullPlayback) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.playing {
		n.offset += time.Since(n.since)
		n.playing = false
	}
	return nil
}

// Seek only supports rewinding to the start since the duration is unknown.
func (n *NullPlayback) Seek(fraction float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return errNotLoaded
	}
	if fraction == 0 {
		n.offset = 0
		n.since = time.Now()
	}
	return nil
}

func (n *NullPlayback) SetVolume(float64) error {
	return nil
}

func (n *NullPlayback) position() (time.Duration, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.playing {
		return n.offset, false
	}
	return n.offset + time.Since(n.since), true
}

func (n *NullPlayback) tick() {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-n.events.closed():
			return
		case <-t.C:
		}
		pos, playing := n.position()
		if !playing {
			continue
		}
		n.events.offer(player.Event{Type: player.EventTimeUpdate, Position: pos})
	}
}

func (n *NullPlayback) Close() error {
	n.events.close()
	return nil
}
