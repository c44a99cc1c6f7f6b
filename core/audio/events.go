package audio

import (
	"sync"

	"tunemux/core/player"
)

// eventSink carries playback events to the player's single reader. Progress
// events are offered and dropped when the reader is behind; lifecycle events
// are sent and wait for it.
type eventSink struct {
	ch   chan player.Event
	done chan struct{}
	once sync.Once
}

func newEventSink(size int) *eventSink {
	return &eventSink{
		ch:   make(chan player.Event, size),
		done: make(chan struct{}),
	}
}

// offer never blocks. It reports whether ev was queued.
func (s *eventSink) offer(ev player.Event) bool {
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// send blocks until ev is queued or the sink is closed.
func (s *eventSink) send(ev player.Event) {
	select {
	case s.ch <- ev:
	case <-s.done:
	}
}

func (s *eventSink) closed() <-chan struct{} {
	return s.done
}

func (s *eventSink) close() {
	s.once.Do(func() { close(s.done) })
}
