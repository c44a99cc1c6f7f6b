package audio

import (
	"testing"
	"time"

	"tunemux/core/player"
)

func TestEventSinkOfferNeverBlocks(t *testing.T) {
	s := newEventSink(1)
	defer s.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if !s.offer(player.Event{Type: player.EventTimeUpdate}) {
			t.Error("offer into empty sink dropped")
		}
		// Nobody is reading, so a full sink drops.
		if s.offer(player.Event{Type: player.EventDurationChange}) {
			t.Error("offer into full sink queued")
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("offer blocked on a full sink")
	}

	if ev := <-s.ch; ev.Type != player.EventTimeUpdate {
		t.Errorf("first event = %v", ev.Type)
	}
}

func TestEventSinkSendWaitsForReaderOrClose(t *testing.T) {
	s := newEventSink(1)
	s.send(player.Event{Type: player.EventTimeUpdate})

	sent := make(chan struct{})
	go func() {
		s.send(player.Event{Type: player.EventEnded})
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("send into full sink returned before a read")
	case <-time.After(30 * time.Millisecond):
	}
	<-s.ch
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("send did not complete after a read")
	}
	if ev := <-s.ch; ev.Type != player.EventEnded {
		t.Errorf("event = %v, want ended", ev.Type)
	}

	s.send(player.Event{Type: player.EventTimeUpdate})
	s.close()
	s.send(player.Event{Type: player.EventEnded})
}
