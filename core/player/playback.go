package player

import (
	"context"
	"time"
)

// EventType enumerates what an audio pipeline reports.
type EventType int

const (
	EventTimeUpdate EventType = iota
	EventDurationChange
	EventEnded
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventTimeUpdate:
		return "timeupdate"
	case EventDurationChange:
		return "durationchange"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification from a Playback.
type Event struct {
	Type     EventType
	Position time.Duration
	Duration time.Duration
	Err      error
}

// Playback is the audio pipeline. Implementations emit at most one Ended per
// Load.
type Playback interface {
	Load(ctx context.Context, url string) error
	Play() error
	Pause() error
	// Seek jumps to a fraction of the track in [0,1].
	Seek(fraction float64) error
	// SetVolume takes a level in [0,1].
	SetVolume(v float64) error
	Events() <-chan Event
	Close() error
}
