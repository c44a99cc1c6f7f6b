// Package queue holds the play queue: an ordered track list with a cursor,
// shuffle and repeat modes, and the track-end transition rules.
package queue

import (
	"math/rand"
	"sync"
	"time"

	"tunemux/model"
)

// RepeatMode controls what happens at the end of the queue and of a track.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// Valid reports whether m is a known mode.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatAll, RepeatOne:
		return true
	}
	return false
}

// restartThreshold is how far into a track Previous restarts it instead of
// stepping back.
const restartThreshold = 3 * time.Second

// Action tells the player what a transition requires.
type Action int

const (
	// ActionNone leaves playback as it is.
	ActionNone Action = iota
	// ActionPlay loads and starts the track at Step.Index.
	ActionPlay
	// ActionRestart seeks the current track back to zero.
	ActionRestart
	// ActionStop ends playback; the cursor stays where it was.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionRestart:
		return "restart"
	case ActionStop:
		return "stop"
	default:
		return "none"
	}
}

// Step is the outcome of Advance or Previous.
type Step struct {
	Action Action
	Index  int
}

// Snapshot is an immutable copy of the queue state.
type Snapshot struct {
	Tracks       []model.Track `json:"tracks"`
	CurrentIndex int           `json:"currentIndex"`
	Shuffle      bool          `json:"shuffle"`
	Repeat       RepeatMode    `json:"repeat"`
}

// Current returns the track under the cursor.
func (s Snapshot) Current() (model.Track, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Tracks) {
		return model.Track{}, false
	}
	return s.Tracks[s.CurrentIndex], true
}

// Queue is safe for concurrent use. Mutations are serialized; subscribers are
// called after the queue lock is released, in mutation order, and must not
// mutate the queue from inside the callback.
//
// Invariant: current == -1 iff the queue is empty, otherwise 0 <= current < len.
type Queue struct {
	mu      sync.Mutex
	tracks  []model.Track
	current int
	shuffle bool
	repeat  RepeatMode
	rand    *rand.Rand

	notifyMu  sync.Mutex
	subsMu    sync.Mutex
	subs      map[int]func(Snapshot)
	nextSubID int
}

type Option func(*Queue)

// WithRand fixes the source used by shuffle.
func WithRand(r *rand.Rand) Option {
	return func(q *Queue) {
		q.rand = r
	}
}

func New(opts ...Option) *Queue {
	q := &Queue{
		current: -1,
		repeat:  RepeatOff,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Subscribe registers fn for every change of tracks, cursor or modes. The
// returned function removes the subscription.
func (q *Queue) Subscribe(fn func(Snapshot)) func() {
	q.subsMu.Lock()
	id := q.nextSubID
	q.nextSubID++
	q.subs[id] = fn
	q.subsMu.Unlock()

	return func() {
		q.subsMu.Lock()
		delete(q.subs, id)
		q.subsMu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() Snapshot {
	return Snapshot{
		Tracks:       append([]model.Track{}, q.tracks...),
		CurrentIndex: q.current,
		Shuffle:      q.shuffle,
		Repeat:       q.repeat,
	}
}

// mutate runs fn under the queue lock and, when fn reports a change,
// publishes the resulting snapshot after the lock is released.
func (q *Queue) mutate(fn func() bool) {
	q.mu.Lock()
	if !fn() {
		q.mu.Unlock()
		return
	}
	snap := q.snapshotLocked()
	q.notifyMu.Lock()
	q.mu.Unlock()
	defer q.notifyMu.Unlock()

	q.subsMu.Lock()
	subs := make([]func(Snapshot), 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.subsMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Current returns the track under the cursor.
func (q *Queue) Current() (model.Track, bool) {
	return q.Snapshot().Current()
}

// Add appends track. On an empty queue the new track becomes current.
func (q *Queue) Add(track model.Track) {
	q.mutate(func() bool {
		q.tracks = append(q.tracks, track)
		if q.current == -1 {
			q.current = 0
		}
		return true
	})
}

// PlayNow appends track and moves the cursor onto it.
func (q *Queue) PlayNow(track model.Track) int {
	var idx int
	q.mutate(func() bool {
		q.tracks = append(q.tracks, track)
		idx = len(q.tracks) - 1
		q.current = idx
		return true
	})
	return idx
}

// InsertNext places track right after the current one. On an empty queue it
// becomes current.
func (q *Queue) InsertNext(track model.Track) {
	q.mutate(func() bool {
		at := q.current + 1
		q.tracks = append(q.tracks, model.Track{})
		copy(q.tracks[at+1:], q.tracks[at:])
		q.tracks[at] = track
		if q.current == -1 {
			q.current = 0
		}
		return true
	})
}

// Select moves the cursor to index.
func (q *Queue) Select(index int) bool {
	ok := false
	q.mutate(func() bool {
		if index < 0 || index >= len(q.tracks) {
			return false
		}
		ok = true
		if index == q.current {
			return false
		}
		q.current = index
		return true
	})
	return ok
}

// Remove deletes the track at index. Removing a track before the cursor shifts
// the cursor down; removing the current track keeps the cursor number, clamped
// to the new end. wasCurrent and cursor describe the same mutation, so callers
// need no separate snapshot. ok is false for an out-of-range index.
func (q *Queue) Remove(index int) (wasCurrent bool, cursor int, ok bool) {
	q.mutate(func() bool {
		if index < 0 || index >= len(q.tracks) {
			cursor = q.current
			return false
		}
		wasCurrent = index == q.current
		q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
		switch {
		case index < q.current:
			q.current--
		case index == q.current:
			if q.current > len(q.tracks)-1 {
				q.current = len(q.tracks) - 1
			}
		}
		cursor = q.current
		ok = true
		return true
	})
	return wasCurrent, cursor, ok
}

// Reorder moves the track at from to position to, keeping the cursor on the
// same track.
func (q *Queue) Reorder(from, to int) bool {
	ok := false
	q.mutate(func() bool {
		n := len(q.tracks)
		if from < 0 || from >= n || to < 0 || to >= n {
			return false
		}
		ok = true
		if from == to {
			return false
		}

		t := q.tracks[from]
		if from < to {
			copy(q.tracks[from:to], q.tracks[from+1:to+1])
		} else {
			copy(q.tracks[to+1:from+1], q.tracks[to:from])
		}
		q.tracks[to] = t

		switch {
		case from == q.current:
			q.current = to
		case from < q.current && q.current <= to:
			q.current--
		case to <= q.current && q.current < from:
			q.current++
		}
		return true
	})
	return ok
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mutate(func() bool {
		if len(q.tracks) == 0 {
			return false
		}
		q.tracks = nil
		q.current = -1
		return true
	})
}

// SetShuffle turns shuffle on or off.
func (q *Queue) SetShuffle(on bool) {
	q.mutate(func() bool {
		if q.shuffle == on {
			return false
		}
		q.shuffle = on
		return true
	})
}

// SetRepeat changes the repeat mode. Unknown modes are ignored.
func (q *Queue) SetRepeat(mode RepeatMode) bool {
	if !mode.Valid() {
		return false
	}
	q.mutate(func() bool {
		if q.repeat == mode {
			return false
		}
		q.repeat = mode
		return true
	})
	return true
}

// Advance applies the track-end rule:
//   - repeat one replays the current track;
//   - shuffle picks uniformly among the other indices;
//   - otherwise step forward, wrap to 0 under repeat all, or stop at the end.
//
// With shuffle on and at most one track there is no other index to pick, so
// the sequential rule applies.
func (q *Queue) Advance() Step {
	var step Step
	q.mutate(func() bool {
		n := len(q.tracks)
		switch {
		case n == 0:
			step = Step{Action: ActionStop, Index: -1}
			return false
		case q.repeat == RepeatOne:
			step = Step{Action: ActionRestart, Index: q.current}
			return false
		case q.shuffle && n > 1:
			next := q.rand.Intn(n - 1)
			if next >= q.current {
				next++
			}
			q.current = next
		case q.current < n-1:
			q.current++
		case q.repeat == RepeatAll:
			if q.current == 0 {
				step = Step{Action: ActionPlay, Index: 0}
				return false
			}
			q.current = 0
		default:
			step = Step{Action: ActionStop, Index: q.current}
			return false
		}
		step = Step{Action: ActionPlay, Index: q.current}
		return true
	})
	return step
}

// Previous restarts the current track when more than three seconds have been
// played, otherwise steps back one track. At the first track it does nothing.
func (q *Queue) Previous(elapsed time.Duration) Step {
	var step Step
	q.mutate(func() bool {
		switch {
		case len(q.tracks) == 0:
			step = Step{Action: ActionNone, Index: -1}
			return false
		case elapsed > restartThreshold:
			step = Step{Action: ActionRestart, Index: q.current}
			return false
		case q.current > 0:
			q.current--
			step = Step{Action: ActionPlay, Index: q.current}
			return true
		default:
			step = Step{Action: ActionNone, Index: q.current}
			return false
		}
	})
	return step
}
