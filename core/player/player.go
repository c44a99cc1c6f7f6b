// Package player drives a Playback from the queue: it resolves stream URLs,
// prefers downloaded audio, records history and follows track-end rules.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tunemux/core/queue"
	"tunemux/logger"
	"tunemux/model"

	"go.uber.org/zap"
)

// OfflineScheme prefixes URLs that point at a stored offline blob.
const OfflineScheme = "offline:"

// ErrNothingToPlay is returned when the queue has no current track.
var ErrNothingToPlay = errors.New("nothing to play")

// StreamResolver resolves a network URL for a track.
type StreamResolver interface {
	GetStreamURL(ctx context.Context, track model.Track) (string, error)
}

// Library is the part of the store the player writes to and reads from.
type Library interface {
	AddToHistory(ctx context.Context, track model.Track) error
	IsDownloaded(ctx context.Context, key string) (bool, error)
}

// State is the coarse playback state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// Status is what the player reports to the UI.
type Status struct {
	State    State          `json:"state"`
	Track    *model.Track   `json:"track,omitempty"`
	Position time.Duration  `json:"position"`
	Duration time.Duration  `json:"duration"`
	Volume   float64        `json:"volume"`
	Queue    queue.Snapshot `json:"queue"`
}

// Player composes the queue, an audio pipeline, stream resolution and the
// library.
type Player struct {
	queue    *queue.Queue
	playback Playback
	streams  StreamResolver
	library  Library
	log      *zap.Logger

	mu       sync.Mutex
	state    State
	track    *model.Track
	position time.Duration
	duration time.Duration
	volume   float64
	loadSeq  uint64
	failures int
}

func New(q *queue.Queue, pb Playback, streams StreamResolver, lib Library) *Player {
	return &Player{
		queue:    q,
		playback: pb,
		streams:  streams,
		library:  lib,
		log:      logger.Named("player"),
		state:    StateIdle,
		volume:   1,
	}
}

// Queue exposes the queue the player follows.
func (p *Player) Queue() *queue.Queue {
	return p.queue
}

// Run consumes playback events until ctx is done or the event channel closes.
func (p *Player) Run(ctx context.Context) error {
	events := p.playback.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent applies one playback event.
func (p *Player) HandleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventTimeUpdate:
		p.mu.Lock()
		p.position = ev.Position
		if ev.Position > 0 {
			p.failures = 0
		}
		p.mu.Unlock()

	case EventDurationChange:
		p.mu.Lock()
		p.duration = ev.Duration
		p.mu.Unlock()

	case EventEnded:
		p.mu.Lock()
		playing := p.state == StatePlaying
		p.mu.Unlock()
		if !playing {
			return
		}
		if err := p.apply(ctx, p.queue.Advance()); err != nil {
			p.log.Warn("advancing after track end failed", logger.ErrorField(err))
		}

	case EventError:
		p.log.Warn("playback error", logger.ErrorField(ev.Err))
		p.skipBroken(ctx)
	}
}

// skipBroken moves past a track that failed to play. After as many
// consecutive failures as there are queued tracks it stops instead of cycling
// through a queue where nothing plays.
func (p *Player) skipBroken(ctx context.Context) {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	p.mu.Unlock()

	if failures >= p.queue.Len() {
		p.log.Warn("every queued track failed, stopping", logger.Int("failures", failures))
		p.stop()
		return
	}
	if err := p.apply(ctx, p.queue.Advance()); err != nil {
		p.log.Warn("skipping broken track failed", logger.ErrorField(err))
	}
}

// PlayTrack appends track, selects it and starts it.
func (p *Player) PlayTrack(ctx context.Context, track model.Track) error {
	idx := p.queue.PlayNow(track)
	return p.start(ctx, idx)
}

// PlayIndex selects the queued track at index and starts it.
func (p *Player) PlayIndex(ctx context.Context, index int) error {
	if !p.queue.Select(index) {
		return fmt.Errorf("queue index %d: %w", index, ErrNothingToPlay)
	}
	return p.start(ctx, index)
}

// PlayCurrent (re)starts the track under the cursor.
func (p *Player) PlayCurrent(ctx context.Context) error {
	snap := p.queue.Snapshot()
	if snap.CurrentIndex < 0 {
		return ErrNothingToPlay
	}
	return p.start(ctx, snap.CurrentIndex)
}

// Next skips to the track the queue picks.
func (p *Player) Next(ctx context.Context) error {
	return p.apply(ctx, p.queue.Advance())
}

// Previous restarts the track or steps back, based on how much has played.
func (p *Player) Previous(ctx context.Context) error {
	p.mu.Lock()
	elapsed := p.position
	p.mu.Unlock()
	return p.apply(ctx, p.queue.Previous(elapsed))
}

// Remove drops a queued track. Removing the playing track starts whatever the
// cursor lands on, or stops when the queue becomes empty.
func (p *Player) Remove(ctx context.Context, index int) (bool, error) {
	wasCurrent, cursor, ok := p.queue.Remove(index)
	if !ok {
		return false, nil
	}
	if !wasCurrent || !p.isActive() {
		return true, nil
	}
	if cursor < 0 {
		p.stop()
		return true, nil
	}
	return true, p.start(ctx, cursor)
}

// Stop halts playback and keeps the queue.
func (p *Player) Stop() {
	p.stop()
}

// ClearQueue empties the queue and stops whatever was playing.
func (p *Player) ClearQueue() {
	p.queue.Clear()
	if p.isActive() {
		p.stop()
	}
}

func (p *Player) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StatePlaying || p.state == StatePaused || p.state == StateLoading
}

func (p *Player) apply(ctx context.Context, step queue.Step) error {
	switch step.Action {
	case queue.ActionPlay:
		return p.start(ctx, step.Index)
	case queue.ActionRestart:
		if err := p.playback.Seek(0); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		p.mu.Lock()
		p.position = 0
		p.state = StatePlaying
		p.mu.Unlock()
		return p.playback.Play()
	case queue.ActionStop:
		p.stop()
	}
	return nil
}

func (p *Player) stop() {
	if err := p.playback.Pause(); err != nil {
		p.log.Debug("pause on stop failed", logger.ErrorField(err))
	}
	p.mu.Lock()
	p.state = StateStopped
	p.position = 0
	p.failures = 0
	p.mu.Unlock()
}

// start loads and plays the track at index. A newer start supersedes one that
// is still resolving.
func (p *Player) start(ctx context.Context, index int) error {
	snap := p.queue.Snapshot()
	if index < 0 || index >= len(snap.Tracks) {
		return ErrNothingToPlay
	}
	track := snap.Tracks[index]

	p.mu.Lock()
	p.loadSeq++
	seq := p.loadSeq
	p.state = StateLoading
	p.track = &track
	p.position = 0
	p.duration = time.Duration(track.Duration) * time.Second
	p.mu.Unlock()

	url, err := p.sourceURL(ctx, track)
	if err != nil {
		return p.failStart(ctx, track, err)
	}
	if p.superseded(seq) {
		return nil
	}

	if err := p.playback.Load(ctx, url); err != nil {
		return p.failStart(ctx, track, err)
	}
	if p.superseded(seq) {
		return nil
	}
	if err := p.playback.Play(); err != nil {
		return p.failStart(ctx, track, err)
	}

	p.mu.Lock()
	p.state = StatePlaying
	p.mu.Unlock()

	if err := p.library.AddToHistory(ctx, track); err != nil {
		p.log.Warn("recording history failed", logger.String("track", track.Key()), logger.ErrorField(err))
	}
	p.log.Info("playing", logger.String("track", track.Key()), logger.String("title", track.Title))
	return nil
}

func (p *Player) failStart(ctx context.Context, track model.Track, err error) error {
	p.log.Warn("starting track failed", logger.String("track", track.Key()), logger.ErrorField(err))
	p.skipBroken(ctx)
	return fmt.Errorf("play %s: %w", track.Key(), err)
}

func (p *Player) superseded(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadSeq != seq
}

// sourceURL prefers the downloaded copy, then a local file, then the network.
func (p *Player) sourceURL(ctx context.Context, track model.Track) (string, error) {
	downloaded, err := p.library.IsDownloaded(ctx, track.Key())
	if err != nil {
		p.log.Warn("download lookup failed", logger.String("track", track.Key()), logger.ErrorField(err))
	}
	if downloaded {
		return OfflineScheme + track.Key(), nil
	}
	if track.Source == model.SourceLocal {
		return track.URL, nil
	}
	return p.streams.GetStreamURL(ctx, track)
}

func (p *Player) Pause() error {
	if err := p.playback.Pause(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.state == StatePlaying {
		p.state = StatePaused
	}
	p.mu.Unlock()
	return nil
}

func (p *Player) Resume() error {
	if err := p.playback.Play(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.state == StatePaused {
		p.state = StatePlaying
	}
	p.mu.Unlock()
	return nil
}

// Seek jumps to fraction of the current track.
func (p *Player) Seek(fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("seek fraction %v out of range", fraction)
	}
	return p.playback.Seek(fraction)
}

// SetVolume clamps v into [0,1].
func (p *Player) SetVolume(v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if err := p.playback.SetVolume(v); err != nil {
		return err
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	return nil
}

// Status reports the current state.
func (p *Player) Status() Status {
	snap := p.queue.Snapshot()
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		State:    p.state,
		Position: p.position,
		Duration: p.duration,
		Volume:   p.volume,
		Queue:    snap,
	}
	if p.track != nil {
		t := *p.track
		st.Track = &t
	}
	return st
}
