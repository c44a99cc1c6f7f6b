// Package audio plays MP3 streams on the local sound card with beep.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"tunemux/core/player"
	"tunemux/logger"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"go.uber.org/zap"
)

const (
	speakerRate     = beep.SampleRate(44100)
	resampleQuality = 4
	tickInterval    = 250 * time.Millisecond
)

var errNotLoaded = errors.New("no track loaded")

// BeepPlayback implements player.Playback on the default output device.
// Tracks are buffered fully in memory so seeking works on network streams.
type BeepPlayback struct {
	open Opener
	log  *zap.Logger

	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64

	// gen identifies the current load. It is read on the speaker goroutine,
	// which holds the speaker lock, so it must not depend on mu. It moves past
	// live once the track ends or fails.
	gen  atomic.Uint64
	live uint64

	events *eventSink
}

// NewBeepPlayback initialises the speaker and starts the position ticker.
func NewBeepPlayback(open Opener) (*BeepPlayback, error) {
	if err := speaker.Init(speakerRate, speakerRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	b := &BeepPlayback{
		open:   open,
		log:    logger.Named("audio"),
		level:  1,
		events: newEventSink(64),
	}
	go b.tick()
	return b, nil
}

func (b *BeepPlayback) Events() <-chan player.Event {
	return b.events.ch
}

// Load replaces the current track with the one at url, paused at zero.
func (b *BeepPlayback) Load(ctx context.Context, url string) error {
	rc, err := b.open(ctx, url)
	if err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", url, err)
	}

	streamer, format, err := mp3.Decode(nopSeekCloser{bytes.NewReader(data)})
	if err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}

	speaker.Clear()

	b.mu.Lock()
	if b.streamer != nil {
		b.streamer.Close()
	}
	gen := b.gen.Add(1)
	b.live = gen

	var src beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		src = beep.Resample(resampleQuality, format.SampleRate, speakerRate, streamer)
	}
	b.streamer = streamer
	b.format = format
	b.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(src, beep.Callback(func() { b.ended(gen) })),
		Paused:   true,
	}
	b.volume = &effects.Volume{Streamer: b.ctrl, Base: 2}
	b.applyLevelLocked()
	vol := b.volume
	length := format.SampleRate.D(streamer.Len())
	b.mu.Unlock()

	speaker.Play(vol)
	// Load runs on the player's event loop when a track ends, so it must not
	// wait for that loop to drain the channel.
	if !b.events.offer(player.Event{Type: player.EventDurationChange, Duration: length}) {
		b.log.Debug("duration update dropped", logger.Duration("duration", length))
	}
	return nil
}

func (b *BeepPlayback) setPaused(paused bool) error {
	b.mu.Lock()
	ctrl := b.ctrl
	b.mu.Unlock()
	if ctrl == nil {
		return errNotLoaded
	}
	speaker.Lock()
	ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

func (b *BeepPlayback) Play() error {
	return b.setPaused(false)
}

func (b *BeepPlayback) Pause() error {
	return b.setPaused(true)
}

func (b *BeepPlayback) Seek(fraction float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamer == nil {
		return errNotLoaded
	}
	pos := int(fraction * float64(b.streamer.Len()))
	if pos >= b.streamer.Len() {
		pos = b.streamer.Len() - 1
	}
	if pos < 0 {
		pos = 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return b.streamer.Seek(pos)
}

func (b *BeepPlayback) SetVolume(v float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = v
	if b.volume == nil {
		return nil
	}
	speaker.Lock()
	b.applyLevelLocked()
	speaker.Unlock()
	return nil
}

// applyLevelLocked maps a linear level onto the base-2 volume effect.
func (b *BeepPlayback) applyLevelLocked() {
	if b.level <= 0 {
		b.volume.Silent = true
		return
	}
	b.volume.Silent = false
	b.volume.Volume = math.Log2(b.level)
}

// ended runs on the speaker goroutine when a track drains. Only the current
// load may report Ended, once.
func (b *BeepPlayback) ended(gen uint64) {
	if b.gen.CompareAndSwap(gen, gen+1) {
		go b.events.send(player.Event{Type: player.EventEnded})
	}
}

func (b *BeepPlayback) tick() {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-b.events.closed():
			return
		case <-t.C:
		}
		b.report()
	}
}

// report publishes the position of a playing track, or its stream error.
// Nothing is reported once the track has ended.
func (b *BeepPlayback) report() {
	b.mu.Lock()
	if b.streamer == nil || b.ctrl == nil || b.gen.Load() != b.live {
		b.mu.Unlock()
		return
	}
	speaker.Lock()
	paused := b.ctrl.Paused
	pos := b.format.SampleRate.D(b.streamer.Position())
	if err := b.streamer.Err(); err != nil {
		// Silence the broken track and report it once.
		b.ctrl.Paused = true
		speaker.Unlock()
		b.ctrl = nil
		b.gen.Add(1)
		b.mu.Unlock()
		b.log.Warn("stream error", logger.ErrorField(err))
		go b.events.send(player.Event{Type: player.EventError, Err: err})
		return
	}
	speaker.Unlock()
	b.mu.Unlock()

	if !paused {
		b.events.offer(player.Event{Type: player.EventTimeUpdate, Position: pos})
	}
}

// Close stops output and releases the current stream.
func (b *BeepPlayback) Close() error {
	b.events.close()
	speaker.Clear()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamer != nil {
		err := b.streamer.Close()
		b.streamer = nil
		b.ctrl = nil
		return err
	}
	return nil
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
