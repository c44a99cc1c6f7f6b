// Package aggregator fans searches out to every source provider and merges
// what comes back.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"tunemux/core/provider"
	"tunemux/logger"
	"tunemux/model"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// ErrUnknownSource is returned when no provider serves a track's source.
var ErrUnknownSource = errors.New("unknown source")

const (
	defaultTimeout = 8 * time.Second
	trendingLimit  = 20
)

// SearchRecorder receives every submitted query.
type SearchRecorder interface {
	AddSearchQuery(ctx context.Context, query string) error
}

// Aggregator queries providers concurrently and tolerates partial failure:
// a provider that errors or times out simply contributes nothing.
type Aggregator struct {
	registry *provider.Registry
	timeout  time.Duration
	recorder SearchRecorder
	log      *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

type Option func(*Aggregator)

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithSearchRecorder writes submitted queries to the search history.
func WithSearchRecorder(r SearchRecorder) Option {
	return func(a *Aggregator) {
		a.recorder = r
	}
}

// WithRand fixes the shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(a *Aggregator) {
		a.rand = r
	}
}

func New(registry *provider.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		registry: registry,
		timeout:  defaultTimeout,
		log:      logger.Named("aggregator"),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NormalizeQuery trims the query and puts it in Unicode NFC so equivalent
// spellings share cache entries and history rows.
func NormalizeQuery(q string) string {
	return norm.NFC.String(strings.TrimSpace(q))
}

// Search queries the providers selected by sourceFilter ("all" for every one)
// and interleaves their results round-robin in registration order. It waits
// for every provider before merging.
func (a *Aggregator) Search(ctx context.Context, query, sourceFilter string) []model.Track {
	query = NormalizeQuery(query)
	if query == "" {
		return []model.Track{}
	}

	if a.recorder != nil {
		if err := a.recorder.AddSearchQuery(ctx, query); err != nil {
			a.log.Warn("recording search query failed", logger.ErrorField(err))
		}
	}

	providers := a.registry.Filter(sourceFilter)
	results := make([][]model.Track, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p provider.SourceProvider) {
			defer wg.Done()
			results[i] = a.call(ctx, p.Name(), "search", func(ctx context.Context) ([]model.Track, error) {
				return p.Search(ctx, query)
			})
		}(i, p)
	}
	wg.Wait()

	merged := Interleave(results...)
	a.log.Debug("search finished",
		logger.String("query", query),
		logger.String("filter", sourceFilter),
		logger.Int("providers", len(providers)),
		logger.Int("results", len(merged)))
	return merged
}

// Trending collects every native trending feed, shuffles the union uniformly
// and keeps at most 20 tracks.
func (a *Aggregator) Trending(ctx context.Context) []model.Track {
	var feeds []provider.TrendingProvider
	for _, p := range a.registry.All() {
		if tp, ok := p.(provider.TrendingProvider); ok {
			feeds = append(feeds, tp)
		}
	}

	results := make([][]model.Track, len(feeds))
	var wg sync.WaitGroup
	for i, p := range feeds {
		wg.Add(1)
		go func(i int, p provider.TrendingProvider) {
			defer wg.Done()
			results[i] = a.call(ctx, p.Name(), "trending", p.Trending)
		}(i, p)
	}
	wg.Wait()

	var all []model.Track
	for _, r := range results {
		all = append(all, r...)
	}

	a.randMu.Lock()
	a.rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	a.randMu.Unlock()

	if len(all) > trendingLimit {
		all = all[:trendingLimit]
	}
	if all == nil {
		all = []model.Track{}
	}
	return all
}

// GetStreamURL resolves a playable URL through the track's provider. When
// resolution fails and the provider has a fallback (YouTube's embed player),
// the fallback is returned instead of the error.
func (a *Aggregator) GetStreamURL(ctx context.Context, track model.Track) (string, error) {
	p, ok := a.registry.Get(track.Source)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, track.Source)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	u, err := p.ResolveStreamURL(ctx, track.ID)
	if err == nil {
		return u, nil
	}
	if fb, ok := p.(provider.FallbackProvider); ok {
		a.log.Warn("stream resolution failed, using fallback",
			logger.String("track", track.Key()), logger.ErrorField(err))
		return fb.FallbackURL(track.ID), nil
	}
	return "", err
}

func (a *Aggregator) call(ctx context.Context, source model.Source, op string, fn func(context.Context) ([]model.Track, error)) []model.Track {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		tracks []model.Track
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		tracks, err := fn(ctx)
		done <- outcome{tracks, err}
	}()

	var tracks []model.Track
	var err error
	select {
	case o := <-done:
		tracks, err = o.tracks, o.err
	case <-ctx.Done():
		// Providers that ignore ctx are abandoned; their result is dropped.
		err = ctx.Err()
	}
	if err != nil {
		a.log.Warn("provider failed",
			logger.String("source", string(source)),
			logger.String("op", op),
			logger.Duration("elapsed", time.Since(start)),
			logger.ErrorField(err))
		return nil
	}
	return tracks
}

// Interleave merges lists round-robin: the first item of each list in order,
// then the second of each, and so on, skipping exhausted lists.
func Interleave(lists ...[]model.Track) []model.Track {
	total, longest := 0, 0
	for _, l := range lists {
		total += len(l)
		if len(l) > longest {
			longest = len(l)
		}
	}
	out := make([]model.Track, 0, total)
	for i := 0; i < longest; i++ {
		for _, l := range lists {
			if i < len(l) {
				out = append(out, l[i])
			}
		}
	}
	return out
}
