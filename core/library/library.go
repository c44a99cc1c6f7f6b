// Package library manages offline audio: downloading tracks into the store,
// importing local files and replaying mutations queued while offline.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"tunemux/logger"
	"tunemux/model"
	"tunemux/repository"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const defaultMaxSize = 100 << 20

var (
	// ErrNotAudio is returned when a resolved URL serves something other than
	// audio, such as an embeddable player page.
	ErrNotAudio = errors.New("resolved url is not audio")
	// ErrTooLarge is returned when a download exceeds the size limit.
	ErrTooLarge = errors.New("download too large")
)

// StreamResolver resolves a network URL for a track.
type StreamResolver interface {
	GetStreamURL(ctx context.Context, track model.Track) (string, error)
}

// Store is the slice of the persistent store the library needs.
type Store interface {
	SaveOfflineTrack(ctx context.Context, track model.Track, data []byte) (*model.DownloadRecord, error)
	QueuePendingAction(ctx context.Context, actionType model.PendingActionType, data interface{}) (*model.PendingAction, error)
	GetPendingActions(ctx context.Context) ([]model.PendingAction, error)
	DeletePendingAction(ctx context.Context, id int64) error
	ToggleLike(ctx context.Context, track model.Track) (bool, error)
	IsLiked(ctx context.Context, track model.Track) (bool, error)
	AddToPlaylist(ctx context.Context, id int64, track model.Track) (bool, error)
	AddToHistory(ctx context.Context, track model.Track) error
}

var _ Store = (*repository.Store)(nil)

// Service downloads and imports audio into the store.
type Service struct {
	store   Store
	streams StreamResolver
	client  *http.Client
	maxSize int64
	log     *zap.Logger
}

type Option func(*Service)

// WithHTTPClient replaces the client used for audio downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// WithMaxSize caps a single download.
func WithMaxSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

func New(store Store, streams StreamResolver, opts ...Option) *Service {
	s := &Service{
		store:   store,
		streams: streams,
		client:  &http.Client{Timeout: 5 * time.Minute},
		maxSize: defaultMaxSize,
		log:     logger.Named("library"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Download resolves the track's stream, fetches the audio and saves record
// and bytes together.
func (s *Service) Download(ctx context.Context, track model.Track) (*model.DownloadRecord, error) {
	url, err := s.streams.GetStreamURL(ctx, track)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", track.Key(), err)
	}

	data, err := s.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", track.Key(), err)
	}

	rec, err := s.store.SaveOfflineTrack(ctx, track, data)
	if err != nil {
		return nil, err
	}
	s.log.Info("track downloaded",
		logger.String("track", track.Key()),
		logger.String("size", humanize.Bytes(uint64(rec.Size))))
	return rec, nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", req.URL.Host, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && (mt == "text/html" || mt == "application/json") {
			return nil, fmt.Errorf("%w: %s", ErrNotAudio, mt)
		}
	}
	if resp.ContentLength > s.maxSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, humanize.Bytes(uint64(resp.ContentLength)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: over %s", ErrTooLarge, humanize.Bytes(uint64(s.maxSize)))
	}
	return data, nil
}
