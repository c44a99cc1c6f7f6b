package repository

import (
	"errors"
	"fmt"
	"time"

	"tunemux/logger"
	"tunemux/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a required key is absent.
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable is returned when the database cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConsistency is returned when a paired write would leave the download
	// record and its offline blob out of step.
	ErrConsistency = errors.New("consistency violation")
)

const (
	defaultHistoryLimit       = 50
	defaultSearchHistoryLimit = 10
	retention                 = 30 * 24 * time.Hour
)

// Store is the durable library: playlists, likes, play and search history,
// downloads with their offline blobs, pending offline actions and settings.
// Every exported method is one logical operation; the ones touching more than
// one row run in a single transaction.
type Store struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger

	Playlists      *Collection[model.Playlist]
	LikedTracks    *Collection[model.LikedTrack]
	History        *Collection[model.HistoryEntry]
	SearchHistory  *Collection[model.SearchHistoryEntry]
	Downloads      *Collection[model.DownloadRecord]
	OfflineTracks  *Collection[model.OfflineBlob]
	PendingActions *Collection[model.PendingAction]
	Settings       *Collection[model.Setting]
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for timestamps and retention.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps an opened and migrated database.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		now: time.Now,
		log: logger.Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Playlists = NewCollection[model.Playlist](db, "id")
	s.LikedTracks = NewCollection[model.LikedTrack](db, "id")
	s.History = NewCollection[model.HistoryEntry](db, "id")
	s.SearchHistory = NewCollection[model.SearchHistoryEntry](db, "id")
	s.Downloads = NewCollection[model.DownloadRecord](db, "id")
	s.OfflineTracks = NewCollection[model.OfflineBlob](db, "id")
	s.PendingActions = NewCollection[model.PendingAction](db, "id")
	s.Settings = NewCollection[model.Setting](db, "key")
	return s
}

// DB exposes the underlying handle for maintenance commands.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// wrap maps driver errors onto the store's sentinel errors, keeping the
// original error in the chain.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConsistency), errors.Is(err, ErrStoreUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
}
