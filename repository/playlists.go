package repository

import (
	"context"
	"fmt"

	"tunemux/logger"
	"tunemux/model"

	"gorm.io/gorm"
)

// PlaylistUpdate carries the fields to change; nil fields are left as stored.
type PlaylistUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Tracks      *model.TrackList `json:"tracks,omitempty"`
}

// CreatePlaylist stores an empty playlist and returns it with its new id.
func (s *Store) CreatePlaylist(ctx context.Context, name, description string) (*model.Playlist, error) {
	now := s.timestamp()
	p := &model.Playlist{
		Name:        name,
		Description: description,
		Tracks:      model.TrackList{},
		Created:     now,
		Modified:    now,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, wrap("create playlist", err)
	}
	s.log.Debug("playlist created", logger.Int64("id", p.ID), logger.String("name", name))
	return p, nil
}

// GetPlaylist loads one playlist.
func (s *Store) GetPlaylist(ctx context.Context, id int64) (*model.Playlist, error) {
	p, err := s.Playlists.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("playlist %d: %w", id, err)
	}
	return p, nil
}

// GetPlaylists returns every playlist in creation order.
func (s *Store) GetPlaylists(ctx context.Context) ([]model.Playlist, error) {
	var playlists []model.Playlist
	err := s.db.WithContext(ctx).Order("created ASC").Order("id ASC").Find(&playlists).Error
	if err != nil {
		return nil, wrap("get playlists", err)
	}
	return playlists, nil
}

// UpdatePlaylist merges updates over the stored playlist and bumps Modified.
func (s *Store) UpdatePlaylist(ctx context.Context, id int64, updates PlaylistUpdate) (*model.Playlist, error) {
	var out *model.Playlist
	err := s.modifyPlaylist(ctx, id, func(p *model.Playlist) bool {
		if updates.Name != nil {
			p.Name = *updates.Name
		}
		if updates.Description != nil {
			p.Description = *updates.Description
		}
		if updates.Tracks != nil {
			p.Tracks = append(model.TrackList{}, (*updates.Tracks)...)
		}
		out = p
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddToPlaylist appends track unless a track with the same identity is already
// present. It reports whether the playlist changed.
func (s *Store) AddToPlaylist(ctx context.Context, id int64, track model.Track) (bool, error) {
	added := false
	err := s.modifyPlaylist(ctx, id, func(p *model.Playlist) bool {
		if p.Tracks.IndexOf(track) >= 0 {
			return false
		}
		p.Tracks = append(p.Tracks, track)
		added = true
		return true
	})
	return added, err
}

// RemoveFromPlaylist drops the track at index. Out-of-range indexes leave the
// playlist untouched and report false.
func (s *Store) RemoveFromPlaylist(ctx context.Context, id int64, index int) (bool, error) {
	removed := false
	err := s.modifyPlaylist(ctx, id, func(p *model.Playlist) bool {
		if index < 0 || index >= len(p.Tracks) {
			return false
		}
		p.Tracks = append(p.Tracks[:index], p.Tracks[index+1:]...)
		removed = true
		return true
	})
	return removed, err
}

// ReorderPlaylist moves the track at from so that it ends up at to.
func (s *Store) ReorderPlaylist(ctx context.Context, id int64, from, to int) (bool, error) {
	moved := false
	err := s.modifyPlaylist(ctx, id, func(p *model.Playlist) bool {
		n := len(p.Tracks)
		if from < 0 || from >= n || to < 0 || to >= n || from == to {
			return false
		}
		t := p.Tracks[from]
		rest := append(model.TrackList{}, p.Tracks[:from]...)
		rest = append(rest, p.Tracks[from+1:]...)
		out := make(model.TrackList, 0, n)
		out = append(out, rest[:to]...)
		out = append(out, t)
		out = append(out, rest[to:]...)
		p.Tracks = out
		moved = true
		return true
	})
	return moved, err
}

// DeletePlaylist removes a playlist.
func (s *Store) DeletePlaylist(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Playlist{}, id)
	if res.Error != nil {
		return wrap("delete playlist", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete playlist %d: %w", id, ErrNotFound)
	}
	return nil
}

// modifyPlaylist is the whole-record read-modify-write used by every playlist
// mutation. fn reports whether it changed the record; unchanged records are not
// written and keep their Modified time.
func (s *Store) modifyPlaylist(ctx context.Context, id int64, fn func(p *model.Playlist) bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Playlist
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		if !fn(&p) {
			return nil
		}
		p.Modified = s.timestamp()
		return tx.Save(&p).Error
	})
	if err != nil {
		return wrap(fmt.Sprintf("playlist %d", id), err)
	}
	return nil
}
