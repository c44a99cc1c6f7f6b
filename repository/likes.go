package repository

import (
	"context"
	"errors"

	"tunemux/model"

	"gorm.io/gorm"
)

// ToggleLike flips the liked state of track and returns the new state.
func (s *Store) ToggleLike(ctx context.Context, track model.Track) (bool, error) {
	key := track.Key()
	liked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.LikedTrack
		err := tx.Where("id = ?", key).First(&existing).Error
		switch {
		case err == nil:
			return tx.Delete(&model.LikedTrack{}, "id = ?", key).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			liked = true
			return tx.Create(&model.LikedTrack{
				ID:        key,
				Track:     track,
				Timestamp: s.timestamp(),
			}).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, wrap("toggle like", err)
	}
	return liked, nil
}

// IsLiked reports whether track is in the liked collection.
func (s *Store) IsLiked(ctx context.Context, track model.Track) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.LikedTrack{}).Where("id = ?", track.Key()).Count(&n).Error
	if err != nil {
		return false, wrap("is liked", err)
	}
	return n > 0, nil
}

// GetLikedSongs returns liked tracks, most recently liked first.
func (s *Store) GetLikedSongs(ctx context.Context) ([]model.LikedTrack, error) {
	var liked []model.LikedTrack
	err := s.db.WithContext(ctx).Order("timestamp DESC").Order("id ASC").Find(&liked).Error
	if err != nil {
		return nil, wrap("get liked songs", err)
	}
	return liked, nil
}
