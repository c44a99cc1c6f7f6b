package repository

import (
	"context"
	"fmt"

	"tunemux/logger"
	"tunemux/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveOfflineTrack writes the download record and its audio bytes as one unit.
// Saving a track that is already downloaded replaces both rows.
func (s *Store) SaveOfflineTrack(ctx context.Context, track model.Track, data []byte) (*model.DownloadRecord, error) {
	key := track.Key()
	rec := &model.DownloadRecord{
		ID:        key,
		Track:     track,
		Size:      int64(len(data)),
		Timestamp: s.timestamp(),
	}
	blob := &model.OfflineBlob{
		ID:     key,
		Source: track.Source,
		Data:   data,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error; err != nil {
			return fmt.Errorf("download record: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(blob).Error; err != nil {
			return fmt.Errorf("offline blob: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("save offline track", err)
	}

	s.log.Info("offline track saved", logger.String("key", key), logger.Int64("size", rec.Size))
	return rec, nil
}

// DeleteDownload removes the download record and offline blob for key together.
// If only one of the two exists the store is already inconsistent; nothing is
// deleted and ErrConsistency is returned.
func (s *Store) DeleteDownload(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recRes := tx.Where("id = ?", key).Delete(&model.DownloadRecord{})
		if recRes.Error != nil {
			return recRes.Error
		}
		blobRes := tx.Where("id = ?", key).Delete(&model.OfflineBlob{})
		if blobRes.Error != nil {
			return blobRes.Error
		}
		switch {
		case recRes.RowsAffected == 0 && blobRes.RowsAffected == 0:
			return ErrNotFound
		case recRes.RowsAffected != blobRes.RowsAffected:
			return fmt.Errorf("%s: record rows %d, blob rows %d: %w",
				key, recRes.RowsAffected, blobRes.RowsAffected, ErrConsistency)
		}
		return nil
	})
	if err != nil {
		return wrap("delete download", err)
	}
	return nil
}

// GetDownloads returns download records, most recent first.
func (s *Store) GetDownloads(ctx context.Context) ([]model.DownloadRecord, error) {
	var recs []model.DownloadRecord
	err := s.db.WithContext(ctx).Order("timestamp DESC").Order("id ASC").Find(&recs).Error
	if err != nil {
		return nil, wrap("get downloads", err)
	}
	return recs, nil
}

// IsDownloaded reports whether a download record exists for key.
func (s *Store) IsDownloaded(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.DownloadRecord{}).Where("id = ?", key).Count(&n).Error
	if err != nil {
		return false, wrap("is downloaded", err)
	}
	return n > 0, nil
}

// GetOfflineBlob loads the stored audio for key.
func (s *Store) GetOfflineBlob(ctx context.Context, key string) (*model.OfflineBlob, error) {
	blob, err := s.OfflineTracks.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("offline blob %s: %w", key, err)
	}
	return blob, nil
}
