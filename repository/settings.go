package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tunemux/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const deviceIDKey = "device_id"

// GetSetting decodes the value stored under key into dst.
func (s *Store) GetSetting(ctx context.Context, key string, dst interface{}) error {
	setting, err := s.Settings.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	if err := json.Unmarshal(setting.Value, dst); err != nil {
		return fmt.Errorf("decode setting %q: %w", key, err)
	}
	return nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	return wrap("set setting", upsertSetting(s.db.WithContext(ctx), key, raw))
}

// DeviceID returns the identifier of this installation, generating and storing
// one on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting model.Setting
		err := tx.Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: deviceIDKey}).First(&setting).Error
		if err == nil {
			return json.Unmarshal(setting.Value, &id)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		id = uuid.NewString()
		raw, _ := json.Marshal(id)
		return upsertSetting(tx, deviceIDKey, raw)
	})
	if err != nil {
		return "", wrap("device id", err)
	}
	return id, nil
}

func upsertSetting(db *gorm.DB, key string, raw []byte) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Setting{Key: key, Value: model.JSONValue(raw)}).Error
}
