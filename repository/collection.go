package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Collection is the generic keyed-record contract every library table offers.
// Each call is atomic on its own.
type Collection[T any] struct {
	db  *gorm.DB
	key string
}

// NewCollection binds a collection to the table of T, keyed by keyColumn.
func NewCollection[T any](db *gorm.DB, keyColumn string) *Collection[T] {
	return &Collection[T]{db: db, key: keyColumn}
}

func (c *Collection[T]) byKey(key interface{}) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: c.key}, Value: key}
}

// Create inserts a new record; auto-increment keys are written back into rec.
func (c *Collection[T]) Create(ctx context.Context, rec *T) error {
	return wrap("create", c.db.WithContext(ctx).Create(rec).Error)
}

// Get loads the record stored under key.
func (c *Collection[T]) Get(ctx context.Context, key interface{}) (*T, error) {
	var rec T
	if err := c.db.WithContext(ctx).Where(c.byKey(key)).First(&rec).Error; err != nil {
		return nil, wrap("get", err)
	}
	return &rec, nil
}

// GetAll returns every record in key order.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	var recs []T
	err := c.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: c.key}}).
		Find(&recs).Error
	if err != nil {
		return nil, wrap("get all", err)
	}
	return recs, nil
}

// Update merges the given column values into the record stored under key.
func (c *Collection[T]) Update(ctx context.Context, key interface{}, updates map[string]interface{}) error {
	return wrap("update", c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec T
		if err := tx.Where(c.byKey(key)).First(&rec).Error; err != nil {
			return err
		}
		return tx.Model(new(T)).Where(c.byKey(key)).Updates(updates).Error
	}))
}

// Delete removes the record under key. Deleting an absent key is not an error.
func (c *Collection[T]) Delete(ctx context.Context, key interface{}) error {
	return wrap("delete", c.db.WithContext(ctx).Where(c.byKey(key)).Delete(new(T)).Error)
}

// Count returns the number of stored records.
func (c *Collection[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(new(T)).Count(&n).Error; err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// Clear removes every record.
func (c *Collection[T]) Clear(ctx context.Context) error {
	err := c.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(new(T)).Error
	return wrap("clear", err)
}
