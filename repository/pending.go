package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"tunemux/model"

	"github.com/google/uuid"
)

// QueuePendingAction stores a mutation made while offline. data is encoded as
// JSON; the action gets a fresh nonce.
func (s *Store) QueuePendingAction(ctx context.Context, actionType model.PendingActionType, data interface{}) (*model.PendingAction, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode pending %s: %w", actionType, err)
	}
	action := &model.PendingAction{
		Type:      actionType,
		Data:      model.JSONValue(raw),
		Nonce:     uuid.NewString(),
		Timestamp: s.timestamp(),
	}
	if err := s.db.WithContext(ctx).Create(action).Error; err != nil {
		return nil, wrap("queue pending action", err)
	}
	return action, nil
}

// GetPendingActions returns queued actions oldest first.
func (s *Store) GetPendingActions(ctx context.Context) ([]model.PendingAction, error) {
	var actions []model.PendingAction
	err := s.db.WithContext(ctx).Order("timestamp ASC").Order("id ASC").Find(&actions).Error
	if err != nil {
		return nil, wrap("get pending actions", err)
	}
	return actions, nil
}

// DeletePendingAction consumes one action after it was replayed.
func (s *Store) DeletePendingAction(ctx context.Context, id int64) error {
	return s.PendingActions.Delete(ctx, id)
}
