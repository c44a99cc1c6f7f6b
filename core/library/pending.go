package library

import (
	"context"
	"fmt"

	"tunemux/logger"
	"tunemux/model"
)

// LikePayload is the data of a queued like: the state the user asked for.
type LikePayload struct {
	Track model.Track `json:"track"`
	Liked bool        `json:"liked"`
}

// PlaylistPayload is the data of a queued add-to-playlist.
type PlaylistPayload struct {
	PlaylistID int64       `json:"playlistId"`
	Track      model.Track `json:"track"`
}

// Handler applies one pending action.
type Handler func(ctx context.Context, action model.PendingAction) error

// ReplayResult counts what a replay did.
type ReplayResult struct {
	Replayed  int `json:"replayed"`
	Remaining int `json:"remaining"`
}

// QueueDownload defers a download until the network is back.
func (s *Service) QueueDownload(ctx context.Context, track model.Track) (*model.PendingAction, error) {
	return s.store.QueuePendingAction(ctx, model.ActionDownload, track)
}

// QueueLike defers setting the liked state of track.
func (s *Service) QueueLike(ctx context.Context, track model.Track, liked bool) (*model.PendingAction, error) {
	return s.store.QueuePendingAction(ctx, model.ActionLike, LikePayload{Track: track, Liked: liked})
}

// QueueAddToPlaylist defers adding track to a playlist.
func (s *Service) QueueAddToPlaylist(ctx context.Context, playlistID int64, track model.Track) (*model.PendingAction, error) {
	return s.store.QueuePendingAction(ctx, model.ActionAddToPlaylist, PlaylistPayload{PlaylistID: playlistID, Track: track})
}

// QueuePlayback defers recording a play.
func (s *Service) QueuePlayback(ctx context.Context, track model.Track) (*model.PendingAction, error) {
	return s.store.QueuePendingAction(ctx, model.ActionRecordPlayback, track)
}

// ReplayPending hands queued actions to handler oldest first. Each action is
// deleted only after handler succeeds; the first failure stops the replay so
// later actions are not applied ahead of it. A nil handler uses Apply.
func (s *Service) ReplayPending(ctx context.Context, handler Handler) (ReplayResult, error) {
	if handler == nil {
		handler = s.Apply
	}
	actions, err := s.store.GetPendingActions(ctx)
	if err != nil {
		return ReplayResult{}, err
	}

	res := ReplayResult{Remaining: len(actions)}
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := handler(ctx, a); err != nil {
			s.log.Warn("pending action failed, stopping replay",
				logger.Int64("id", a.ID),
				logger.String("type", string(a.Type)),
				logger.String("nonce", a.Nonce),
				logger.ErrorField(err))
			return res, fmt.Errorf("replay %s #%d: %w", a.Type, a.ID, err)
		}
		if err := s.store.DeletePendingAction(ctx, a.ID); err != nil {
			return res, err
		}
		res.Replayed++
		res.Remaining--
	}
	if res.Replayed > 0 {
		s.log.Info("pending actions replayed", logger.Int("count", res.Replayed))
	}
	return res, nil
}

// Apply performs a pending action against the local library. Likes set the
// requested state rather than toggling, so a retried replay is harmless.
func (s *Service) Apply(ctx context.Context, a model.PendingAction) error {
	switch a.Type {
	case model.ActionDownload:
		var t model.Track
		if err := a.Data.Decode(&t); err != nil {
			return fmt.Errorf("decode download: %w", err)
		}
		_, err := s.Download(ctx, t)
		return err

	case model.ActionLike:
		var p LikePayload
		if err := a.Data.Decode(&p); err != nil {
			return fmt.Errorf("decode like: %w", err)
		}
		liked, err := s.store.IsLiked(ctx, p.Track)
		if err != nil {
			return err
		}
		if liked != p.Liked {
			_, err = s.store.ToggleLike(ctx, p.Track)
		}
		return err

	case model.ActionAddToPlaylist:
		var p PlaylistPayload
		if err := a.Data.Decode(&p); err != nil {
			return fmt.Errorf("decode add to playlist: %w", err)
		}
		_, err := s.store.AddToPlaylist(ctx, p.PlaylistID, p.Track)
		return err

	case model.ActionRecordPlayback:
		var t model.Track
		if err := a.Data.Decode(&t); err != nil {
			return fmt.Errorf("decode playback: %w", err)
		}
		return s.store.AddToHistory(ctx, t)

	default:
		return fmt.Errorf("unknown pending action type %q", a.Type)
	}
}
