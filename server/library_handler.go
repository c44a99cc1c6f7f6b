package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tunemux/model"

	"github.com/gorilla/mux"
)

func (s *Server) GetLikesHandler(w http.ResponseWriter, r *http.Request) {
	liked, err := s.store.GetLikedSongs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if liked == nil {
		liked = []model.LikedTrack{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"likes": liked})
}

func (s *Server) ToggleLikeHandler(w http.ResponseWriter, r *http.Request) {
	track, err := decodeTrack(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	liked, err := s.store.ToggleLike(r.Context(), track)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (s *Server) IsLikedHandler(w http.ResponseWriter, r *http.Request) {
	liked, err := s.store.IsLiked(r.Context(), pathTrack(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (s *Server) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.store.GetPlayHistory(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (s *Server) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearHistory(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetSearchHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	queries, err := s.store.GetSearchHistory(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if queries == nil {
		queries = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"queries": queries})
}

func (s *Server) ClearSearchHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearSearchHistory(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetDownloadsHandler(w http.ResponseWriter, r *http.Request) {
	downloads, err := s.store.GetDownloads(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if downloads == nil {
		downloads = []model.DownloadRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"downloads": downloads})
}

// DownloadHandler fetches the track in the body into offline storage. With
// ?defer=true the download is queued for the next replay instead.
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	track, err := decodeTrack(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if deferred, _ := strconv.ParseBool(r.URL.Query().Get("defer")); deferred {
		action, err := s.library.QueueDownload(r.Context(), track)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, action)
		return
	}

	rec, err := s.library.Download(r.Context(), track)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) DeleteDownloadHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDownload(r.Context(), pathTrack(r).Key()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OfflineAudioHandler serves the stored bytes of a downloaded track.
func (s *Server) OfflineAudioHandler(w http.ResponseWriter, r *http.Request) {
	blob, err := s.store.GetOfflineBlob(r.Context(), pathTrack(r).Key())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

func (s *Server) GetPendingHandler(w http.ResponseWriter, r *http.Request) {
	actions, err := s.store.GetPendingActions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []model.PendingAction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": actions})
}

// ReplayPendingHandler applies queued actions in order; the response carries
// the counts even when the replay stopped early.
func (s *Server) ReplayPendingHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.library.ReplayPending(r.Context(), nil)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]interface{}{
			"replayed":  res.Replayed,
			"remaining": res.Remaining,
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) GetSettingHandler(w http.ResponseWriter, r *http.Request) {
	var value json.RawMessage
	if err := s.store.GetSetting(r.Context(), mux.Vars(r)["key"], &value); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": mux.Vars(r)["key"], "value": value})
}

func (s *Server) SetSettingHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Value) == 0 {
		s.writeError(w, r, badRequest("missing value"))
		return
	}
	if err := s.store.SetSetting(r.Context(), mux.Vars(r)["key"], req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
